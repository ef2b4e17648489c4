// Package config handles TOML configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/cors-gateway/config.toml",
	"configs/config.toml",
}

// ProxyPrefix is the path prefix that routes requests to the forwarding handler.
const ProxyPrefix = "/api/proxy"

// ReservedRoutes lists the paths owned by the gateway itself.
var ReservedRoutes = []string{ProxyPrefix, "/healthz", "/gateway/status"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config        string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host          string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port          int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	Root          string `kong:"short='r',help='Static file root (overrides config).',env='STATIC_ROOT'"`
	LogLevel      string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	ForwardStatus bool   `kong:"help='Relay the upstream status code instead of a fixed 200.',env='FORWARD_STATUS'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Static   StaticConfig   `toml:"static"`
	Upstream UpstreamConfig `toml:"upstream"`
	Proxy    ProxyConfig    `toml:"proxy"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000)
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// StaticConfig controls the static file server.
type StaticConfig struct {
	Root   string `toml:"root"`
	Index  string `toml:"index"`
	Browse *bool  `toml:"browse"` // nil means "use default" (true)
}

// UpstreamConfig holds settings for outbound fetches.
type UpstreamConfig struct {
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	DialTimeoutSeconds int    `toml:"dial_timeout_seconds"`
	UserAgent          string `toml:"user_agent"`
	ForwardStatus      bool   `toml:"forward_status"`
	MaxResponseBytes   int64  `toml:"max_response_bytes"` // 0 means unlimited
	IdleConnections    int    `toml:"idle_connections"`
}

// ProxyConfig holds the optional target policy. Both knobs are off by default.
type ProxyConfig struct {
	AllowedHosts         []string `toml:"allowed_hosts"`
	BlockPrivateNetworks bool     `toml:"block_private_networks"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/cors-gateway/config.toml then configs/config.toml, and falls back to
// built-in defaults when neither exists.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// FilePath returns the config file that was loaded, or empty when running on defaults.
func (c *Config) FilePath() string {
	return c.filePath
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.Root != "" {
		c.Static.Root = cli.Root
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	if cli.ForwardStatus {
		c.Upstream.ForwardStatus = true
	}
}

func (c *Config) validate() error {
	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0-65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.DialTimeoutSeconds < 0 {
		return fmt.Errorf("upstream.dial_timeout_seconds must be non-negative; got %d", c.Upstream.DialTimeoutSeconds)
	}
	if c.Upstream.MaxResponseBytes < 0 {
		return fmt.Errorf("upstream.max_response_bytes must be non-negative; got %d", c.Upstream.MaxResponseBytes)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}

	if c.Static.Root != "" {
		info, err := os.Stat(c.Static.Root)
		if err != nil {
			return fmt.Errorf("static.root: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("static.root %q is not a directory", c.Static.Root)
		}
	}
	if strings.ContainsAny(c.Static.Index, `/\`) {
		return fmt.Errorf("static.index must be a file name; got %q", c.Static.Index)
	}

	if err := validateAllowedHosts(c.Proxy.AllowedHosts); err != nil {
		return err
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range ReservedRoutes {
			if p == reserved || strings.HasPrefix(p, reserved) {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

var errEmptyHost = errors.New("proxy.allowed_hosts entries must not be empty")

// validateAllowedHosts accepts bare host names and "*.suffix" wildcards.
func validateAllowedHosts(hosts []string) error {
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			return errEmptyHost
		}
		if strings.ContainsAny(h, "/:?#@ ") {
			return fmt.Errorf("proxy.allowed_hosts entry %q must be a host name, not a URL", h)
		}
		if strings.Contains(strings.TrimPrefix(h, "*."), "*") {
			return fmt.Errorf("proxy.allowed_hosts entry %q: only a leading \"*.\" wildcard is supported", h)
		}
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 1 << 20 // 1 MB
	}
	if c.Static.Root == "" {
		c.Static.Root = "."
	}
	if c.Static.Index == "" {
		c.Static.Index = "index.html"
	}
	if c.Static.Browse == nil {
		browse := true
		c.Static.Browse = &browse
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.DialTimeoutSeconds == 0 {
		c.Upstream.DialTimeoutSeconds = 10
	}
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = "Mozilla/5.0"
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	for i, h := range c.Proxy.AllowedHosts {
		c.Proxy.AllowedHosts[i] = strings.ToLower(strings.TrimSpace(h))
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BrowseEnabled reports whether directory listings are served.
func (c *StaticConfig) BrowseEnabled() bool {
	return c.Browse == nil || *c.Browse
}
