package client

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"syscall"
)

var (
	// ErrHostNotAllowed is returned when a target host is outside proxy.allowed_hosts.
	ErrHostNotAllowed = errors.New("target host not allowed")
	// ErrPrivateAddress is returned when a dial resolves to a non-public address
	// while proxy.block_private_networks is on.
	ErrPrivateAddress = errors.New("target resolves to a private network address")
)

// HostAllowList holds lower-cased host names and "*.suffix" wildcards.
// An empty list allows every host.
type HostAllowList []string

// Allows reports whether host matches an entry of the list.
func (l HostAllowList) Allows(host string) bool {
	if len(l) == 0 {
		return true
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, entry := range l {
		if suffix, ok := strings.CutPrefix(entry, "*."); ok {
			if strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if host == entry {
			return true
		}
	}
	return false
}

// denyPrivateAddresses is a net.Dialer Control hook. It runs after name
// resolution, so it sees the address actually being dialed, including the
// targets of redirects.
func denyPrivateAddresses(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("dial guard: %w", err)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("dial guard: %w", err)
	}
	if isPrivate(addr.Unmap()) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, addr)
	}
	return nil
}

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598).
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

func isPrivate(addr netip.Addr) bool {
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsUnspecified() ||
		sharedAddressSpace.Contains(addr)
}
