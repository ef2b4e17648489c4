package client

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostAllowList_Allows(t *testing.T) {
	tests := []struct {
		name string
		list HostAllowList
		host string
		want bool
	}{
		{"empty list allows all", nil, "anything.example", true},
		{"exact match", HostAllowList{"api.example.com"}, "api.example.com", true},
		{"case insensitive", HostAllowList{"api.example.com"}, "API.Example.COM", true},
		{"trailing dot", HostAllowList{"api.example.com"}, "api.example.com.", true},
		{"exact mismatch", HostAllowList{"api.example.com"}, "example.com", false},
		{"wildcard subdomain", HostAllowList{"*.data.gov.hk"}, "rt.data.gov.hk", true},
		{"wildcard nested", HostAllowList{"*.data.gov.hk"}, "a.b.data.gov.hk", true},
		{"wildcard excludes apex", HostAllowList{"*.data.gov.hk"}, "data.gov.hk", false},
		{"wildcard suffix trick", HostAllowList{"*.data.gov.hk"}, "evildata.gov.hk", false},
		{"second entry", HostAllowList{"a.com", "b.com"}, "b.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.list.Allows(tt.host))
		})
	}
}

func TestDenyPrivateAddresses(t *testing.T) {
	tests := []struct {
		address string
		denied  bool
	}{
		{"127.0.0.1:80", true},
		{"10.1.2.3:443", true},
		{"172.16.0.1:443", true},
		{"192.168.1.1:8080", true},
		{"169.254.169.254:80", true},
		{"100.64.0.1:80", true},
		{"0.0.0.0:80", true},
		{"[::1]:80", true},
		{"[fe80::1]:80", true},
		{"[fd00::1]:80", true},
		{"[::ffff:127.0.0.1]:80", true},
		{"93.184.216.34:443", false},
		{"[2606:2800:220:1::1]:443", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			err := denyPrivateAddresses("tcp", tt.address, nil)
			if tt.denied {
				assert.ErrorIs(t, err, ErrPrivateAddress)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsPrivate_PublicUnicast(t *testing.T) {
	assert.False(t, isPrivate(netip.MustParseAddr("8.8.8.8")))
	assert.True(t, isPrivate(netip.MustParseAddr("100.127.255.254")))
}
