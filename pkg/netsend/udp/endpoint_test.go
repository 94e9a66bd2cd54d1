package udp

import (
	"context"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		address     string
		port        string
		wantAddr    string
		wantPort    uint16
		wantNetwork string
	}{
		{"ipv4 loopback", "127.0.0.1", "9123", "::ffff:127.0.0.1", 9123, "udp4"},
		{"ipv4 wildcard", "0.0.0.0", "8000", "::ffff:0.0.0.0", 8000, "udp4"},
		{"ipv6 loopback", "::1", "8000", "::1", 8000, "udp6"},
		{"ipv6 wildcard", "::", "8000", "::", 8000, "udp6"},
		{"bracketed ipv6", "[::1]", "5004", "::1", 5004, "udp6"},
		{"already mapped", "::ffff:10.0.0.1", "1", "::ffff:10.0.0.1", 1, "udp4"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ep, err := Resolve(context.Background(), tc.address, tc.port)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got := ep.AddrPort.Addr().String(); got != tc.wantAddr {
				t.Errorf("addr = %q, want %q", got, tc.wantAddr)
			}
			if ep.AddrPort.Port() != tc.wantPort {
				t.Errorf("port = %d, want %d", ep.AddrPort.Port(), tc.wantPort)
			}
			if ep.Network() != tc.wantNetwork {
				t.Errorf("Network = %q, want %q", ep.Network(), tc.wantNetwork)
			}
			if ep.Address != tc.address || ep.Port != tc.port {
				t.Errorf("source strings = %q/%q, want %q/%q", ep.Address, ep.Port, tc.address, tc.port)
			}
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		address string
		port    string
	}{
		{"empty address", "", "8000"},
		{"empty brackets", "[]", "8000"},
		{"port out of range", "127.0.0.1", "99999"},
		{"negative port", "127.0.0.1", "-1"},
		{"unknown service", "127.0.0.1", "no-such-service-xyz"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Resolve(context.Background(), tc.address, tc.port); err == nil {
				t.Errorf("Resolve(%q, %q) succeeded", tc.address, tc.port)
			}
		})
	}
}

func TestEndpoint_UDPAddrUnmaps(t *testing.T) {
	ep, err := Resolve(context.Background(), "192.168.1.20", "7000")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ua := ep.UDPAddr()
	if ua.IP.To4() == nil || ua.IP.String() != "192.168.1.20" || ua.Port != 7000 {
		t.Errorf("UDPAddr = %v, want 192.168.1.20:7000", ua)
	}
	if ep.String() != "[::ffff:192.168.1.20]:7000" {
		t.Errorf("String = %q", ep.String())
	}
}
