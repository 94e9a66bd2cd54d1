// Package udp implements the datagram channel used by the netsend bridge: a
// connected UDP socket bound to one resolved destination.
//
// Destinations are always represented as IPv6 addresses. IPv4 literals and
// IPv4 lookups are stored in their IPv4-mapped form (::ffff:a.b.c.d); the
// socket itself is opened in the IPv4 family for such endpoints so that no
// dual-stack support is required from the host.
package udp

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Endpoint is a resolved destination. It is immutable once created.
type Endpoint struct {
	// Address and Port are the strings the endpoint was resolved from.
	Address string
	Port    string

	// AddrPort is the resolved IPv6 (or IPv4-mapped) address and port.
	AddrPort netip.AddrPort
}

// IsMapped4 reports whether the endpoint is an IPv4 destination in mapped form.
func (e Endpoint) IsMapped4() bool {
	return e.AddrPort.Addr().Is4In6()
}

// Network returns the socket family to dial the endpoint with.
func (e Endpoint) Network() string {
	if e.IsMapped4() {
		return "udp4"
	}
	return "udp6"
}

// UDPAddr returns the destination in the form expected by the socket family
// reported by [Endpoint.Network].
func (e Endpoint) UDPAddr() *net.UDPAddr {
	ap := e.AddrPort
	if e.IsMapped4() {
		ap = netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	return net.UDPAddrFromAddrPort(ap)
}

func (e Endpoint) String() string {
	return e.AddrPort.String()
}

// Resolve turns an address and port string into an [Endpoint]. The address may
// be an IPv4 literal, an IPv6 literal (optionally in brackets, including "::"
// and "::1"), or a host name. The port may be numeric or a service name.
func Resolve(ctx context.Context, address, port string) (Endpoint, error) {
	host := strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
	if host == "" {
		return Endpoint{}, fmt.Errorf("udp: empty address")
	}

	p, err := net.DefaultResolver.LookupPort(ctx, "udp", port)
	if err != nil {
		return Endpoint{}, fmt.Errorf("udp: port %q: %w", port, err)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		addrs, lerr := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		if lerr != nil {
			return Endpoint{}, fmt.Errorf("udp: resolve %q: %w", host, lerr)
		}
		if len(addrs) == 0 {
			return Endpoint{}, fmt.Errorf("udp: resolve %q: no addresses", host)
		}
		addr = addrs[0]
	}

	// IPv4 destinations are kept in mapped form.
	if addr.Is4() {
		addr = netip.AddrFrom16(addr.As16())
	}

	return Endpoint{
		Address:  address,
		Port:     port,
		AddrPort: netip.AddrPortFrom(addr, uint16(p)),
	}, nil
}
