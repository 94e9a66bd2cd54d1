package udp

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("udp: channel closed")

// Option configures a [Channel] at open time.
type Option func(*options)

type options struct {
	trafficClass int
	writeTimeout time.Duration
	sendBuffer   int
}

// WithTrafficClass marks outgoing datagrams with the given DSCP code point
// (0-63), e.g. 46 (EF) for real-time audio. Zero leaves the socket default.
// The setting is applied on Linux and ignored elsewhere.
func WithTrafficClass(dscp int) Option {
	return func(o *options) { o.trafficClass = dscp }
}

// WithWriteTimeout bounds each Send. Zero means no deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithSendBuffer sets the socket send buffer size in bytes. Zero leaves the
// kernel default.
func WithSendBuffer(bytes int) Option {
	return func(o *options) { o.sendBuffer = bytes }
}

// Channel is a connected UDP socket bound to one [Endpoint]. Because the
// socket is connected, ICMP errors for earlier datagrams (e.g. port
// unreachable) are reported by later Send calls.
//
// Send and Close are expected to be called from a single owning goroutine
// after Open returns; Close is idempotent.
type Channel struct {
	conn         *net.UDPConn
	ep           Endpoint
	writeTimeout time.Duration
	closed       atomic.Bool
}

// Open creates a socket of the endpoint's family, binds it to the wildcard
// address on an ephemeral port and connects it to ep.
func Open(ep Endpoint, opts ...Option) (*Channel, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.trafficClass < 0 || o.trafficClass > 63 {
		return nil, fmt.Errorf("udp: dscp %d out of range [0, 63]", o.trafficClass)
	}

	conn, err := net.DialUDP(ep.Network(), nil, ep.UDPAddr())
	if err != nil {
		return nil, fmt.Errorf("udp: dial %s: %w", ep, err)
	}

	if o.sendBuffer > 0 {
		if err := conn.SetWriteBuffer(o.sendBuffer); err != nil {
			conn.Close()
			return nil, fmt.Errorf("udp: set send buffer: %w", err)
		}
	}
	if o.trafficClass > 0 {
		if err := setTrafficClass(conn, ep.IsMapped4(), o.trafficClass); err != nil {
			conn.Close()
			return nil, fmt.Errorf("udp: set traffic class: %w", err)
		}
	}

	return &Channel{
		conn:         conn,
		ep:           ep,
		writeTimeout: o.writeTimeout,
	}, nil
}

// Send writes b as a single datagram.
func (c *Channel) Send(b []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.conn.Write(b)
}

// Endpoint returns the destination this channel is connected to.
func (c *Channel) Endpoint() Endpoint { return c.ep }

// LocalAddr returns the bound local address.
func (c *Channel) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Close releases the socket. Subsequent calls return nil.
func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}
