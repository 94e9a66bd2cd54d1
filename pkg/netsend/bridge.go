// Package netsend streams real-time audio blocks as UDP datagrams without
// blocking the render path.
//
// A [Bridge] sits between an audio host's render callback and the network.
// On every block it writes the pass-through output (input plus a scalar
// offset), copies channel 0 into a free transfer buffer and hands a send
// request to its [EventLoop]. The loop, running on its own OS thread, owns
// the socket, writes the datagram and reports the outcome. Packet loss is
// accepted: failures are logged and counted, never retried.
//
// Wire format: each datagram carries the platform-native float64 bit pattern
// of one channel-0 block, vectorSize × 8 bytes, with no header. Receivers must
// know the vector size and sample rate out of band.
//
// Threading contract:
//
//   - RenderBlock must be called from a single goroutine (the host's render
//     goroutine). It never blocks, allocates, or takes a lock.
//   - Prepare, Connect, Ping and Teardown are control-plane calls; they are
//     serialised internally and may block.
package netsend

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/MrWong99/netsend/pkg/netsend/udp"
)

// DefaultBufferSlots is the number of transfer buffers rotated by a bridge
// (ping-pong).
const DefaultBufferSlots = 2

// Option configures a [Bridge].
type Option func(*Bridge)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithID overrides the generated instance identifier. Empty values are
// ignored.
func WithID(id string) Option {
	return func(b *Bridge) {
		if id != "" {
			b.id = id
		}
	}
}

// WithObserver sets the telemetry sink. Defaults to [NopObserver].
func WithObserver(o Observer) Option {
	return func(b *Bridge) { b.obs = o }
}

// WithBufferSlots sets how many transfer buffers rotate between the render
// path and the event loop. Values below 1 are ignored.
func WithBufferSlots(n int) Option {
	return func(b *Bridge) {
		if n >= 1 {
			b.slots = n
		}
	}
}

// WithChannelOptions passes socket options to [udp.Open] on every Connect.
func WithChannelOptions(opts ...udp.Option) Option {
	return func(b *Bridge) { b.chanOpts = append(b.chanOpts, opts...) }
}

// WithOffset sets the initial pass-through offset.
func WithOffset(offset float64) Option {
	return func(b *Bridge) { b.offset.Store(math.Float64bits(offset)) }
}

// Stats is a snapshot of the bridge counters.
type Stats struct {
	// Rendered counts RenderBlock calls.
	Rendered uint64

	// Staged counts blocks handed to the event loop.
	Staged uint64

	// Dropped counts blocks not transmitted while connected because every
	// transfer buffer was still in flight.
	Dropped uint64

	// Queued is the number of requests waiting for the event loop.
	Queued int
}

// Bridge streams channel 0 of every rendered block to a UDP destination.
// See the package documentation for the threading contract.
type Bridge struct {
	id       string
	logger   *slog.Logger
	obs      Observer
	settings Settings
	slots    int
	chanOpts []udp.Option

	offset    atomic.Uint64
	ring      atomic.Pointer[bufferRing]
	connected atomic.Bool

	rendered atomic.Uint64
	staged   atomic.Uint64
	dropped  atomic.Uint64

	// reportedDrops is touched only by the event loop goroutine.
	reportedDrops uint64

	loop *EventLoop

	mu       sync.Mutex
	endpoint udp.Endpoint
	tornDown bool
}

// New creates a bridge for settings (usually produced by [Configure]). No
// socket is created until Connect.
func New(settings Settings, opts ...Option) *Bridge {
	b := &Bridge{
		id:       uuid.NewString(),
		logger:   slog.Default(),
		obs:      NopObserver{},
		settings: settings,
		slots:    DefaultBufferSlots,
	}
	for _, o := range opts {
		o(b)
	}
	if b.settings.Channels < 1 {
		b.settings.Channels = DefaultChannels
	}
	b.logger = b.logger.With("bridge_id", b.id)

	b.loop = newEventLoop(b.slots, b.logger, b.onSendComplete)
	b.loop.afterDrain = b.reportDrops
	b.loop.onState = b.obs.LoopStateChanged
	return b
}

// ID returns the bridge's unique instance identifier.
func (b *Bridge) ID() string { return b.id }

// Settings returns the configuration the bridge was created with.
func (b *Bridge) Settings() Settings { return b.settings }

// Connected reports whether render blocks are currently being transmitted.
func (b *Bridge) Connected() bool { return b.connected.Load() }

// LoopState returns the event loop's lifecycle state.
func (b *Bridge) LoopState() string { return b.loop.State() }

// Offset returns the pass-through offset.
func (b *Bridge) Offset() float64 {
	return math.Float64frombits(b.offset.Load())
}

// SetOffset changes the pass-through offset. Safe to call concurrently with
// RenderBlock; the new value applies from the next block.
func (b *Bridge) SetOffset(offset float64) {
	b.offset.Store(math.Float64bits(offset))
}

// Capacity returns the transfer buffer size in bytes, or 0 before Prepare.
func (b *Bridge) Capacity() int {
	r := b.ring.Load()
	if r == nil {
		return 0
	}
	return r.capacity()
}

// Endpoint returns the resolved destination of the last successful Connect.
func (b *Bridge) Endpoint() (udp.Endpoint, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.endpoint, b.connected.Load()
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Rendered: b.rendered.Load(),
		Staged:   b.staged.Load(),
		Dropped:  b.dropped.Load(),
		Queued:   b.loop.queue.len(),
	}
}

// Prepare allocates the transfer buffers for vectorSize samples per block. It
// is called once the host knows its sample rate and block size, and may be
// called again when they change: the previous buffers are discarded, and any
// datagram still referencing them completes from the old memory.
func (b *Bridge) Prepare(sampleRate float64, vectorSize int) error {
	if vectorSize <= 0 {
		return &ConfigError{Field: "vector_size", Value: strconv.Itoa(vectorSize), Fallback: "previous buffers"}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tornDown {
		return ErrTornDown
	}
	b.ring.Store(newBufferRing(b.slots, vectorSize))
	b.logger.Info("netsend: prepared",
		"sample_rate", sampleRate,
		"vector_size", vectorSize,
		"datagram_bytes", vectorSize*8,
		"buffer_slots", b.slots,
	)
	return nil
}

// Connect resolves the destination, opens the datagram channel and starts the
// event loop (or hands it the new channel if it is already running). On
// failure the bridge is left disconnected, the error is logged, and Connect
// may be called again.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.connect(ctx)
	b.obs.ConnectAttempted(err)
	if err != nil {
		b.connected.Store(false)
		b.logger.Error("netsend: connect failed", "err", err)
		return err
	}
	return nil
}

func (b *Bridge) connect(ctx context.Context) error {
	if b.tornDown {
		return ErrTornDown
	}
	addr, port := b.settings.Address, b.settings.Port
	fail := func(op string, err error) error {
		return &ConnectError{Op: op, Address: addr, Port: port, Err: err}
	}

	ep, err := udp.Resolve(ctx, addr, port)
	if err != nil {
		return fail("resolve", err)
	}
	ch, err := udp.Open(ep, b.chanOpts...)
	if err != nil {
		return fail("open", err)
	}

	if b.loop.State() == StateUninitialized {
		err = b.loop.Start(ch)
	} else {
		err = b.loop.swapChannel(ch)
	}
	if err != nil {
		_ = ch.Close()
		return fail("start", err)
	}

	b.endpoint = ep
	b.connected.Store(true)
	b.logger.Info("netsend: connected",
		"destination", ep.String(),
		"local", ch.LocalAddr().String(),
	)
	return nil
}

// RenderBlock is the real-time entry point, called once per audio block.
//
// For every configured channel with both an input and an output slice it
// writes out[c][i] = in[c][i] + offset; this happens regardless of the
// network state. When connected and prepared, in[0] is staged into a free
// transfer buffer (truncated to the vector size) and queued for sending. If
// no buffer is free the block is dropped and counted.
func (b *Bridge) RenderBlock(in, out [][]float64) {
	b.rendered.Add(1)

	off := math.Float64frombits(b.offset.Load())
	chans := min(b.settings.Channels, len(in), len(out))
	for c := range chans {
		src, dst := in[c], out[c]
		n := min(len(src), len(dst))
		for i := range n {
			dst[i] = src[i] + off
		}
	}

	if len(in) == 0 || !b.connected.Load() {
		return
	}
	r := b.ring.Load()
	if r == nil {
		return
	}
	s := r.acquire()
	if s == nil {
		b.dropped.Add(1)
		return
	}
	view := s.buf.Stage(in[0])
	if !b.loop.submit(sendRequest{slot: s, n: len(view)}) {
		s.release()
		b.dropped.Add(1)
		return
	}
	b.staged.Add(1)
}

// Ping sends payload as a single datagram through the event loop and waits
// for the outcome. It is a connectivity check for the control plane and does
// not touch the transfer buffers.
func (b *Bridge) Ping(payload []byte) error {
	if !b.connected.Load() {
		return ErrNotConnected
	}
	p := append([]byte(nil), payload...)
	err := b.loop.sendNow(p)
	var serr *SendError
	if errors.As(err, &serr) {
		b.obs.SendFailed(serr)
	} else if err == nil {
		b.obs.DatagramSent(len(p))
	}
	return err
}

// Teardown stops the event loop (which closes the socket on its own
// goroutine) and releases the transfer buffers. It is idempotent and safe to
// call without a prior Connect. A torn-down bridge cannot be reconnected.
func (b *Bridge) Teardown() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tornDown {
		return nil
	}
	b.tornDown = true
	b.connected.Store(false)

	err := b.loop.Stop()
	b.ring.Store(nil)
	b.logger.Info("netsend: torn down",
		"rendered", b.rendered.Load(),
		"staged", b.staged.Load(),
		"dropped", b.dropped.Load(),
	)
	return err
}

// onSendComplete is the completion handler, run on the event loop goroutine.
func (b *Bridge) onSendComplete(n int, err error) {
	if err == nil {
		b.obs.DatagramSent(n)
		return
	}
	var serr *SendError
	if !errors.As(err, &serr) {
		serr = &SendError{Bytes: n, Err: err}
	}
	b.logger.Warn("netsend: async send failed", "bytes", n, "err", serr.Err)
	b.obs.SendFailed(serr)
}

// reportDrops forwards newly dropped blocks to the observer. It runs on the
// event loop goroutine after each drain.
func (b *Bridge) reportDrops() {
	d := b.dropped.Load()
	if d == b.reportedDrops {
		return
	}
	b.obs.BlocksDropped(d - b.reportedDrops)
	b.reportedDrops = d
}
