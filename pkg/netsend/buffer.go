package netsend

import (
	"sync/atomic"

	"github.com/MrWong99/netsend/pkg/audio"
)

// TransferBuffer stages the raw bytes of one audio block for transmission.
// Its capacity is vectorSize × 8 bytes and is fixed until the next Resize.
//
// TransferBuffer is not safe for concurrent use. A view returned by Stage
// aliases the buffer: it is overwritten by the next Stage and detached by
// Resize. The caller must not stage into a buffer whose previous view is still
// being transmitted; [Bridge] guarantees this with a ring of buffers.
type TransferBuffer struct {
	data       []byte
	vectorSize int
}

// NewTransferBuffer allocates a buffer for vectorSize samples.
func NewTransferBuffer(vectorSize int) *TransferBuffer {
	b := &TransferBuffer{}
	b.Resize(vectorSize)
	return b
}

// Resize reallocates the buffer for vectorSize samples. Views returned by
// earlier Stage calls keep referring to the old memory.
func (b *TransferBuffer) Resize(vectorSize int) {
	vectorSize = max(vectorSize, 0)
	b.vectorSize = vectorSize
	b.data = make([]byte, vectorSize*audio.SampleSize)
}

// Stage copies samples into the buffer and returns a read-only view of exactly
// Cap() bytes. Samples beyond the vector size are truncated; a short block
// leaves the tail zeroed.
func (b *TransferBuffer) Stage(samples []float64) []byte {
	n := audio.EncodeFloat64(b.data, samples)
	clear(b.data[n:])
	return b.data
}

// Cap returns the buffer capacity in bytes.
func (b *TransferBuffer) Cap() int { return len(b.data) }

// VectorSize returns the number of samples the buffer holds.
func (b *TransferBuffer) VectorSize() int { return b.vectorSize }

// slot is one ring entry. busy is set by the render goroutine when it stages
// into the slot and cleared by the event loop once the datagram has been
// written, so neither side touches bytes the other may be using.
type slot struct {
	buf  *TransferBuffer
	busy atomic.Bool
}

func (s *slot) release() { s.busy.Store(false) }

// bufferRing rotates render blocks across a fixed set of transfer buffers
// (two by default: ping-pong). acquire is called only from the render
// goroutine; release may be called from any goroutine.
type bufferRing struct {
	slots []slot
	next  int
}

func newBufferRing(slots, vectorSize int) *bufferRing {
	slots = max(slots, 1)
	r := &bufferRing{slots: make([]slot, slots)}
	for i := range r.slots {
		r.slots[i].buf = NewTransferBuffer(vectorSize)
	}
	return r
}

// acquire returns the next free slot, marked busy, or nil if every slot is
// still in flight. It never blocks.
func (r *bufferRing) acquire() *slot {
	n := len(r.slots)
	for i := range n {
		idx := (r.next + i) % n
		s := &r.slots[idx]
		if s.busy.CompareAndSwap(false, true) {
			r.next = (idx + 1) % n
			return s
		}
	}
	return nil
}

// capacity returns the per-slot byte capacity.
func (r *bufferRing) capacity() int {
	return r.slots[0].buf.Cap()
}
