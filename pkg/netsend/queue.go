package netsend

import "sync/atomic"

// sendRequest is one outstanding transmission: a staged slot and the number
// of bytes to send from it. It lives in the queue from push until the event
// loop pops it, and is owned by the loop afterwards.
type sendRequest struct {
	slot *slot
	n    int
}

// spscQueue is a bounded lock-free single-producer/single-consumer ring. The
// render goroutine is the only producer; the event loop is the only consumer.
// Neither push nor pop blocks or allocates.
type spscQueue struct {
	buf  []sendRequest
	mask uint64

	head atomic.Uint64 // next index to pop; written by the consumer
	tail atomic.Uint64 // next index to push; written by the producer
}

// newSPSCQueue returns a queue holding at least capacity requests. The
// capacity is rounded up to a power of two.
func newSPSCQueue(capacity int) *spscQueue {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &spscQueue{
		buf:  make([]sendRequest, size),
		mask: uint64(size - 1),
	}
}

// push appends r and reports whether there was room.
func (q *spscQueue) push(r sendRequest) bool {
	t := q.tail.Load()
	if t-q.head.Load() == uint64(len(q.buf)) {
		return false
	}
	q.buf[t&q.mask] = r
	q.tail.Store(t + 1)
	return true
}

// pop removes the oldest request. ok is false when the queue is empty.
func (q *spscQueue) pop() (r sendRequest, ok bool) {
	h := q.head.Load()
	if h == q.tail.Load() {
		return sendRequest{}, false
	}
	r = q.buf[h&q.mask]
	q.buf[h&q.mask] = sendRequest{}
	q.head.Store(h + 1)
	return r, true
}

// len returns a snapshot of the number of queued requests.
func (q *spscQueue) len() int {
	return int(q.tail.Load() - q.head.Load())
}
