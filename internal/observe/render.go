package observe

import (
	"sync/atomic"
	"time"
)

// RenderTimer tracks render callback durations without locks or allocation,
// so it can be fed from the real-time goroutine. Observe is meant for a
// single writer; TakeMax may be called from any goroutine.
type RenderTimer struct {
	maxNs atomic.Int64
	count atomic.Uint64
	sumNs atomic.Int64
}

// Observe records one render duration.
func (t *RenderTimer) Observe(d time.Duration) {
	n := int64(d)
	t.count.Add(1)
	t.sumNs.Add(n)
	for {
		cur := t.maxNs.Load()
		if n <= cur || t.maxNs.CompareAndSwap(cur, n) {
			return
		}
	}
}

// TakeMax returns the longest duration observed since the previous call and
// resets it.
func (t *RenderTimer) TakeMax() time.Duration {
	return time.Duration(t.maxNs.Swap(0))
}

// Mean returns the mean duration over all observations.
func (t *RenderTimer) Mean() time.Duration {
	n := t.count.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(t.sumNs.Load() / int64(n))
}

// Count returns the number of observations.
func (t *RenderTimer) Count() uint64 { return t.count.Load() }
