package netsend

import (
	"runtime"
	"sync"
	"testing"
)

func TestSPSCQueue_FIFO(t *testing.T) {
	q := newSPSCQueue(3)
	if len(q.buf) != 4 {
		t.Fatalf("capacity = %d, want 4 (next power of two)", len(q.buf))
	}

	for i := 1; i <= 4; i++ {
		if !q.push(sendRequest{n: i}) {
			t.Fatalf("push %d failed", i)
		}
	}
	if q.push(sendRequest{n: 5}) {
		t.Fatal("push succeeded on a full queue")
	}
	if q.len() != 4 {
		t.Errorf("len = %d, want 4", q.len())
	}

	for i := 1; i <= 4; i++ {
		r, ok := q.pop()
		if !ok || r.n != i {
			t.Fatalf("pop = (%d, %v), want (%d, true)", r.n, ok, i)
		}
	}
	if _, ok := q.pop(); ok {
		t.Fatal("pop succeeded on an empty queue")
	}
}

func TestSPSCQueue_Wraparound(t *testing.T) {
	q := newSPSCQueue(2)
	for i := range 1000 {
		if !q.push(sendRequest{n: i}) {
			t.Fatalf("push %d failed", i)
		}
		r, ok := q.pop()
		if !ok || r.n != i {
			t.Fatalf("pop = (%d, %v), want (%d, true)", r.n, ok, i)
		}
	}
	if q.len() != 0 {
		t.Errorf("len = %d, want 0", q.len())
	}
}

func TestSPSCQueue_PopClearsSlot(t *testing.T) {
	q := newSPSCQueue(1)
	q.push(sendRequest{slot: &slot{}, n: 1})
	q.pop()
	if q.buf[0].slot != nil {
		t.Error("popped entry still references its slot")
	}
}

func TestSPSCQueue_Concurrent(t *testing.T) {
	const total = 100000
	q := newSPSCQueue(8)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if !q.push(sendRequest{n: i}) {
				runtime.Gosched()
				continue
			}
			i++
		}
	}()

	for want := 0; want < total; {
		r, ok := q.pop()
		if !ok {
			runtime.Gosched()
			continue
		}
		if r.n != want {
			t.Fatalf("pop = %d, want %d", r.n, want)
		}
		want++
	}
	wg.Wait()
}
