package netsend

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/looplab/fsm"

	"github.com/MrWong99/netsend/pkg/netsend/udp"
)

// Event loop states.
const (
	StateUninitialized = "uninitialized"
	StateRunning       = "running"
	StateStopping      = "stopping"
	StateStopped       = "stopped"
)

// completionFunc receives the outcome of one datagram on the loop goroutine.
// err is nil or a *SendError.
type completionFunc func(n int, err error)

// EventLoop is the worker context of a [Bridge]. It owns the datagram channel
// once started and is the only goroutine that touches the socket. Send
// requests reach it through a lock-free queue plus a wake signal; control
// operations are marshalled onto it with Do.
//
// The loop runs on a goroutine locked to its own OS thread so that socket
// writes never share a thread with the render path.
//
// Stop does not synchronise with the render path. A submit that passed the
// running check just before Stop may push after the final drain; that request
// is never sent, its slot stays busy and Queued keeps counting it. The bridge
// discards its ring on Teardown, so the stale entry is unreachable.
type EventLoop struct {
	logger     *slog.Logger
	queue      *spscQueue
	onComplete completionFunc
	afterDrain func()
	onState    func(state string)

	wake chan struct{}
	ctl  chan func()
	stop chan struct{}
	done chan struct{}

	running atomic.Bool

	// mu serialises Start and Stop; the render path never takes it.
	mu    sync.Mutex
	state *fsm.FSM

	// ch is owned by the loop goroutine after Start.
	ch *udp.Channel
}

func newEventLoop(capacity int, logger *slog.Logger, onComplete completionFunc) *EventLoop {
	l := &EventLoop{
		logger:     logger,
		queue:      newSPSCQueue(capacity),
		onComplete: onComplete,
		wake:       make(chan struct{}, 1),
		ctl:        make(chan func()),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	l.state = fsm.NewFSM(
		StateUninitialized,
		fsm.Events{
			{Name: "start", Src: []string{StateUninitialized}, Dst: StateRunning},
			{Name: "stop", Src: []string{StateRunning}, Dst: StateStopping},
			{Name: "drained", Src: []string{StateStopping}, Dst: StateStopped},
			{Name: "abandon", Src: []string{StateUninitialized}, Dst: StateStopped},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				l.logger.Debug("netsend: loop state", "from", e.Src, "to", e.Dst)
				if l.onState != nil {
					l.onState(e.Dst)
				}
			},
		},
	)
	return l
}

// State returns the current lifecycle state.
func (l *EventLoop) State() string {
	return l.state.Current()
}

// Running reports whether the loop accepts requests. Safe to call from the
// render path.
func (l *EventLoop) Running() bool {
	return l.running.Load()
}

// Start hands ch to the loop and spawns the worker goroutine. It fails if the
// loop has already been started or stopped.
func (l *EventLoop) Start(ch *udp.Channel) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.state.Event(context.Background(), "start"); err != nil {
		return fmt.Errorf("netsend: start loop: %w", err)
	}
	l.ch = ch
	l.running.Store(true)
	go l.run()
	return nil
}

// Stop asks the loop to send what is still queued, close the channel and
// exit, then waits for it. Stop is idempotent and safe on a loop that was
// never started.
func (l *EventLoop) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx := context.Background()
	switch l.state.Current() {
	case StateStopped:
		return nil
	case StateUninitialized:
		return l.state.Event(ctx, "abandon")
	}

	l.running.Store(false)
	if err := l.state.Event(ctx, "stop"); err != nil {
		return fmt.Errorf("netsend: stop loop: %w", err)
	}
	close(l.stop)
	<-l.done
	return l.state.Event(ctx, "drained")
}

// Do runs fn on the loop goroutine and waits for it to return. It returns
// ErrLoopStopped if the loop is not running.
func (l *EventLoop) Do(fn func()) error {
	if !l.running.Load() {
		return ErrLoopStopped
	}
	finished := make(chan struct{})
	select {
	case l.ctl <- func() { defer close(finished); fn() }:
	case <-l.done:
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// swapChannel replaces the loop's channel, closing the previous one on the
// loop goroutine.
func (l *EventLoop) swapChannel(ch *udp.Channel) error {
	return l.Do(func() {
		if l.ch != nil {
			if err := l.ch.Close(); err != nil {
				l.logger.Warn("netsend: close previous channel", "err", err)
			}
		}
		l.ch = ch
	})
}

// sendNow writes p on the loop goroutine and returns the outcome to the
// caller. It bypasses the queue and is meant for control-plane traffic.
func (l *EventLoop) sendNow(p []byte) error {
	var serr error
	if err := l.Do(func() { serr = l.write(p) }); err != nil {
		return err
	}
	return serr
}

// submit enqueues r and wakes the loop. It never blocks; false means the
// loop is not running or the queue is full. A true result racing with Stop
// does not guarantee delivery.
func (l *EventLoop) submit(r sendRequest) bool {
	if !l.running.Load() || !l.queue.push(r) {
		return false
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

func (l *EventLoop) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.done)

	l.logger.Info("netsend: opening loop")
	for {
		select {
		case <-l.wake:
			l.drain()
		case fn := <-l.ctl:
			fn()
		case <-l.stop:
			l.drain()
			if l.ch != nil {
				if err := l.ch.Close(); err != nil {
					l.logger.Warn("netsend: close channel", "err", err)
				}
			}
			l.logger.Info("netsend: loop closing")
			return
		}
	}
}

// drain sends every queued request and runs its completion handler.
func (l *EventLoop) drain() {
	for {
		r, ok := l.queue.pop()
		if !ok {
			break
		}
		err := l.write(r.slot.buf.data[:r.n])
		r.slot.release()
		if l.onComplete != nil {
			l.onComplete(r.n, err)
		}
	}
	if l.afterDrain != nil {
		l.afterDrain()
	}
}

// write sends one datagram on the current channel. Failures are returned as
// *SendError.
func (l *EventLoop) write(p []byte) error {
	if l.ch == nil {
		return &SendError{Bytes: len(p), Err: ErrNotConnected}
	}
	if _, err := l.ch.Send(p); err != nil {
		return &SendError{Bytes: len(p), Err: err}
	}
	return nil
}
