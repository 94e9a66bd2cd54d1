// Package resilience guards operator-triggered operations against repeated
// failure.
//
// [Breaker] is a three-state circuit breaker (closed, open, half-open). After
// MaxFailures consecutive failures it opens and rejects calls with
// [ErrCircuitOpen] until ResetTimeout has elapsed; then exactly one probe is
// let through, whose outcome closes or re-opens the breaker.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker states.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name labels log messages.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// Logger defaults to [slog.Default].
	Logger *slog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Breaker is safe for concurrent use.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu       sync.Mutex
	state    *fsm.FSM
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed [Breaker].
func NewBreaker(cfg BreakerConfig) *Breaker {
	b := &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
	if b.maxFailures <= 0 {
		b.maxFailures = 5
	}
	if b.resetTimeout <= 0 {
		b.resetTimeout = 30 * time.Second
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.now == nil {
		b.now = time.Now
	}
	b.state = fsm.NewFSM(
		StateClosed,
		fsm.Events{
			{Name: "trip", Src: []string{StateClosed, StateHalfOpen}, Dst: StateOpen},
			{Name: "probe", Src: []string{StateOpen}, Dst: StateHalfOpen},
			{Name: "recover", Src: []string{StateHalfOpen, StateOpen}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				lvl := slog.LevelInfo
				if e.Dst == StateOpen {
					lvl = slog.LevelWarn
				}
				b.logger.Log(context.Background(), lvl, "resilience: breaker state",
					"name", b.name, "from", e.Src, "to", e.Dst, "failures", b.failures)
			},
		},
	)
	return b
}

// Do runs fn unless the breaker is open. While half-open, calls other than
// the single in-flight probe are rejected.
func (b *Breaker) Do(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}

	err = fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if probe {
		b.probing = false
	}
	if err == nil {
		b.failures = 0
		if b.state.Current() != StateClosed {
			b.event("recover")
		}
		return nil
	}

	b.failures++
	if probe || b.failures >= b.maxFailures {
		b.openedAt = b.now()
		if b.state.Current() != StateOpen {
			b.event("trip")
		}
	}
	return err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state.Current() {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false, ErrCircuitOpen
		}
		b.event("probe")
		b.probing = true
		return true, nil
	case StateHalfOpen:
		if b.probing {
			return false, ErrCircuitOpen
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

// event fires a transition. Must be called with b.mu held.
func (b *Breaker) event(name string) {
	_ = b.state.Event(context.Background(), name)
}

// State returns the current state.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Current()
}

// RetryAfter returns how long the breaker will keep rejecting calls, or zero.
func (b *Breaker) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.Current() != StateOpen {
		return 0
	}
	return max(b.resetTimeout-b.now().Sub(b.openedAt), 0)
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	if b.state.Current() != StateClosed {
		b.event("recover")
	}
}
