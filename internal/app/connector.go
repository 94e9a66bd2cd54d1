package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/netsend/internal/observe"
	"github.com/MrWong99/netsend/pkg/netsend"
)

// Default retry parameters.
const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Target is something that can be connected, usually a [netsend.Bridge].
type Target interface {
	Connect(ctx context.Context) error
}

// ConnectorConfig configures a [Connector].
type ConnectorConfig struct {
	// Target is connected on every trigger.
	Target Target

	// MaxRetries is the number of attempts after the first one fails.
	// Defaults to 10 if zero.
	MaxRetries int

	// Backoff is the delay before the first retry. It doubles on every
	// attempt up to MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff caps the delay. Defaults to 30s if zero.
	MaxBackoff time.Duration

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// Connector connects a [Target] in the background with exponential backoff.
// Each call to [Connector.Trigger] starts one connect cycle; triggers that
// arrive while a cycle is running are coalesced.
type Connector struct {
	target     Target
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	logger     *slog.Logger

	trigger chan struct{}
	result  chan error
}

// NewConnector creates a [Connector]. Call [Connector.Run] to start it.
func NewConnector(cfg ConnectorConfig) *Connector {
	c := &Connector{
		target:     cfg.Target,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		maxBackoff: cfg.MaxBackoff,
		logger:     cfg.Logger,
		trigger:    make(chan struct{}, 1),
		result:     make(chan error, 1),
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.backoff <= 0 {
		c.backoff = defaultBackoff
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = defaultMaxBackoff
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Trigger requests a connect cycle. It never blocks.
func (c *Connector) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Results delivers the outcome of each finished cycle (nil on success). The
// channel holds one value; older unread outcomes are discarded.
func (c *Connector) Results() <-chan error { return c.result }

// Run processes triggers until ctx is cancelled. It always returns nil.
func (c *Connector) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.trigger:
			c.publish(c.connect(ctx))
		}
	}
}

func (c *Connector) publish(err error) {
	select {
	case <-c.result:
	default:
	}
	c.result <- err
}

// connect attempts the target up to maxRetries+1 times.
func (c *Connector) connect(ctx context.Context) error {
	delay := c.backoff
	var err error

	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		if err = c.attempt(ctx, attempt); err == nil {
			if attempt > 1 {
				c.logger.Info("app: connected after retry", "attempt", attempt)
			}
			return nil
		}
		if errors.Is(err, netsend.ErrTornDown) {
			return err
		}
		if attempt > c.maxRetries {
			break
		}

		c.logger.Warn("app: connect attempt failed",
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"retry_in", delay,
			"err", err,
		)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay = min(delay*2, c.maxBackoff)
	}

	c.logger.Error("app: connect failed after max retries",
		"max_retries", c.maxRetries,
		"err", err,
	)
	return err
}

func (c *Connector) attempt(ctx context.Context, attempt int) error {
	ctx, span := observe.StartSpan(ctx, "netsend.connect",
		trace.WithAttributes(attribute.Int("attempt", attempt)))
	err := c.target.Connect(ctx)
	observe.EndSpan(span, err)
	return err
}
