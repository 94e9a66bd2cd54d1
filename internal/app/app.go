// Package app wires the netsend subsystems into a running daemon.
//
// The App owns the full lifecycle: New builds the bridge and selects the
// audio host from config, Run drives the host, the auto-connector and the
// config watcher until the context ends or the host is exhausted, and
// Shutdown tears the bridge down.
//
// For testing, inject an [audio.Host] and [observe.Metrics] via functional
// options. When an option is not provided, New creates real implementations
// from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/netsend/internal/config"
	"github.com/MrWong99/netsend/internal/health"
	"github.com/MrWong99/netsend/internal/observe"
	"github.com/MrWong99/netsend/pkg/audio"
	"github.com/MrWong99/netsend/pkg/netsend"
	"github.com/MrWong99/netsend/pkg/netsend/udp"
)

// App owns the bridge, its audio host and the background workers.
type App struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	level      *slog.LevelVar

	host      audio.Host
	metrics   *observe.Metrics
	bridge    *netsend.Bridge
	connector *Connector
	watcher   *config.Watcher
	timer     observe.RenderTimer
	reg       metric.Registration

	hostRunning atomic.Bool
	stopOnce    sync.Once
	stopErr     error
}

// Option is a functional option for New.
type Option func(*App)

// WithHost injects an audio host instead of creating one from the registry.
func WithHost(h audio.Host) Option {
	return func(a *App) { a.host = h }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithLevelVar lets config reloads adjust the log level at runtime.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithConfigWatch enables hot reload of the config file at path.
func WithConfigWatch(path string) Option {
	return func(a *App) { a.configPath = path }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg. registry resolves cfg.Host.Name unless a host
// is injected with [WithHost]. No socket is opened until the connector runs
// or the control plane asks for it.
func New(cfg *config.Config, registry *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if a.host == nil {
		if registry == nil {
			return nil, errors.New("app: no host injected and no registry given")
		}
		h, err := registry.CreateHost(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.host = h
	}

	bc := cfg.Bridge
	id := uuid.NewString()
	settings := netsend.Configure(a.logger, bc.Channels, bc.Address, bc.Port)

	var chanOpts []udp.Option
	if bc.DSCP > 0 {
		chanOpts = append(chanOpts, udp.WithTrafficClass(bc.DSCP))
	}
	if bc.WriteTimeout > 0 {
		chanOpts = append(chanOpts, udp.WithWriteTimeout(bc.WriteTimeout))
	}
	if bc.SendBuffer > 0 {
		chanOpts = append(chanOpts, udp.WithSendBuffer(bc.SendBuffer))
	}

	a.bridge = netsend.New(settings,
		netsend.WithID(id),
		netsend.WithLogger(a.logger),
		netsend.WithObserver(observe.NewBridgeObserver(a.metrics, id)),
		netsend.WithBufferSlots(bc.BufferSlots),
		netsend.WithChannelOptions(chanOpts...),
		netsend.WithOffset(bc.Offset),
	)

	reg, err := a.metrics.RegisterRender(bridgeStats{a.bridge}, &a.timer)
	if err != nil {
		return nil, fmt.Errorf("app: register render metrics: %w", err)
	}
	a.reg = reg

	a.connector = NewConnector(ConnectorConfig{
		Target:     a.bridge,
		MaxRetries: bc.Connect.MaxRetries,
		Backoff:    bc.Connect.Backoff,
		MaxBackoff: bc.Connect.MaxBackoff,
		Logger:     a.logger,
	})

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyConfig, config.WithWatchLogger(a.logger))
		if err != nil {
			_ = a.reg.Unregister()
			return nil, fmt.Errorf("app: %w", err)
		}
		a.watcher = w
	}

	return a, nil
}

// Bridge returns the streaming bridge.
func (a *App) Bridge() *netsend.Bridge { return a.bridge }

// Connector returns the background connector.
func (a *App) Connector() *Connector { return a.connector }

// HostName returns the name of the active audio host.
func (a *App) HostName() string { return a.host.Name() }

// HostRunning reports whether the audio host is currently rendering.
func (a *App) HostRunning() bool { return a.hostRunning.Load() }

// RenderTimer exposes the render duration statistics.
func (a *App) RenderTimer() *observe.RenderTimer { return &a.timer }

// HealthCheckers returns the readiness checks for this app.
func (a *App) HealthCheckers() []health.Checker {
	return append(health.BridgeCheckers(a.bridge), health.HostChecker(a.HostRunning))
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run drives the audio host and the background workers. It blocks until ctx
// is cancelled or the host stops, and returns the first worker error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return a.runHost(gctx)
	})
	g.Go(func() error { return a.connector.Run(gctx) })
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}
	if a.cfg.Bridge.AutoConnect {
		a.connector.Trigger()
	}

	return g.Wait()
}

func (a *App) runHost(ctx context.Context) error {
	want := audio.Format{
		SampleRate: a.cfg.Host.SampleRate,
		VectorSize: a.cfg.Host.VectorSize,
		Channels:   a.bridge.Settings().Channels,
	}

	a.hostRunning.Store(true)
	defer a.hostRunning.Store(false)

	a.logger.Info("app: audio host starting",
		"host", a.host.Name(),
		"sample_rate", want.SampleRate,
		"vector_size", want.VectorSize,
		"channels", want.Channels,
	)
	if err := a.host.Run(ctx, want, a.prepare, a.render); err != nil {
		return fmt.Errorf("app: host %s: %w", a.host.Name(), err)
	}
	a.logger.Info("app: audio host stopped", "host", a.host.Name())
	return nil
}

func (a *App) prepare(f audio.Format) error {
	return a.bridge.Prepare(f.SampleRate, f.VectorSize)
}

// render wraps the bridge's render path with a lock-free duration sample.
func (a *App) render(in, out [][]float64) {
	start := time.Now()
	a.bridge.RenderBlock(in, out)
	a.timer.Observe(time.Since(start))
}

// applyConfig is the watcher callback.
func (a *App) applyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.SlogLevel())
		a.logger.Info("app: log level changed", "level", d.NewLogLevel)
	}
	if d.OffsetChanged {
		a.bridge.SetOffset(d.NewOffset)
		a.logger.Info("app: offset changed", "offset", d.NewOffset)
	}
	if len(d.RestartRequired) > 0 {
		a.logger.Warn("app: config changes need a restart to take effect",
			"fields", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down the bridge and unregisters its metrics. It is safe to
// call more than once; later calls return the first result.
func (a *App) Shutdown(_ context.Context) error {
	a.stopOnce.Do(func() {
		var errs []error
		if err := a.bridge.Teardown(); err != nil {
			errs = append(errs, fmt.Errorf("app: teardown bridge: %w", err))
		}
		if err := a.reg.Unregister(); err != nil {
			errs = append(errs, fmt.Errorf("app: unregister metrics: %w", err))
		}
		a.stopErr = errors.Join(errs...)
	})
	return a.stopErr
}

// bridgeStats adapts a bridge to [observe.RenderSource].
type bridgeStats struct{ b *netsend.Bridge }

func (s bridgeStats) Rendered() uint64 { return s.b.Stats().Rendered }
func (s bridgeStats) Queued() int      { return s.b.Stats().Queued }
