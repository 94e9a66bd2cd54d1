// Package observe provides application-wide observability primitives for
// netsend: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
//
// Nothing in this package is called from the audio render path. Per-datagram
// telemetry arrives through [BridgeObserver] on the bridge's event loop, and
// render-path state is sampled by observable instruments at collection time.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all netsend metrics.
const meterName = "github.com/MrWong99/netsend"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	meter metric.Meter

	// --- Datagram path (event loop) ---

	// DatagramsSent counts datagrams written to the socket.
	DatagramsSent metric.Int64Counter

	// DatagramBytes records the size of every written datagram.
	DatagramBytes metric.Int64Histogram

	// SendErrors counts failed datagram writes. Use with attribute:
	//   attribute.String("reason", ...)
	SendErrors metric.Int64Counter

	// BlocksDropped counts render blocks not transmitted because no transfer
	// buffer was free.
	BlocksDropped metric.Int64Counter

	// --- Control plane ---

	// Connects counts connect attempts. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	Connects metric.Int64Counter

	// LoopRunning is 1 while a bridge event loop is running.
	LoopRunning metric.Int64UpDownCounter

	// --- Render path (sampled) ---

	// RenderDuration reports the longest render callback since the previous
	// collection.
	RenderDuration metric.Float64ObservableGauge

	// BlocksRendered reports the total number of render callbacks.
	BlocksRendered metric.Int64ObservableCounter

	// QueueDepth reports the number of datagrams waiting for the event loop.
	QueueDepth metric.Int64ObservableGauge

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// datagramBuckets are byte-size boundaries covering vector sizes 16..8192.
var datagramBuckets = []float64{
	128, 256, 512, 1024, 2048, 4096, 8192, 16384, 32768, 65536,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	// Counters.
	if met.DatagramsSent, err = m.Int64Counter("netsend.datagrams.sent",
		metric.WithDescription("Total datagrams written to the socket."),
	); err != nil {
		return nil, err
	}
	if met.SendErrors, err = m.Int64Counter("netsend.send.errors",
		metric.WithDescription("Total failed datagram writes by reason."),
	); err != nil {
		return nil, err
	}
	if met.BlocksDropped, err = m.Int64Counter("netsend.blocks.dropped",
		metric.WithDescription("Render blocks not transmitted because every transfer buffer was in flight."),
	); err != nil {
		return nil, err
	}
	if met.Connects, err = m.Int64Counter("netsend.connects",
		metric.WithDescription("Connect attempts by status."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.DatagramBytes, err = m.Int64Histogram("netsend.datagram.bytes",
		metric.WithDescription("Size of written datagrams."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(datagramBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.LoopRunning, err = m.Int64UpDownCounter("netsend.loop.running",
		metric.WithDescription("Number of running bridge event loops."),
	); err != nil {
		return nil, err
	}

	// Observables, fed by RegisterRender.
	if met.RenderDuration, err = m.Float64ObservableGauge("netsend.render.duration",
		metric.WithDescription("Longest render callback since the previous collection."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.BlocksRendered, err = m.Int64ObservableCounter("netsend.blocks.rendered",
		metric.WithDescription("Total render callbacks."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64ObservableGauge("netsend.queue.depth",
		metric.WithDescription("Datagrams waiting for the event loop."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("netsend.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordConnect records one connect attempt.
func (m *Metrics) RecordConnect(ctx context.Context, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Connects.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RenderSource is sampled by the observable render instruments.
type RenderSource interface {
	// Rendered returns the total number of render callbacks.
	Rendered() uint64

	// Queued returns the number of datagrams waiting for the event loop.
	Queued() int
}

// RegisterRender wires src and timer into the observable instruments. Call
// Unregister on the returned registration when the source goes away.
func (m *Metrics) RegisterRender(src RenderSource, timer *RenderTimer) (metric.Registration, error) {
	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(m.RenderDuration, timer.TakeMax().Seconds())
		o.ObserveInt64(m.BlocksRendered, int64(src.Rendered()))
		o.ObserveInt64(m.QueueDepth, int64(src.Queued()))
		return nil
	}, m.RenderDuration, m.BlocksRendered, m.QueueDepth)
}
