package observe

import (
	"context"
	"errors"
	"os"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/netsend/pkg/netsend"
	"github.com/MrWong99/netsend/pkg/netsend/udp"
)

// BridgeObserver records bridge telemetry into [Metrics]. It implements
// [netsend.Observer].
type BridgeObserver struct {
	m     *Metrics
	id    attribute.KeyValue
	attrs metric.MeasurementOption
}

var _ netsend.Observer = (*BridgeObserver)(nil)

// NewBridgeObserver returns an observer recording into m. Every measurement
// carries the bridge_id attribute.
func NewBridgeObserver(m *Metrics, bridgeID string) *BridgeObserver {
	id := attribute.String("bridge_id", bridgeID)
	return &BridgeObserver{m: m, id: id, attrs: metric.WithAttributes(id)}
}

// DatagramSent implements [netsend.Observer].
func (o *BridgeObserver) DatagramSent(n int) {
	ctx := context.Background()
	o.m.DatagramsSent.Add(ctx, 1, o.attrs)
	o.m.DatagramBytes.Record(ctx, int64(n), o.attrs)
}

// SendFailed implements [netsend.Observer].
func (o *BridgeObserver) SendFailed(err *netsend.SendError) {
	o.m.SendErrors.Add(context.Background(), 1,
		metric.WithAttributes(o.id, attribute.String("reason", SendErrorReason(err))))
}

// BlocksDropped implements [netsend.Observer].
func (o *BridgeObserver) BlocksDropped(n uint64) {
	o.m.BlocksDropped.Add(context.Background(), int64(n), o.attrs)
}

// LoopStateChanged implements [netsend.Observer].
func (o *BridgeObserver) LoopStateChanged(state string) {
	switch state {
	case netsend.StateRunning:
		o.m.LoopRunning.Add(context.Background(), 1, o.attrs)
	case netsend.StateStopping:
		o.m.LoopRunning.Add(context.Background(), -1, o.attrs)
	}
}

// ConnectAttempted implements [netsend.Observer].
func (o *BridgeObserver) ConnectAttempted(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.m.Connects.Add(context.Background(), 1,
		metric.WithAttributes(o.id, attribute.String("status", status)))
}

// SendErrorReason classifies a send failure into a low-cardinality label.
func SendErrorReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "refused"
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return "unreachable"
	case errors.Is(err, os.ErrDeadlineExceeded):
		return "timeout"
	case errors.Is(err, udp.ErrClosed):
		return "closed"
	case errors.Is(err, netsend.ErrNotConnected):
		return "not_connected"
	}
	return "other"
}
