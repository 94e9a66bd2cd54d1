// Package control exposes the bridge's runtime operations over HTTP.
//
//   - POST /connect   (re)connects the bridge; ?ping=1 also sends a test datagram.
//   - PUT  /offset    sets the pass-through offset from {"offset": <float>}.
//   - GET  /status    reports connection state and counters.
//
// All responses are JSON. Failures carry an "error" field.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/MrWong99/netsend/internal/observe"
	"github.com/MrWong99/netsend/internal/resilience"
	"github.com/MrWong99/netsend/pkg/netsend"
	"github.com/MrWong99/netsend/pkg/netsend/udp"
)

// PingPayload is the datagram sent by POST /connect?ping=1.
var PingPayload = []byte("PING, the freak on!")

// maxBodyBytes limits request bodies.
const maxBodyBytes = 4 << 10

// Bridge is the subset of [netsend.Bridge] the handlers drive.
type Bridge interface {
	ID() string
	Connect(ctx context.Context) error
	Ping(payload []byte) error
	Offset() float64
	SetOffset(offset float64)
	Connected() bool
	LoopState() string
	Endpoint() (udp.Endpoint, bool)
	Capacity() int
	Stats() netsend.Stats
}

var _ Bridge = (*netsend.Bridge)(nil)

// Status is the body of GET /status and of successful mutations.
type Status struct {
	ID          string  `json:"id"`
	Connected   bool    `json:"connected"`
	LoopState   string  `json:"loop_state"`
	Destination string  `json:"destination,omitempty"`
	Offset      float64 `json:"offset"`
	Capacity    int     `json:"capacity"`
	Rendered    uint64  `json:"rendered"`
	Staged      uint64  `json:"staged"`
	Dropped     uint64  `json:"dropped"`
	Queued      int     `json:"queued"`
}

type errorBody struct {
	Error string `json:"error"`
}

// OffsetRequest is the body of PUT /offset.
type OffsetRequest struct {
	Offset *float64 `json:"offset"`
}

// Handler serves the control endpoints for one bridge.
type Handler struct {
	bridge  Bridge
	breaker *resilience.Breaker
}

// Option configures a [Handler].
type Option func(*Handler)

// WithBreaker routes POST /connect through br. While br is open the endpoint
// answers 503 with a Retry-After header instead of touching the socket.
func WithBreaker(br *resilience.Breaker) Option {
	return func(h *Handler) { h.breaker = br }
}

// New creates a [Handler] for b.
func New(b Bridge, opts ...Option) *Handler {
	h := &Handler{bridge: b}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds the control routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /connect", h.Connect)
	mux.HandleFunc("PUT /offset", h.SetOffset)
	mux.HandleFunc("GET /status", h.Status)
}

// Connect connects the bridge, replacing any previous socket. With ping=1 a
// test datagram is sent afterwards and its outcome decides the response.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ping, err := parseBool(r.URL.Query().Get("ping"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "ping: " + err.Error()})
		return
	}

	connect := func() error { return h.bridge.Connect(ctx) }
	if h.breaker != nil {
		err = h.breaker.Do(connect)
	} else {
		err = connect()
	}
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, netsend.ErrTornDown):
			status = http.StatusConflict
		case errors.Is(err, resilience.ErrCircuitOpen):
			status = http.StatusServiceUnavailable
			secs := int(math.Ceil(h.breaker.RetryAfter().Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		}
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}

	if ping {
		if err := h.bridge.Ping(PingPayload); err != nil {
			observe.WithTrace(ctx, slog.Default()).Warn("control: ping failed", "err", err)
			writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, h.snapshot())
}

// SetOffset updates the pass-through offset.
func (h *Handler) SetOffset(w http.ResponseWriter, r *http.Request) {
	var req OffsetRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "decode body: " + err.Error()})
		return
	}
	if req.Offset == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: `missing "offset"`})
		return
	}
	if math.IsInf(*req.Offset, 0) || math.IsNaN(*req.Offset) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("offset %v is not finite", *req.Offset)})
		return
	}

	h.bridge.SetOffset(*req.Offset)
	observe.WithTrace(r.Context(), slog.Default()).Info("control: offset set", "offset", *req.Offset)
	writeJSON(w, http.StatusOK, h.snapshot())
}

// Status reports the bridge state.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot())
}

func (h *Handler) snapshot() Status {
	st := h.bridge.Stats()
	s := Status{
		ID:        h.bridge.ID(),
		Connected: h.bridge.Connected(),
		LoopState: h.bridge.LoopState(),
		Offset:    h.bridge.Offset(),
		Capacity:  h.bridge.Capacity(),
		Rendered:  st.Rendered,
		Staged:    st.Staged,
		Dropped:   st.Dropped,
		Queued:    st.Queued,
	}
	if ep, ok := h.bridge.Endpoint(); ok {
		s.Destination = ep.String()
	}
	return s
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
