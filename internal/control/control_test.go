package control

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/netsend/internal/resilience"
	"github.com/MrWong99/netsend/pkg/netsend"
)

func newBridge(t *testing.T, port string) *netsend.Bridge {
	t.Helper()
	quiet := slog.New(slog.DiscardHandler)
	b := netsend.New(netsend.Configure(quiet, 1, "127.0.0.1", port), netsend.WithLogger(quiet))
	t.Cleanup(func() { _ = b.Teardown() })
	return b
}

func newReceiver(t *testing.T) (*net.UDPConn, string) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, strconv.Itoa(conn.LocalAddr().(*net.UDPAddr).Port)
}

func do(t *testing.T, b Bridge, method, target, body string, opts ...Option) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	mux := http.NewServeMux()
	New(b, opts...).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))

	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("%s %s: decode JSON: %v", method, target, err)
	}
	return rec, out
}

func TestStatus_Idle(t *testing.T) {
	t.Parallel()

	b := newBridge(t, "9")
	rec, body := do(t, b, "GET", "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["connected"] != false || body["loop_state"] != netsend.StateUninitialized {
		t.Errorf("body = %v", body)
	}
	if body["id"] != b.ID() {
		t.Errorf("id = %v, want %s", body["id"], b.ID())
	}
	if _, ok := body["destination"]; ok {
		t.Error("destination reported before connect")
	}
}

func TestConnect_WithPing(t *testing.T) {
	t.Parallel()

	rx, port := newReceiver(t)
	b := newBridge(t, port)

	rec, body := do(t, b, "POST", "/connect?ping=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", rec.Code, body)
	}
	if body["connected"] != true || body["loop_state"] != netsend.StateRunning {
		t.Errorf("body = %v", body)
	}
	if body["destination"] != "[::ffff:127.0.0.1]:"+port {
		t.Errorf("destination = %v", body["destination"])
	}

	buf := make([]byte, 128)
	_ = rx.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, _, err := rx.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read ping: %v", err)
	}
	if string(buf[:n]) != string(PingPayload) {
		t.Errorf("ping payload = %q", buf[:n])
	}
}

func TestConnect_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		port     string
		target   string
		teardown bool
		wantCode int
	}{
		{name: "bad ping flag", port: "9", target: "/connect?ping=maybe", wantCode: http.StatusBadRequest},
		{name: "unresolvable port", port: "99999", target: "/connect", wantCode: http.StatusBadGateway},
		{name: "torn down", port: "9", target: "/connect", teardown: true, wantCode: http.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			b := newBridge(t, tc.port)
			if tc.teardown {
				_ = b.Teardown()
			}
			rec, body := do(t, b, "POST", tc.target, "")
			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if body["error"] == "" || body["error"] == nil {
				t.Errorf("missing error field: %v", body)
			}
		})
	}
}

func TestSetOffset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantOffset float64
	}{
		{name: "valid", body: `{"offset": 0.25}`, wantCode: http.StatusOK, wantOffset: 0.25},
		{name: "negative", body: `{"offset": -1}`, wantCode: http.StatusOK, wantOffset: -1},
		{name: "missing", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "unknown field", body: `{"offset": 1, "gain": 2}`, wantCode: http.StatusBadRequest},
		{name: "not json", body: `0.5`, wantCode: http.StatusBadRequest},
		{name: "wrong type", body: `{"offset": "high"}`, wantCode: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			b := newBridge(t, "9")
			rec, body := do(t, b, "PUT", "/offset", tc.body)
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (%v)", rec.Code, tc.wantCode, body)
			}
			if tc.wantCode == http.StatusOK {
				if b.Offset() != tc.wantOffset || body["offset"] != tc.wantOffset {
					t.Errorf("offset = %v / %v, want %v", b.Offset(), body["offset"], tc.wantOffset)
				}
			} else if b.Offset() != 0 {
				t.Errorf("offset changed to %v on rejected request", b.Offset())
			}
		})
	}
}

func TestConnect_BreakerOpens(t *testing.T) {
	t.Parallel()

	b := newBridge(t, "99999")
	br := resilience.NewBreaker(resilience.BreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Minute,
		Logger:       slog.New(slog.DiscardHandler),
	})

	for i := range 2 {
		if rec, _ := do(t, b, "POST", "/connect", "", WithBreaker(br)); rec.Code != http.StatusBadGateway {
			t.Fatalf("attempt %d: status = %d, want 502", i+1, rec.Code)
		}
	}
	rec, body := do(t, b, "POST", "/connect", "", WithBreaker(br))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if body["error"] != resilience.ErrCircuitOpen.Error() {
		t.Errorf("error = %v", body["error"])
	}
}
