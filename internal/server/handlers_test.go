package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vanshika/fraudstream/internal/domain"
)

type stubStream struct {
	status    domain.Status
	startErr  error
	starts    int
	stops     int
	overrides domain.StreamOverrides
}

func (s *stubStream) Start(ctx context.Context, overrides domain.StreamOverrides) (domain.Status, error) {
	s.starts++
	s.overrides = overrides
	if s.startErr != nil {
		return s.status, s.startErr
	}
	s.status.Running = true
	return s.status, nil
}

func (s *stubStream) Stop() {
	s.stops++
	s.status.Running = false
}

func (s *stubStream) Status() domain.Status {
	return s.status
}

type stubObserver struct {
	routes []string
}

func (o *stubObserver) Observe(method, route string, status int, took time.Duration) {
	o.routes = append(o.routes, fmt.Sprintf("%s %s %d", method, route, status))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(stream *stubStream, health HealthService, observer RequestObserver) http.Handler {
	deps := RouterDependencies{
		Health: health,
		Stream: NewStreamHandlers(discardLogger(), stream),
	}
	if observer != nil {
		deps.RequestMetrics = observer
	}
	return NewRouter(discardLogger(), deps)
}

func serve(handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthReportsOK(t *testing.T) {
	rec := serve(newTestRouter(&stubStream{}, nil, nil), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestHealthzReportsProbeFailure(t *testing.T) {
	probe := HealthFunc(func(ctx context.Context) error { return errors.New("dial tcp: refused") })
	rec := serve(newTestRouter(&stubStream{}, probe, nil), http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["status"] != "degraded" || !strings.Contains(payload["error"], "refused") {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestStatusReturnsSnapshot(t *testing.T) {
	size := 42
	stream := &stubStream{status: domain.Status{
		Running:       true,
		LastBatchSize: &size,
		IntervalSecs:  20,
		FraudRate:     0.001727,
		BatchMin:      500,
		BatchMax:      6000,
		Topic:         "creditcard-transactions",
		Bootstrap:     "localhost:9092",
	}}

	rec := serve(newTestRouter(stream, nil, nil), http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["last_batch_size"] != float64(42) || payload["topic"] != "creditcard-transactions" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if v, ok := payload["last_sent_at_epoch"]; !ok || v != nil {
		t.Fatalf("expected null last_sent_at_epoch, got %v", v)
	}
}

func TestStartPassesOverrides(t *testing.T) {
	stream := &stubStream{}
	rec := serve(newTestRouter(stream, nil, nil), http.MethodPost, "/start", `{"batch_min": 10, "fraud_rate": 0.5}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stream.starts != 1 {
		t.Fatalf("expected one start, got %d", stream.starts)
	}
	o := stream.overrides
	if o.BatchMin == nil || *o.BatchMin != 10 || o.FraudRate == nil || *o.FraudRate != 0.5 {
		t.Fatalf("unexpected overrides %+v", o)
	}
	if o.BatchMax != nil || o.IntervalSecs != nil {
		t.Fatalf("absent fields must stay nil: %+v", o)
	}
}

func TestStartAcceptsEmptyBody(t *testing.T) {
	stream := &stubStream{}
	rec := serve(newTestRouter(stream, nil, nil), http.MethodPost, "/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stream.starts != 1 {
		t.Fatalf("expected one start, got %d", stream.starts)
	}
}

func TestStartRejectsUnknownFields(t *testing.T) {
	stream := &stubStream{}
	rec := serve(newTestRouter(stream, nil, nil), http.MethodPost, "/start", `{"batch_size": 3}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if stream.starts != 0 {
		t.Fatal("start must not be called for a malformed body")
	}
}

func TestStartMapsErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &domain.ValidationError{Field: "batch_min", Reason: "must be <= batch_max"}, http.StatusBadRequest},
		{"broker", fmt.Errorf("%w: ping: refused", domain.ErrBrokerUnavailable), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stream := &stubStream{startErr: tc.err}
			rec := serve(newTestRouter(stream, nil, nil), http.MethodPost, "/start", `{}`)
			if rec.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestStopReturnsStatus(t *testing.T) {
	stream := &stubStream{status: domain.Status{Running: true}}
	rec := serve(newTestRouter(stream, nil, nil), http.MethodPost, "/stop", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var payload domain.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Running || stream.stops != 1 {
		t.Fatalf("expected stopped stream, got %+v after %d stops", payload, stream.stops)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := serve(newTestRouter(&stubStream{}, nil, nil), http.MethodGet, "/start", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
	if rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("unexpected Allow header %q", rec.Header().Get("Allow"))
	}
}

func TestRequestObserverUsesRoutePattern(t *testing.T) {
	observer := &stubObserver{}
	router := newTestRouter(&stubStream{}, nil, observer)

	serve(router, http.MethodGet, "/status", "")
	serve(router, http.MethodGet, "/nope/123", "")

	want := []string{"GET /status 200", "GET unmatched 404"}
	if len(observer.routes) != len(want) {
		t.Fatalf("unexpected observations %v", observer.routes)
	}
	for i := range want {
		if observer.routes[i] != want[i] {
			t.Fatalf("observation %d = %q, want %q", i, observer.routes[i], want[i])
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	router := NewRouter(discardLogger(), RouterDependencies{
		Stream:         NewStreamHandlers(discardLogger(), &stubStream{}),
		AllowedOrigins: []string{"http://localhost:3000"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/start", bytes.NewReader(nil))
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("missing allow-origin header")
	}
}
