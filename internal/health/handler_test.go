package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/eleven-am/tts-gateway/internal/synthesis"
	"github.com/eleven-am/tts-gateway/internal/usage"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

type fakeSessions struct {
	stats synthesis.Stats
}

func (f *fakeSessions) Stats() synthesis.Stats { return f.stats }

func (f *fakeSessions) IsConnected() bool { return f.stats.State == synthesis.StateOpen }

func newTestStore(t *testing.T) (*usage.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return usage.NewStore(client), mr
}

func doReadiness(t *testing.T, h *Handler) (int, HealthResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Readiness(c); err != nil {
		t.Fatalf("Readiness() error = %v", err)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return rec.Code, resp
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h := NewHandler(nil, nil, "test")
	e := echo.New()
	h.RegisterRoutes(e)

	routePaths := make(map[string]bool)
	for _, r := range e.Routes() {
		routePaths[r.Path] = true
	}
	for _, path := range []string{"/health", "/health/ready"} {
		if !routePaths[path] {
			t.Errorf("expected route %s to be registered", path)
		}
	}
}

func TestHandler_Liveness(t *testing.T) {
	h := NewHandler(nil, nil, "test")
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	if err := h.Liveness(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Liveness() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestHandler_Readiness(t *testing.T) {
	store, mr := newTestStore(t)

	tests := []struct {
		name       string
		redisDown  bool
		sessions   SessionReporter
		wantStatus Status
		wantCode   int
	}{
		{
			name:       "idle connection is healthy",
			sessions:   &fakeSessions{stats: synthesis.Stats{State: synthesis.StateDisconnected}},
			wantStatus: StatusHealthy,
			wantCode:   http.StatusOK,
		},
		{
			name:       "handshake in progress is degraded",
			sessions:   &fakeSessions{stats: synthesis.Stats{State: synthesis.StateConnecting}},
			wantStatus: StatusDegraded,
			wantCode:   http.StatusOK,
		},
		{
			name:       "missing manager is unhealthy",
			sessions:   nil,
			wantStatus: StatusUnhealthy,
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name:       "redis down degrades",
			redisDown:  true,
			sessions:   &fakeSessions{stats: synthesis.Stats{State: synthesis.StateOpen}},
			wantStatus: StatusDegraded,
			wantCode:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.redisDown {
				mr.SetError("ERR redis unavailable")
				defer mr.SetError("")
			}
			h := NewHandler(store, tt.sessions, "1.0.0")
			code, resp := doReadiness(t, h)
			if code != tt.wantCode {
				t.Errorf("expected status code %d, got %d", tt.wantCode, code)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, resp.Status)
			}
			if resp.Version != "1.0.0" {
				t.Errorf("expected version 1.0.0, got %s", resp.Version)
			}
		})
	}
}

func TestHandler_ReadinessReportsSynthesisStats(t *testing.T) {
	store, _ := newTestStore(t)
	sessions := &fakeSessions{stats: synthesis.Stats{
		State:        synthesis.StateOpen,
		ConnectionID: "abc",
		Pending:      3,
		Buffers:      2,
	}}
	h := NewHandler(store, sessions, "test")

	_, resp := doReadiness(t, h)
	got := resp.Stats.Synthesis
	if got.State != "open" || !got.Connected || got.ConnectionID != "abc" || got.Pending != 3 || got.Buffers != 2 {
		t.Errorf("unexpected synthesis stats %+v", got)
	}
	if resp.Components["redis"].Status != StatusHealthy {
		t.Errorf("expected healthy redis, got %+v", resp.Components["redis"])
	}
}

func TestHandler_CountRequests(t *testing.T) {
	h := NewHandler(nil, nil, "test")
	e := echo.New()
	e.Use(h.CountRequests())
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	}
	if h.totalRequests != 3 {
		t.Errorf("expected 3 requests, got %d", h.totalRequests)
	}
	if h.inFlight != 0 {
		t.Errorf("expected no in-flight requests, got %d", h.inFlight)
	}
}

func TestHandler_ReadinessMissingStore(t *testing.T) {
	h := NewHandler(nil, &fakeSessions{stats: synthesis.Stats{State: synthesis.StateDisconnected}}, "test")

	code, resp := doReadiness(t, h)
	if code != http.StatusOK {
		t.Errorf("expected status 200, got %d", code)
	}
	if resp.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", resp.Status)
	}
	if resp.Components["redis"].Error != "redis not configured" {
		t.Errorf("unexpected redis component %+v", resp.Components["redis"])
	}
	if resp.Stats.Synthesis.Connected {
		t.Error("disconnected manager reported as connected")
	}
}
