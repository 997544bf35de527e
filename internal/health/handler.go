package health

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/tts-gateway/internal/synthesis"
	"github.com/labstack/echo/v4"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type RuntimeStats struct {
	Goroutines         int    `json:"goroutines"`
	MemoryAllocMB      uint64 `json:"memory_alloc_mb"`
	MemoryTotalAllocMB uint64 `json:"memory_total_alloc_mb"`
	MemorySysMB        uint64 `json:"memory_sys_mb"`
	NumGC              uint32 `json:"num_gc"`
}

type SynthesisStats struct {
	State        string `json:"state"`
	Connected    bool   `json:"connected"`
	ConnectionID string `json:"connection_id,omitempty"`
	Pending      int    `json:"pending"`
	Buffers      int    `json:"buffers"`
}

type RequestStats struct {
	TotalRequests uint64 `json:"total_requests"`
	InFlight      int64  `json:"in_flight"`
}

type Stats struct {
	Synthesis SynthesisStats `json:"synthesis"`
	Requests  RequestStats   `json:"requests"`
	Runtime   RuntimeStats   `json:"runtime"`
}

type HealthResponse struct {
	Status        Status                     `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Stats         Stats                      `json:"stats"`
	Components    map[string]ComponentStatus `json:"components"`
}

// SessionReporter exposes the shared backend connection's bookkeeping.
type SessionReporter interface {
	Stats() synthesis.Stats
	IsConnected() bool
}

// Pinger is satisfied by the usage store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	store     Pinger
	sessions  SessionReporter
	version   string
	startTime time.Time

	totalRequests uint64
	inFlight      int64
}

func NewHandler(store Pinger, sessions SessionReporter, version string) *Handler {
	return &Handler{
		store:     store,
		sessions:  sessions,
		version:   version,
		startTime: time.Now(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Liveness)
	e.GET("/health/ready", h.Readiness)
}

// CountRequests tracks request totals for the readiness report.
func (h *Handler) CountRequests() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddUint64(&h.totalRequests, 1)
			atomic.AddInt64(&h.inFlight, 1)
			defer atomic.AddInt64(&h.inFlight, -1)
			return next(c)
		}
	}
}

// Liveness reports that the process is serving
// @Summary      Liveness check
// @Description  Returns ok while the HTTP server is running.
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string "Service is alive"
// @Router       /health [get]
func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Readiness checks redis and the synthesis connection
// @Summary      Readiness check
// @Description  Reports component health, shared connection bookkeeping and runtime stats. Unhealthy only when the synthesis manager is missing.
// @Tags         health
// @Produce      json
// @Success      200 {object} HealthResponse "Healthy or degraded"
// @Failure      503 {object} HealthResponse "Unhealthy"
// @Router       /health/ready [get]
func (h *Handler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]ComponentStatus)
	var mu sync.Mutex
	var wg sync.WaitGroup

	checks := []struct {
		name  string
		check func(context.Context) ComponentStatus
	}{
		{"redis", h.checkRedis},
		{"synthesis", h.checkSynthesis},
	}

	wg.Add(len(checks))
	for _, check := range checks {
		go func(name string, fn func(context.Context) ComponentStatus) {
			defer wg.Done()
			status := fn(ctx)
			mu.Lock()
			components[name] = status
			mu.Unlock()
		}(check.name, check.check)
	}
	wg.Wait()

	overallStatus := h.computeOverallStatus(components)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := HealthResponse{
		Status:        overallStatus,
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Stats: Stats{
			Synthesis: h.synthesisStats(),
			Requests: RequestStats{
				TotalRequests: atomic.LoadUint64(&h.totalRequests),
				InFlight:      atomic.LoadInt64(&h.inFlight),
			},
			Runtime: RuntimeStats{
				Goroutines:         runtime.NumGoroutine(),
				MemoryAllocMB:      memStats.Alloc / 1024 / 1024,
				MemoryTotalAllocMB: memStats.TotalAlloc / 1024 / 1024,
				MemorySysMB:        memStats.Sys / 1024 / 1024,
				NumGC:              memStats.NumGC,
			},
		},
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, resp)
}

func (h *Handler) synthesisStats() SynthesisStats {
	if h.sessions == nil {
		return SynthesisStats{State: synthesis.StateDisconnected.String()}
	}
	st := h.sessions.Stats()
	return SynthesisStats{
		State:        st.State.String(),
		Connected:    h.sessions.IsConnected(),
		ConnectionID: st.ConnectionID,
		Pending:      st.Pending,
		Buffers:      st.Buffers,
	}
}

func (h *Handler) checkRedis(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.store == nil {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "redis not configured",
		}
	}

	if err := h.store.Ping(ctx); err != nil {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "ping failed",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

// checkSynthesis does not dial. The connection is opened lazily, so a
// disconnected manager is healthy.
func (h *Handler) checkSynthesis(_ context.Context) ComponentStatus {
	start := time.Now()
	if h.sessions == nil {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "synthesis manager not configured",
		}
	}

	if h.sessions.Stats().State == synthesis.StateConnecting {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "handshake in progress",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) computeOverallStatus(components map[string]ComponentStatus) Status {
	criticalComponents := []string{"synthesis"}

	for _, name := range criticalComponents {
		if status, ok := components[name]; ok && status.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
	}

	hasUnhealthy := false
	hasDegraded := false
	for _, status := range components {
		if status.Status == StatusUnhealthy {
			hasUnhealthy = true
		}
		if status.Status == StatusDegraded {
			hasDegraded = true
		}
	}

	if hasUnhealthy || hasDegraded {
		return StatusDegraded
	}

	return StatusHealthy
}
