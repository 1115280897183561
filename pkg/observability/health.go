package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// HealthStatus represents the health status of the service
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name      string
	CheckFunc func(context.Context) error
	Timeout   time.Duration
	// Critical checks turn the whole service unhealthy when they fail.
	Critical bool
}

// HealthChecker manages health checks
type HealthChecker struct {
	checks    map[string]*HealthCheck
	version   string
	startTime time.Time
	mu        sync.RWMutex
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckStatus `json:"checks"`
	System    SystemInfo             `json:"system"`
}

// CheckStatus represents the status of a health check
type CheckStatus struct {
	Status   HealthStatus `json:"status"`
	Message  string       `json:"message,omitempty"`
	Duration string       `json:"duration,omitempty"`
}

// SystemInfo represents system information
type SystemInfo struct {
	NumGoroutines int    `json:"num_goroutines"`
	MemAlloc      uint64 `json:"mem_alloc_mb"`
}

// NewHealthChecker creates an empty health checker
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		checks:    make(map[string]*HealthCheck),
		version:   version,
		startTime: time.Now(),
	}
}

// RegisterCheck registers a new health check
func (hc *HealthChecker) RegisterCheck(check *HealthCheck) {
	if check.Timeout == 0 {
		check.Timeout = 5 * time.Second
	}
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[check.Name] = check
}

// Check performs all health checks
func (hc *HealthChecker) Check(ctx context.Context) HealthResponse {
	hc.mu.RLock()
	checks := make([]*HealthCheck, 0, len(hc.checks))
	for _, c := range hc.checks {
		checks = append(checks, c)
	}
	hc.mu.RUnlock()

	results := make(map[string]CheckStatus, len(checks))
	overall := HealthStatusHealthy

	for _, check := range checks {
		status := performCheck(ctx, check)
		results[check.Name] = status

		if status.Status == HealthStatusUnhealthy {
			overall = HealthStatusUnhealthy
		} else if status.Status == HealthStatusDegraded && overall == HealthStatusHealthy {
			overall = HealthStatusDegraded
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return HealthResponse{
		Status:    overall,
		Timestamp: time.Now(),
		Version:   hc.version,
		Uptime:    time.Since(hc.startTime).Round(time.Second).String(),
		Checks:    results,
		System: SystemInfo{
			NumGoroutines: runtime.NumGoroutine(),
			MemAlloc:      m.Alloc / 1024 / 1024,
		},
	}
}

// performCheck runs one check bounded by its timeout
func performCheck(ctx context.Context, check *HealthCheck) CheckStatus {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- check.CheckFunc(checkCtx)
	}()

	var err error
	select {
	case err = <-errChan:
	case <-checkCtx.Done():
		err = checkCtx.Err()
	}

	status := CheckStatus{
		Status:   HealthStatusHealthy,
		Message:  "OK",
		Duration: time.Since(start).String(),
	}
	if err != nil {
		status.Status = HealthStatusDegraded
		if check.Critical {
			status.Status = HealthStatusUnhealthy
		}
		status.Message = err.Error()
	}
	return status
}

// HealthHandler returns an HTTP handler for health checks
func (hc *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := hc.Check(r.Context())

		code := http.StatusOK // degraded is still serving
		if response.Status == HealthStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, response)
	}
}

// LivenessHandler returns a simple liveness probe handler
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadinessHandler returns a readiness probe handler
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hc.Check(r.Context()).Status == HealthStatusUnhealthy {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ConversationStoreCheck probes the durable conversation backend.
// It is not critical: the store degrades to memory rather than failing.
func ConversationStoreCheck(pingFunc func(context.Context) error) *HealthCheck {
	return &HealthCheck{
		Name:      "conversation_store",
		CheckFunc: pingFunc,
		Timeout:   5 * time.Second,
	}
}

// ToolCatalogCheck fails when no API tools are registered.
func ToolCatalogCheck(count func() int) *HealthCheck {
	return &HealthCheck{
		Name: "tool_catalog",
		CheckFunc: func(ctx context.Context) error {
			if count() == 0 {
				return errNoTools
			}
			return nil
		},
		Timeout:  time.Second,
		Critical: true,
	}
}
