package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"docarchive/internal/caching"
	"docarchive/internal/services"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	db        Pinger
	cacheSvc  caching.CacheService
	blobStore services.BlobStore
	version   string
	startedAt time.Time
}

func NewHealthHandlers(db Pinger, cacheSvc caching.CacheService, blobStore services.BlobStore, version string) *HealthHandlers {
	return &HealthHandlers{
		db:        db,
		cacheSvc:  cacheSvc,
		blobStore: blobStore,
		version:   version,
		startedAt: time.Now(),
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
}

type dependencyCheck struct {
	name  string
	check func(ctx context.Context) error
}

func (h *HealthHandlers) checks() []dependencyCheck {
	checks := []dependencyCheck{{"database", h.db.Ping}}
	if h.cacheSvc != nil {
		checks = append(checks, dependencyCheck{"redis", h.cacheSvc.Ping})
	}
	checks = append(checks, dependencyCheck{"storage", h.blobStore.Ping})
	return checks
}

// HealthCheck reports each dependency as healthy or unhealthy. The database
// is critical; a failing cache or blob store only degrades the service.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Version:   h.version,
	}

	statusCode := http.StatusOK
	for _, dep := range h.checks() {
		if err := dep.check(ctx); err != nil {
			health.Services[dep.name] = "unhealthy"
			if dep.name == "database" {
				health.Status = "unhealthy"
				statusCode = http.StatusServiceUnavailable
			} else if health.Status == "healthy" {
				health.Status = "degraded"
			}
			continue
		}
		health.Services[dep.name] = "healthy"
	}

	return c.JSON(statusCode, health)
}

// DetailedHealthCheck adds latency and error messages per dependency
func (h *HealthHandlers) DetailedHealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	overall := "healthy"
	checks := make(map[string]interface{})
	for _, dep := range h.checks() {
		started := time.Now()
		err := dep.check(ctx)
		result := map[string]interface{}{
			"status":     "healthy",
			"latency_ms": time.Since(started).Milliseconds(),
		}
		if err != nil {
			result["status"] = "unhealthy"
			result["message"] = err.Error()
			overall = "degraded"
		}
		checks[dep.name] = result
	}

	statusCode := http.StatusOK
	if overall != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, map[string]interface{}{
		"overall_status": overall,
		"checks":         checks,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"version":        h.version,
		"goroutines":     runtime.NumGoroutine(),
	})
}

// LivenessCheck determines if the application is running
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
