package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"swimdesk/internal/caching"
	"swimdesk/internal/lib/sl"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlers handles health check endpoints
type HealthHandlers struct {
	db      Pinger
	cache   caching.CacheService
	log     *slog.Logger
	version string
	started time.Time
}

func NewHealthHandlers(db Pinger, cache caching.CacheService, version string, log *slog.Logger) *HealthHandlers {
	return &HealthHandlers{
		db:      db,
		cache:   cache,
		log:     log,
		version: version,
		started: time.Now(),
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
}

// LivenessCheck reports that the process is serving requests.
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, &HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Version:   h.version,
	})
}

// ReadinessCheck determines if the application is ready to serve traffic.
// The database is critical; a redis outage only degrades the service since
// tier selections and the directory fall back to defaults and the database.
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	const op = "handlers.HealthHandlers.ReadinessCheck"

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Version:   h.version,
	}
	statusCode := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		h.log.Error("database ping failed", slog.String("op", op), sl.Err(err))
		health.Services["database"] = "unhealthy"
		health.Status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	} else {
		health.Services["database"] = "healthy"
	}

	if err := h.cache.Ping(ctx); err != nil {
		h.log.Warn("redis ping failed", slog.String("op", op), sl.Err(err))
		health.Services["redis"] = "unhealthy"
		if statusCode == http.StatusOK {
			health.Status = "degraded"
		}
	} else {
		health.Services["redis"] = "healthy"
	}

	return c.JSON(statusCode, health)
}
