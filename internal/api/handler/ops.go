package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/urbanroute/urbanroute/internal/api/models"
	"github.com/urbanroute/urbanroute/internal/api/response"
	"github.com/urbanroute/urbanroute/internal/engine"
)

// Pinger checks that the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version    string
	buildTime  string
	db         Pinger
	supervisor *engine.Supervisor
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, db Pinger, supervisor *engine.Supervisor) *OpsHandler {
	return &OpsHandler{
		version:    version,
		buildTime:  buildTime,
		db:         db,
		supervisor: supervisor,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   time.Now().UTC(),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The database
// must answer; a degraded routing engine does not fail readiness because
// route requests fall back to straight-line estimates.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	overall := models.HealthStatusOK
	subsystems := make([]models.SubsystemStatus, 0, 2)

	dbStatus := models.SubsystemStatus{Name: "database", Status: models.HealthStatusOK}
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			dbStatus.Status = models.HealthStatusDown
			dbStatus.Detail = err.Error()
			overall = models.HealthStatusDown
		}
	}
	subsystems = append(subsystems, dbStatus)

	engineStatus := models.SubsystemStatus{Name: "routing-engine", Status: models.HealthStatusOK}
	if h.supervisor != nil {
		if err := h.supervisor.HealthCheck(ctx); err != nil {
			engineStatus.Status = models.HealthStatusDegraded
			engineStatus.Detail = err.Error()
			if overall == models.HealthStatusOK {
				overall = models.HealthStatusDegraded
			}
		}
	}
	subsystems = append(subsystems, engineStatus)

	status := http.StatusOK
	if overall == models.HealthStatusDown {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, models.Readiness{
		Status:     overall,
		Time:       time.Now().UTC(),
		Subsystems: subsystems,
	})
}
