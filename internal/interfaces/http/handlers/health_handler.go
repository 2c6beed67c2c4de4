package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentra-sec/sentra/internal/application"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	manager *application.SecurityManager
	started time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(manager *application.SecurityManager) *HealthHandler {
	return &HealthHandler{manager: manager, started: time.Now()}
}

// HealthCheck reports overall service health with the current posture band.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := h.manager.SecurityStatus()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"uptime":   time.Since(h.started).String(),
		"security": status.Overall,
	})
}

// LivenessCheck reports that the process is running.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// ReadinessCheck reports that the engine can serve traffic.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
