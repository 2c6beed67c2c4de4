package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentra-sec/sentra/internal/application"
	"github.com/sentra-sec/sentra/internal/config"
	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/errors"
)

// SecurityHandler exposes event processing, posture status, threat patterns,
// certificate pins, and the configuration surface.
type SecurityHandler struct {
	manager *application.SecurityManager
}

// NewSecurityHandler creates a SecurityHandler.
func NewSecurityHandler(manager *application.SecurityManager) *SecurityHandler {
	return &SecurityHandler{manager: manager}
}

// EventRequest is the ingestion payload for one security event.
type EventRequest struct {
	Type        string            `json:"type" binding:"required"`
	Severity    string            `json:"severity" binding:"required"`
	PrincipalID string            `json:"principal_id"`
	DeviceID    string            `json:"device_id"`
	IPAddress   string            `json:"ip_address"`
	UserAgent   string            `json:"user_agent"`
	Details     map[string]string `json:"details"`
	RiskScore   float64           `json:"risk_score"`
}

// EventResponse pairs the annotated event with the refreshed status.
type EventResponse struct {
	Event  *models.SecurityEvent  `json:"event"`
	Status *models.SecurityStatus `json:"status"`
}

// ProcessEvent ingests one event through the full pipeline.
func (h *SecurityHandler) ProcessEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendError(c, errors.ErrInvalidRequest(err.Error()))
		return
	}

	event := models.NewSecurityEvent(constants.EventType(req.Type), constants.Severity(req.Severity))
	event.PrincipalID = req.PrincipalID
	event.DeviceID = req.DeviceID
	event.IPAddress = req.IPAddress
	event.UserAgent = req.UserAgent
	event.RiskScore = req.RiskScore
	for k, v := range req.Details {
		event.Details[k] = v
	}

	status, err := h.manager.ProcessSecurityEvent(c.Request.Context(), event)
	if err != nil {
		SendError(c, err)
		return
	}
	SendSuccess(c, http.StatusOK, EventResponse{Event: event, Status: status})
}

// GetStatus returns the current aggregate posture.
func (h *SecurityHandler) GetStatus(c *gin.Context) {
	SendSuccess(c, http.StatusOK, h.manager.SecurityStatus())
}

// Export returns the audit/debug snapshot of all engine state.
func (h *SecurityHandler) Export(c *gin.Context) {
	SendSuccess(c, http.StatusOK, h.manager.ExportSecurityData(c.Request.Context()))
}

// PinRequest replaces a domain's fingerprint allow-list.
type PinRequest struct {
	Fingerprints []string `json:"fingerprints"`
}

// PinCertificate sets the allow-list for the domain in the path.
func (h *SecurityHandler) PinCertificate(c *gin.Context) {
	var req PinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendError(c, errors.ErrInvalidRequest(err.Error()))
		return
	}

	h.manager.PinCertificate(c.Param("domain"), req.Fingerprints)
	SendSuccess(c, http.StatusOK, gin.H{"domain": c.Param("domain"), "pinned": len(req.Fingerprints)})
}

// VerifyRequest checks one fingerprint against a domain's pins.
type VerifyRequest struct {
	Fingerprint string `json:"fingerprint" binding:"required"`
}

// VerifyCertificate reports whether the fingerprint is trusted.
func (h *SecurityHandler) VerifyCertificate(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendError(c, errors.ErrInvalidRequest(err.Error()))
		return
	}

	trusted := h.manager.VerifyCertificate(c.Param("domain"), req.Fingerprint)
	SendSuccess(c, http.StatusOK, gin.H{"domain": c.Param("domain"), "trusted": trusted})
}

// UnpinCertificate removes a domain's pin entry.
func (h *SecurityHandler) UnpinCertificate(c *gin.Context) {
	if !h.manager.UnpinCertificate(c.Param("domain")) {
		SendError(c, errors.ErrInvalidRequest("domain is not pinned"))
		return
	}
	c.Status(http.StatusNoContent)
}

// ListPins returns the pin table.
func (h *SecurityHandler) ListPins(c *gin.Context) {
	SendSuccess(c, http.StatusOK, gin.H{"pins": h.manager.CertificatePins()})
}

// PatternRequest registers one threat pattern.
type PatternRequest struct {
	ID          string `json:"id" binding:"required"`
	Name        string `json:"name"`
	Severity    string `json:"severity" binding:"required"`
	Expression  string `json:"expression" binding:"required"`
	Description string `json:"description"`
	Mitigation  string `json:"mitigation"`
}

// RegisterPattern adds a threat pattern to the registry.
func (h *SecurityHandler) RegisterPattern(c *gin.Context) {
	var req PatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendError(c, errors.ErrInvalidRequest(err.Error()))
		return
	}

	pattern := models.ThreatPattern{
		ID:          req.ID,
		Name:        req.Name,
		Severity:    constants.Severity(req.Severity),
		Expression:  req.Expression,
		Description: req.Description,
		Mitigation:  req.Mitigation,
	}
	if err := h.manager.RegisterThreatPattern(pattern); err != nil {
		SendError(c, errors.ErrInvalidRequest(err.Error()))
		return
	}
	SendSuccess(c, http.StatusCreated, pattern)
}

// UnregisterPattern removes a threat pattern by id.
func (h *SecurityHandler) UnregisterPattern(c *gin.Context) {
	if !h.manager.UnregisterThreatPattern(c.Param("id")) {
		SendError(c, errors.ErrInvalidRequest("unknown threat pattern id"))
		return
	}
	c.Status(http.StatusNoContent)
}

// ListPatterns returns the registered threat patterns.
func (h *SecurityHandler) ListPatterns(c *gin.Context) {
	SendSuccess(c, http.StatusOK, gin.H{"patterns": h.manager.ThreatPatterns()})
}

// UpdateConfig applies a runtime configuration update to all components.
func (h *SecurityHandler) UpdateConfig(c *gin.Context) {
	cfg := config.DefaultSecurityConfig()
	if err := c.ShouldBindJSON(&cfg); err != nil {
		SendError(c, errors.ErrInvalidRequest(err.Error()))
		return
	}

	if err := h.manager.UpdateConfig(cfg); err != nil {
		SendError(c, err)
		return
	}
	SendSuccess(c, http.StatusOK, gin.H{"status": "applied"})
}

// Reset clears all engine state.
func (h *SecurityHandler) Reset(c *gin.Context) {
	if err := h.manager.Reset(c.Request.Context()); err != nil {
		SendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
