package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentra-sec/sentra/internal/application"
	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/internal/security/session"
	"github.com/sentra-sec/sentra/pkg/errors"
)

// SessionHandler exposes session lifecycle and lockout operations. When a
// token issuer is configured, created sessions come with a signed bearer
// token.
type SessionHandler struct {
	manager *application.SecurityManager
	tokens  *session.TokenIssuer
}

// NewSessionHandler creates a SessionHandler. tokens may be nil.
func NewSessionHandler(manager *application.SecurityManager, tokens *session.TokenIssuer) *SessionHandler {
	return &SessionHandler{manager: manager, tokens: tokens}
}

// CreateSessionRequest starts a session for a principal.
type CreateSessionRequest struct {
	PrincipalID string            `json:"principal_id" binding:"required"`
	Metadata    map[string]string `json:"metadata"`
}

// CreateSessionResponse returns the session and, when configured, its token.
type CreateSessionResponse struct {
	Session *models.Session `json:"session"`
	Token   string          `json:"token,omitempty"`
}

// CreateSession starts a session.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendError(c, errors.ErrInvalidRequest(err.Error()))
		return
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = make(map[string]string)
	}
	if _, ok := metadata["ip_address"]; !ok {
		metadata["ip_address"] = c.ClientIP()
	}
	if _, ok := metadata["user_agent"]; !ok {
		metadata["user_agent"] = c.Request.UserAgent()
	}

	s, err := h.manager.CreateSession(req.PrincipalID, metadata)
	if err != nil {
		SendError(c, err)
		return
	}

	resp := CreateSessionResponse{Session: s}
	if h.tokens != nil {
		token, err := h.tokens.Issue(s)
		if err != nil {
			SendError(c, errors.ErrInternal("failed to sign session token"))
			return
		}
		resp.Token = token
	}
	SendSuccess(c, http.StatusCreated, resp)
}

// ValidateSession checks the session id in the path.
func (h *SessionHandler) ValidateSession(c *gin.Context) {
	v := h.manager.ValidateSession(c.Param("session_id"))
	if !v.IsValid {
		SendSuccess(c, http.StatusUnauthorized, v)
		return
	}
	SendSuccess(c, http.StatusOK, v)
}

// ExtendSessionRequest pushes a session's expiry forward.
type ExtendSessionRequest struct {
	AdditionalMS int64 `json:"additional_ms" binding:"required"`
}

// ExtendSession extends an active session.
func (h *SessionHandler) ExtendSession(c *gin.Context) {
	var req ExtendSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendError(c, errors.ErrInvalidRequest(err.Error()))
		return
	}

	s, err := h.manager.ExtendSession(c.Param("session_id"), time.Duration(req.AdditionalMS)*time.Millisecond)
	if err != nil {
		SendError(c, err)
		return
	}
	SendSuccess(c, http.StatusOK, s)
}

// InvalidateSession deactivates the session in the path.
func (h *SessionHandler) InvalidateSession(c *gin.Context) {
	if !h.manager.InvalidateSession(c.Param("session_id")) {
		SendError(c, errors.ErrSessionNotFound(c.Param("session_id")))
		return
	}
	c.Status(http.StatusNoContent)
}

// InvalidatePrincipalSessions deactivates every session of a principal.
func (h *SessionHandler) InvalidatePrincipalSessions(c *gin.Context) {
	n := h.manager.InvalidateAllForPrincipal(c.Param("principal_id"))
	SendSuccess(c, http.StatusOK, gin.H{"invalidated": n})
}

// FailedAttemptRequest records one failed authentication attempt.
type FailedAttemptRequest struct {
	IPAddress string            `json:"ip_address"`
	UserAgent string            `json:"user_agent"`
	Location  string            `json:"location"`
	Metadata  map[string]string `json:"metadata"`
}

// RecordFailedAttempt appends a failed attempt and returns the standing.
func (h *SessionHandler) RecordFailedAttempt(c *gin.Context) {
	var req FailedAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		SendError(c, errors.ErrInvalidRequest(err.Error()))
		return
	}

	status := h.manager.RecordFailedAttempt(c.Param("principal_id"), models.FailedAttempt{
		Timestamp: time.Now(),
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Location:  req.Location,
		Metadata:  req.Metadata,
	})
	SendSuccess(c, http.StatusOK, status)
}

// GetLockout reports whether the principal is locked out.
func (h *SessionHandler) GetLockout(c *gin.Context) {
	SendSuccess(c, http.StatusOK, gin.H{
		"principal_id": c.Param("principal_id"),
		"is_locked":    h.manager.IsUserLocked(c.Param("principal_id")),
	})
}

// ResetFailedAttempts clears the principal's failure history.
func (h *SessionHandler) ResetFailedAttempts(c *gin.Context) {
	h.manager.ResetFailedAttempts(c.Param("principal_id"))
	c.Status(http.StatusNoContent)
}

// GetProfile returns the principal's behavioral profile.
func (h *SessionHandler) GetProfile(c *gin.Context) {
	profile, err := h.manager.GetBehavioralProfile(c.Param("principal_id"))
	if err != nil {
		SendError(c, err)
		return
	}
	SendSuccess(c, http.StatusOK, profile)
}

// DetectAnomalies runs anomaly detection for the principal.
func (h *SessionHandler) DetectAnomalies(c *gin.Context) {
	report, err := h.manager.DetectBehavioralAnomalies(c.Param("principal_id"))
	if err != nil {
		SendError(c, err)
		return
	}
	SendSuccess(c, http.StatusOK, report)
}
