// Package session owns session lifecycle and failed-attempt lockout
// bookkeeping. Sessions are never physically removed; invalidation and expiry
// only clear the active flag so the history stays auditable.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/errors"
	"github.com/sentra-sec/sentra/pkg/logger"
)

// Metadata keys lifted into first-class session fields at creation.
const (
	metaIPAddress = "ip_address"
	metaUserAgent = "user_agent"
	metaLocation  = "location"
)

// Manager is the in-memory session and lockout store. Sessions and failed
// attempts live in separate maps under one lock, so operations touching the
// same principal are linearizable.
type Manager struct {
	log logger.Logger
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*models.Session
	attempts map[string][]models.FailedAttempt

	sessionTimeout time.Duration
	maxFailed      int
	lockoutWindow  time.Duration
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager with the default timeout and lockout policy.
func NewManager(log logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		log:            log.WithComponent("session"),
		now:            time.Now,
		sessions:       make(map[string]*models.Session),
		attempts:       make(map[string][]models.FailedAttempt),
		sessionTimeout: constants.DefaultSessionTimeout,
		maxFailed:      constants.DefaultMaxFailedAttempts,
		lockoutWindow:  constants.DefaultLockoutWindow,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configure updates the session timeout and lockout policy. Existing sessions
// keep the expiry they were created or extended with.
func (m *Manager) Configure(sessionTimeout time.Duration, maxFailed int, lockoutWindow time.Duration) error {
	if sessionTimeout <= 0 {
		return errors.ErrInvalidConfig(fmt.Sprintf("session timeout must be positive: %v", sessionTimeout))
	}
	if maxFailed <= 0 {
		return errors.ErrInvalidConfig(fmt.Sprintf("max failed attempts must be positive: %d", maxFailed))
	}
	if lockoutWindow <= 0 {
		return errors.ErrInvalidConfig(fmt.Sprintf("lockout window must be positive: %v", lockoutWindow))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionTimeout = sessionTimeout
	m.maxFailed = maxFailed
	m.lockoutWindow = lockoutWindow
	return nil
}

// CreateSession starts a session for a principal. A locked principal cannot
// open new sessions until the lockout lapses.
func (m *Manager) CreateSession(principalID string, metadata map[string]string) (*models.Session, error) {
	if principalID == "" {
		return nil, errors.ErrInvalidRequest("principal id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lockedLocked(principalID) {
		return nil, errors.ErrPrincipalLocked(principalID)
	}

	now := m.now()
	s := &models.Session{
		ID:           uuid.New().String(),
		PrincipalID:  principalID,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(m.sessionTimeout),
		IPAddress:    metadata[metaIPAddress],
		UserAgent:    metadata[metaUserAgent],
		Location:     metadata[metaLocation],
		Metadata:     metadata,
		IsActive:     true,
	}
	m.sessions[s.ID] = s

	m.log.Info(context.Background(), "session created",
		logger.String("session_id", s.ID),
		logger.String("principal_id", principalID),
		logger.Time("expires_at", s.ExpiresAt))
	return s.Clone(), nil
}

// ValidateSession checks a session id. Validating an expired-but-active
// session deactivates it; successful validation refreshes last-activity.
func (m *Manager) ValidateSession(sessionID string) *models.SessionValidation {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return &models.SessionValidation{IsValid: false, Reason: constants.ReasonNotFound}
	}
	if !s.IsActive {
		return &models.SessionValidation{IsValid: false, Reason: constants.ReasonInactive}
	}
	now := m.now()
	if now.After(s.ExpiresAt) {
		s.IsActive = false
		return &models.SessionValidation{IsValid: false, Reason: constants.ReasonExpired}
	}

	s.LastActivity = now
	return &models.SessionValidation{IsValid: true, Session: s.Clone()}
}

// ExtendSession pushes an active session's expiry forward by the given
// duration. Expiry never moves backward; non-positive extensions are rejected.
func (m *Manager) ExtendSession(sessionID string, additional time.Duration) (*models.Session, error) {
	if additional <= 0 {
		return nil, errors.ErrInvalidRequest("session extension must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, errors.ErrSessionNotFound(sessionID)
	}
	if !s.IsActive {
		return nil, errors.ErrSessionInactive(sessionID)
	}
	if m.now().After(s.ExpiresAt) {
		s.IsActive = false
		return nil, errors.ErrSessionExpired(sessionID)
	}

	s.ExpiresAt = s.ExpiresAt.Add(additional)
	return s.Clone(), nil
}

// InvalidateSession deactivates a session, reporting whether it existed.
func (m *Manager) InvalidateSession(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	s.IsActive = false
	return true
}

// InvalidateAllForPrincipal deactivates every active session of a principal
// and returns how many were affected.
func (m *Manager) InvalidateAllForPrincipal(principalID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	for _, s := range m.sessions {
		if s.PrincipalID == principalID && s.IsActive {
			s.IsActive = false
			n++
		}
	}
	return n
}

// RecordFailedAttempt appends a failed attempt, prunes attempts outside the
// trailing lockout window, and returns the principal's standing. The lockout
// lapses when the oldest in-window attempt ages out.
func (m *Manager) RecordFailedAttempt(principalID string, attempt models.FailedAttempt) *models.LockoutStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = m.now()
	}
	m.attempts[principalID] = m.pruneLocked(append(m.attempts[principalID], attempt))

	status := m.standingLocked(principalID)
	if status.IsLocked {
		m.log.Warn(context.Background(), "principal locked out",
			logger.String("principal_id", principalID),
			logger.Time("lockout_end", status.LockoutEnd))
	}
	return status
}

// IsUserLocked performs the windowed count without appending an attempt.
func (m *Manager) IsUserLocked(principalID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lockedLocked(principalID)
}

// ResetFailedAttempts clears a principal's failure history.
func (m *Manager) ResetFailedAttempts(principalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, principalID)
}

// CleanupExpiredSessions flags expired-but-active sessions inactive and
// returns how many were flagged. Calling it again without new expiries
// returns zero.
func (m *Manager) CleanupExpiredSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var n int
	for _, s := range m.sessions {
		if s.IsActive && now.After(s.ExpiresAt) {
			s.IsActive = false
			n++
		}
	}
	return n
}

// Sessions returns copies of every session, newest first.
func (m *Manager) Sessions() []*models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Reset clears sessions and failure history.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*models.Session)
	m.attempts = make(map[string][]models.FailedAttempt)
}

// pruneLocked drops attempts older than the trailing lockout window. Callers
// hold the write lock.
func (m *Manager) pruneLocked(attempts []models.FailedAttempt) []models.FailedAttempt {
	cutoff := m.now().Add(-m.lockoutWindow)
	kept := attempts[:0]
	for _, a := range attempts {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	return kept
}

// standingLocked derives the lockout status from the pruned in-window
// attempts. Callers hold the write lock.
func (m *Manager) standingLocked(principalID string) *models.LockoutStatus {
	attempts := m.attempts[principalID]
	if len(attempts) >= m.maxFailed {
		return &models.LockoutStatus{
			IsLocked:   true,
			LockoutEnd: attempts[0].Timestamp.Add(m.lockoutWindow),
		}
	}
	return &models.LockoutStatus{
		RemainingAttempts: m.maxFailed - len(attempts),
	}
}

// lockedLocked counts in-window attempts without mutating the history.
// Callers hold at least the read lock.
func (m *Manager) lockedLocked(principalID string) bool {
	cutoff := m.now().Add(-m.lockoutWindow)
	var inWindow int
	for _, a := range m.attempts[principalID] {
		if a.Timestamp.After(cutoff) {
			inWindow++
		}
	}
	return inWindow >= m.maxFailed
}
