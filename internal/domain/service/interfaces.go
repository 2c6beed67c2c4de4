// Package service defines the component contracts the security manager
// orchestrates. Implementations live under internal/security; the manager
// depends on these interfaces only, so any component can be swapped without
// touching the pipeline.
package service

import (
	"context"
	"time"

	"github.com/sentra-sec/sentra/internal/config"
	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/pkg/constants"
)

// ThreatMatcher evaluates payloads against the registered attack signatures.
// Evaluation is pure over the registry and input; it has no side effects.
type ThreatMatcher interface {
	// Evaluate scores a payload and reports whether it is a threat.
	Evaluate(payload string) *models.ThreatVerdict

	// Register adds a pattern to the registry, replacing any with the same id.
	Register(pattern models.ThreatPattern) error

	// Unregister removes a pattern by id, reporting whether it existed.
	Unregister(id string) bool

	// Patterns returns the registered patterns.
	Patterns() []models.ThreatPattern
}

// RateLimitService enforces fixed-window request limits per logical key.
type RateLimitService interface {
	// CheckLimit counts one request against the key and reports whether it
	// is allowed under the supplied window configuration.
	CheckLimit(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, error)

	// CheckClass counts one request against the key using the configured
	// limits for the given operation class.
	CheckClass(ctx context.Context, class constants.RateLimitClass, key string) (bool, error)

	// Info returns the current state of a key, or nil when untracked.
	Info(ctx context.Context, key string) (*models.RateLimitInfo, error)

	// UpdateRules replaces the per-class rule table.
	UpdateRules(rules map[string]config.RateLimitRule)

	// Sweep removes entries whose window and block have both lapsed.
	Sweep(ctx context.Context) (int, error)

	// Reset clears all tracked keys.
	Reset(ctx context.Context) error
}

// CertPinService maintains the per-domain certificate fingerprint allow-list.
// Absence of a pin entry means trust-by-default.
type CertPinService interface {
	// Pin replaces the fingerprint allow-list for a domain.
	Pin(domain string, fingerprints []string)

	// Verify reports whether the fingerprint is trusted for the domain.
	Verify(domain, fingerprint string) bool

	// Unpin removes a domain's entry, reporting whether one existed.
	Unpin(domain string) bool

	// Pins returns a copy of the pin table.
	Pins() map[string][]string

	// Reset clears the pin table.
	Reset()
}

// EnclaveService tracks hardware security capability availability and health.
type EnclaveService interface {
	// DetectAndRegister probes for capabilities and registers one enclave
	// record per detection. Probe failures degrade, never propagate.
	DetectAndRegister(ctx context.Context) []*models.SecureEnclave

	// CheckHealth re-scores every registered enclave and returns the updated
	// records. Safe to call at arbitrary cadence.
	CheckHealth(ctx context.Context) []*models.SecureEnclave

	// Enclaves returns the registered enclave records.
	Enclaves() []*models.SecureEnclave

	// AverageHealth returns the mean health score, 1.0 when none registered.
	AverageHealth() float64

	// Reset clears the registry.
	Reset()
}

// BehaviorAnalyzer maintains per-principal baselines and detects anomalies.
type BehaviorAnalyzer interface {
	// UpdateProfile folds an event into the principal's profile, creating
	// the profile on first sight.
	UpdateProfile(principalID string, event *models.SecurityEvent)

	// DetectAnomalies recomputes anomaly confidence from current profile state.
	DetectAnomalies(principalID string) (*models.AnomalyReport, error)

	// Profile returns a copy of a principal's profile.
	Profile(principalID string) (*models.BehavioralProfile, error)

	// Profiles returns copies of every profile keyed by principal.
	Profiles() map[string]*models.BehavioralProfile

	// RemoveProfile deletes a profile, reporting whether it existed.
	RemoveProfile(principalID string) bool

	// Configure updates the anomaly threshold and learning rate.
	Configure(anomalyThreshold, learningRate float64) error

	// Reset clears all profiles.
	Reset()
}

// SessionService owns session lifecycle and failed-attempt lockout bookkeeping.
type SessionService interface {
	// CreateSession starts a session for a principal.
	CreateSession(principalID string, metadata map[string]string) (*models.Session, error)

	// ValidateSession checks a session id, refreshing last-activity on success.
	ValidateSession(sessionID string) *models.SessionValidation

	// ExtendSession pushes an active session's expiry forward.
	ExtendSession(sessionID string, additional time.Duration) (*models.Session, error)

	// InvalidateSession deactivates a session, reporting whether it existed.
	InvalidateSession(sessionID string) bool

	// InvalidateAllForPrincipal deactivates every session of a principal.
	InvalidateAllForPrincipal(principalID string) int

	// RecordFailedAttempt appends a failed attempt and returns the standing.
	RecordFailedAttempt(principalID string, attempt models.FailedAttempt) *models.LockoutStatus

	// IsUserLocked performs the windowed count without appending.
	IsUserLocked(principalID string) bool

	// ResetFailedAttempts clears a principal's failure history.
	ResetFailedAttempts(principalID string)

	// Configure updates the session timeout and lockout policy.
	Configure(sessionTimeout time.Duration, maxFailed int, lockoutWindow time.Duration) error

	// CleanupExpiredSessions flags expired-but-active sessions. Idempotent.
	CleanupExpiredSessions() int

	// Sessions returns copies of every session.
	Sessions() []*models.Session

	// Reset clears sessions and failure history.
	Reset()
}

// MetricsReporter accumulates processed events and derives the posture status.
type MetricsReporter interface {
	// RecordEvent folds an event into the aggregate counters and history.
	RecordEvent(event *models.SecurityEvent)

	// RecordResponseTime accumulates a processing latency sample.
	RecordResponseTime(d time.Duration)

	// GenerateStatus derives the current posture from accumulated state.
	GenerateStatus(enclaveHealth float64) *models.SecurityStatus

	// Snapshot returns a lossless copy of counters and history.
	Snapshot() *models.SecurityMetricsSnapshot

	// Restore replaces accumulated state with a snapshot.
	Restore(snapshot *models.SecurityMetricsSnapshot)

	// Configure resizes the retained history.
	Configure(historyCap int) error

	// Reset clears all accumulated state.
	Reset()
}

// AlertSink receives high-priority annotated events for out-of-band delivery.
// Implementations must not block event processing; the manager invokes sinks
// asynchronously.
type AlertSink interface {
	// Deliver publishes one alert-worthy event.
	Deliver(ctx context.Context, event *models.SecurityEvent) error

	// Close releases sink resources.
	Close() error
}
