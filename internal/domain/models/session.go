package models

import (
	"time"

	"github.com/sentra-sec/sentra/pkg/constants"
)

// Session represents an authenticated principal session. Sessions are never
// physically removed; invalidation and expiry only clear IsActive so the
// history stays auditable.
type Session struct {
	// ID is the unique session identifier.
	ID string `json:"id"`

	// PrincipalID identifies the session owner.
	PrincipalID string `json:"principal_id"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`

	// LastActivity is refreshed on every successful validation.
	LastActivity time.Time `json:"last_activity"`

	// ExpiresAt is the expiry time; it only moves forward, via extension.
	ExpiresAt time.Time `json:"expires_at"`

	// IPAddress is the address the session was created from.
	IPAddress string `json:"ip_address,omitempty"`

	// UserAgent is the creating client's identification string.
	UserAgent string `json:"user_agent,omitempty"`

	// Location is the coarse location the session was created from.
	Location string `json:"location,omitempty"`

	// Metadata carries caller-supplied annotations.
	Metadata map[string]string `json:"metadata,omitempty"`

	// IsActive is false once the session expired or was invalidated.
	IsActive bool `json:"is_active"`
}

// Clone returns a copy safe to hand to callers outside the manager's lock.
func (s *Session) Clone() *Session {
	clone := *s
	if s.Metadata != nil {
		clone.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// SessionValidation is the result of validating a session id.
type SessionValidation struct {
	// IsValid reports whether the session is active and unexpired.
	IsValid bool `json:"is_valid"`

	// Session is populated on success.
	Session *Session `json:"session,omitempty"`

	// Reason explains a failed validation.
	Reason constants.ValidationReason `json:"reason,omitempty"`
}

// FailedAttempt records a single failed authentication attempt for a principal.
type FailedAttempt struct {
	Timestamp time.Time         `json:"timestamp"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Location  string            `json:"location,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// LockoutStatus describes a principal's standing after a failed attempt is
// recorded or queried.
type LockoutStatus struct {
	// IsLocked reports whether the in-window attempt count reached the maximum.
	IsLocked bool `json:"is_locked"`

	// RemainingAttempts is how many more failures are tolerated before lockout.
	RemainingAttempts int `json:"remaining_attempts"`

	// LockoutEnd is when the lockout lapses; zero when not locked.
	LockoutEnd time.Time `json:"lockout_end,omitempty"`
}

// RateLimitInfo is the queryable state of one rate-limited key.
type RateLimitInfo struct {
	// Key is the logical identifier being limited.
	Key string `json:"key"`

	// Limit is the maximum requests per window.
	Limit int `json:"limit"`

	// CurrentCount is the number of requests seen in the current window.
	CurrentCount int `json:"current_count"`

	// ResetTime is when the current window lapses.
	ResetTime time.Time `json:"reset_time"`

	// Blocked reports whether the key is currently blocked.
	Blocked bool `json:"blocked"`

	// BlockExpiry is when the block lapses; zero when not blocked.
	BlockExpiry time.Time `json:"block_expiry,omitempty"`
}

// Remaining returns the unused quota in the current window.
func (i *RateLimitInfo) Remaining() int {
	remaining := i.Limit - i.CurrentCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RetryAfter returns how long a caller should wait before retrying.
func (i *RateLimitInfo) RetryAfter(now time.Time) time.Duration {
	until := i.ResetTime
	if i.Blocked && i.BlockExpiry.After(until) {
		until = i.BlockExpiry
	}
	if wait := until.Sub(now); wait > 0 {
		return wait
	}
	return 0
}
