// Package constants defines system-wide constants for the Sentra security engine.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Security Event Constants
// ================================================================================

// EventType classifies a security event by the subsystem it originated from.
type EventType string

const (
	// EventTypeAuthentication covers login, logout and credential checks
	EventTypeAuthentication EventType = "authentication"

	// EventTypeAuthorization covers permission and policy decisions
	EventTypeAuthorization EventType = "authorization"

	// EventTypeDataAccess covers reads and writes of protected data
	EventTypeDataAccess EventType = "data_access"

	// EventTypeSystem covers engine-internal and host-level events
	EventTypeSystem EventType = "system"

	// EventTypeNetwork covers outbound/inbound network activity
	EventTypeNetwork EventType = "network"

	// EventTypeBehavioral covers events synthesized by the behavioral analyzer
	EventTypeBehavioral EventType = "behavioral"

	// EventTypeSecurityError is the synthetic type recorded when event
	// processing itself fails inside the orchestrator pipeline
	EventTypeSecurityError EventType = "security_error"
)

// EventTypes lists every caller-facing event type. EventTypeSecurityError is
// deliberately absent: it is synthesized by the engine, never ingested.
var EventTypes = []EventType{
	EventTypeAuthentication,
	EventTypeAuthorization,
	EventTypeDataAccess,
	EventTypeSystem,
	EventTypeNetwork,
	EventTypeBehavioral,
}

// ValidEventType reports whether t is a caller-facing event type.
func ValidEventType(t EventType) bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Severity represents the severity class of a security event.
type Severity string

const (
	// SeverityLow indicates routine activity
	SeverityLow Severity = "low"

	// SeverityMedium indicates activity worth watching
	SeverityMedium Severity = "medium"

	// SeverityHigh indicates activity requiring attention
	SeverityHigh Severity = "high"

	// SeverityCritical indicates activity requiring immediate action
	SeverityCritical Severity = "critical"
)

// Severities lists every severity class in ascending order.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// ValidSeverity reports whether s is a known severity class.
func ValidSeverity(s Severity) bool {
	for _, known := range Severities {
		if s == known {
			return true
		}
	}
	return false
}

// EventAction is the disposition the engine attached to an event.
type EventAction string

const (
	// ActionBlocked indicates the triggering request was rejected
	ActionBlocked EventAction = "blocked"

	// ActionFlagged indicates the event was marked for review
	ActionFlagged EventAction = "flagged"

	// ActionMonitored indicates the event is being tracked passively
	ActionMonitored EventAction = "monitored"

	// ActionAllowed indicates the event passed all checks
	ActionAllowed EventAction = "allowed"
)

// ================================================================================
// Risk Scoring Constants
// ================================================================================

const (
	// ThreatScoreThreshold is the aggregate score above which a payload is
	// treated as a threat even without a critical pattern match
	ThreatScoreThreshold = 0.7

	// DefaultAnomalyThreshold is the confidence above which behavior is anomalous
	DefaultAnomalyThreshold = 0.8

	// DefaultLearningRate is the EMA smoothing factor for profile risk
	DefaultLearningRate = 0.1

	// DefaultLearningWindowCap bounds the per-principal learning window
	DefaultLearningWindowCap = 1000

	// StatusRiskCriticalThreshold marks the critical band of the status risk score
	StatusRiskCriticalThreshold = 0.7

	// StatusRiskWarningThreshold marks the warning band of the status risk score
	StatusRiskWarningThreshold = 0.4
)

// Severity weights used when folding severity-class proportions into the
// aggregate status risk score.
const (
	SeverityWeightCritical = 1.0
	SeverityWeightHigh     = 0.6
	SeverityWeightMedium   = 0.3
	SeverityWeightLow      = 0.1
)

// ================================================================================
// Session & Lockout Constants
// ================================================================================

const (
	// DefaultSessionTimeout is the default session lifetime (1 hour)
	DefaultSessionTimeout = 1 * time.Hour

	// DefaultMaxFailedAttempts is the lockout threshold per principal
	DefaultMaxFailedAttempts = 5

	// DefaultLockoutWindow is the trailing window over which failed attempts count
	DefaultLockoutWindow = 5 * time.Minute

	// DefaultSessionTokenTTL bounds the signed session token lifetime
	DefaultSessionTokenTTL = DefaultSessionTimeout
)

// ValidationReason explains why a session validation failed.
type ValidationReason string

const (
	// ReasonNotFound indicates no session exists for the supplied id
	ReasonNotFound ValidationReason = "not_found"

	// ReasonInactive indicates the session was already invalidated
	ReasonInactive ValidationReason = "inactive"

	// ReasonExpired indicates the session passed its expiry time
	ReasonExpired ValidationReason = "expired"
)

// ================================================================================
// Rate Limiting Constants
// ================================================================================

// RateLimitClass identifies a logical operation class with its own limits.
type RateLimitClass string

const (
	// ClassAuthentication covers login and credential operations
	ClassAuthentication RateLimitClass = "authentication"

	// ClassIdentityCreation covers new identity registration
	ClassIdentityCreation RateLimitClass = "identity_creation"

	// ClassResolution covers identity/record resolution lookups
	ClassResolution RateLimitClass = "resolution"

	// ClassAPI covers generic API calls, including event ingestion
	ClassAPI RateLimitClass = "api"

	// ClassUserAction covers interactive user operations
	ClassUserAction RateLimitClass = "user_action"

	// ClassFileUpload covers file upload operations
	ClassFileUpload RateLimitClass = "file_upload"

	// ClassRecovery covers account recovery operations
	ClassRecovery RateLimitClass = "recovery"
)

const (
	// DefaultRateLimitWindow is the counting window when a class has no override
	DefaultRateLimitWindow = 1 * time.Minute

	// DefaultRateLimitMax is the per-window request cap when a class has no override
	DefaultRateLimitMax = 100

	// DefaultRateLimitBlock is how long a key stays blocked after exceeding its cap
	DefaultRateLimitBlock = 5 * time.Minute
)

// ================================================================================
// Secure Enclave Constants
// ================================================================================

// EnclaveKind identifies a hardware security capability family.
type EnclaveKind string

const (
	// EnclaveKindTPM is a Trusted Platform Module
	EnclaveKindTPM EnclaveKind = "tpm"

	// EnclaveKindSGX is an Intel SGX enclave
	EnclaveKindSGX EnclaveKind = "sgx"

	// EnclaveKindTrustZone is an ARM TrustZone environment
	EnclaveKindTrustZone EnclaveKind = "trustzone"

	// EnclaveKindSecureEnclave is a platform secure enclave (e.g. Apple SEP)
	EnclaveKindSecureEnclave EnclaveKind = "secure-enclave"

	// EnclaveKindSoftware is the software keystore fallback used when no
	// hardware capability is detected
	EnclaveKindSoftware EnclaveKind = "software-keystore"
)

// EnclaveStatus is the health status of a registered enclave.
type EnclaveStatus string

const (
	// EnclaveStatusActive indicates the enclave is trusted
	EnclaveStatusActive EnclaveStatus = "active"

	// EnclaveStatusCompromised indicates the enclave failed a health check
	EnclaveStatusCompromised EnclaveStatus = "compromised"
)

// EnclaveHealthFloor is the health score below which an enclave transitions
// to compromised.
const EnclaveHealthFloor = 0.9

// ================================================================================
// Status Reporting Constants
// ================================================================================

// OverallStatus is the aggregate security posture.
type OverallStatus string

const (
	// StatusSecure indicates normal posture
	StatusSecure OverallStatus = "secure"

	// StatusWarning indicates elevated risk
	StatusWarning OverallStatus = "warning"

	// StatusCritical indicates immediate attention is required
	StatusCritical OverallStatus = "critical"
)

// Trend is the direction of recent event volume.
type Trend string

const (
	// TrendImproving indicates event volume is falling
	TrendImproving Trend = "improving"

	// TrendDeclining indicates event volume is rising
	TrendDeclining Trend = "declining"

	// TrendStable indicates no significant change
	TrendStable Trend = "stable"
)

const (
	// DefaultMetricsHistoryCap bounds the retained event history
	DefaultMetricsHistoryCap = 10_000

	// TrendWindowSize is the number of history entries per trend comparison window
	TrendWindowSize = 100

	// TrendChangeRatio is the relative change that flips the trend (±20%)
	TrendChangeRatio = 0.2

	// DefaultReportingInterval is the suggested cadence for status refreshes
	DefaultReportingInterval = 1 * time.Minute
)

// ================================================================================
// Service Configuration Constants
// ================================================================================

const (
	// DefaultServicePort is the default HTTP service port
	DefaultServicePort = 8080

	// DefaultShutdownTimeout is the graceful shutdown timeout
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultSweepInterval is the default cadence for maintenance sweeps
	DefaultSweepInterval = 1 * time.Minute
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context.
type ContextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyPrincipalID is the key for principal ID in context
	ContextKeyPrincipalID ContextKey = "principal_id"

	// ContextKeyClientIP is the key for client IP address in context
	ContextKeyClientIP ContextKey = "client_ip"
)

// ================================================================================
// Logging Constants
// ================================================================================

// LogLevel represents the severity level of log messages.
type LogLevel string

const (
	// LogLevelDebug is the most verbose logging level
	LogLevelDebug LogLevel = "debug"

	// LogLevelInfo is the standard informational logging level
	LogLevelInfo LogLevel = "info"

	// LogLevelWarn indicates potential issues
	LogLevelWarn LogLevel = "warn"

	// LogLevelError indicates errors that need attention
	LogLevelError LogLevel = "error"

	// LogLevelFatal indicates critical errors that cause service termination
	LogLevelFatal LogLevel = "fatal"
)
