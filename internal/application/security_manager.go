// Package application hosts the security manager, the single entry point
// external collaborators call. It orchestrates the detection components over
// each incoming event and exposes pass-through operations for sessions,
// certificate pinning, profiles, and configuration.
package application

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sentra-sec/sentra/internal/config"
	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/internal/domain/service"
	"github.com/sentra-sec/sentra/internal/infrastructure/monitoring"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/errors"
	"github.com/sentra-sec/sentra/pkg/logger"
)

// alertDeliveryTimeout bounds the asynchronous alert publish so a slow broker
// can never hold a goroutine indefinitely.
const alertDeliveryTimeout = 10 * time.Second

// Components are the collaborators the manager orchestrates.
type Components struct {
	Threats  service.ThreatMatcher
	Limiter  service.RateLimitService
	Pins     service.CertPinService
	Enclaves service.EnclaveService
	Behavior service.BehaviorAnalyzer
	Sessions service.SessionService
	Metrics  service.MetricsReporter
	Alerts   service.AlertSink
}

// SecurityManager is the engine facade. All shared mutable state lives inside
// the components, each guarded by its own lock, so concurrent callers for
// different principals interleave freely while same-key operations stay
// linearizable.
type SecurityManager struct {
	c      Components
	log    logger.Logger
	tracer *monitoring.TracingManager
	prom   *monitoring.Metrics
	now    func() time.Time
}

// Option customizes a SecurityManager.
type Option func(*SecurityManager)

// WithTracing attaches the OpenTelemetry tracing manager.
func WithTracing(tm *monitoring.TracingManager) Option {
	return func(m *SecurityManager) { m.tracer = tm }
}

// WithPrometheus attaches the operational Prometheus metrics.
func WithPrometheus(pm *monitoring.Metrics) Option {
	return func(m *SecurityManager) { m.prom = pm }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *SecurityManager) { m.now = now }
}

// NewSecurityManager wires the manager over its components.
func NewSecurityManager(c Components, log logger.Logger, opts ...Option) *SecurityManager {
	m := &SecurityManager{
		c:   c,
		log: log.WithComponent("security-manager"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ProcessSecurityEvent runs the full detection pipeline over one event and
// returns the refreshed aggregate status. The pipeline order is fixed and no
// step is skipped once an earlier one raises severity: record into metrics,
// update the behavioral profile, threat match, rate-limit check, anomaly
// detection, enclave health, then status derivation. Any failure inside the
// pipeline is itself captured as a synthetic high-severity event fed back
// into metrics before the error is returned.
func (m *SecurityManager) ProcessSecurityEvent(ctx context.Context, event *models.SecurityEvent) (status *models.SecurityStatus, err error) {
	if event == nil {
		return nil, errors.ErrInvalidRequest("security event is required")
	}
	if !constants.ValidEventType(event.Type) {
		return nil, errors.ErrInvalidRequest(fmt.Sprintf("unknown event type %q", event.Type))
	}
	if !constants.ValidSeverity(event.Severity) {
		return nil, errors.ErrInvalidRequest(fmt.Sprintf("unknown severity %q", event.Severity))
	}

	if m.tracer != nil {
		var span trace.Span
		ctx, span = m.tracer.StartSpan(ctx, "security.process_event",
			trace.WithAttributes(
				attribute.String("event.id", event.ID),
				attribute.String("event.type", string(event.Type)),
			))
		defer span.End()
	}

	started := m.now()
	stage := "pipeline"
	defer func() {
		if r := recover(); r != nil {
			err = m.captureFailure(ctx, stage, fmt.Errorf("panic: %v", r))
			status = nil
		}
		m.c.Metrics.RecordResponseTime(m.now().Sub(started))
		if m.prom != nil {
			result := "ok"
			if err != nil {
				result = "error"
			}
			m.prom.RecordEvent(event.Type, event.Severity, result, m.now().Sub(started))
		}
	}()

	stage = "metrics"
	m.c.Metrics.RecordEvent(event)

	stage = "behavior_update"
	if event.PrincipalID != "" {
		m.c.Behavior.UpdateProfile(event.PrincipalID, event)
	}

	stage = "threat_match"
	if verdict := m.c.Threats.Evaluate(eventPayload(event)); verdict.IsThreat {
		event.Escalate(constants.SeverityHigh, "threat_match",
			fmt.Sprintf("matched patterns: %s", strings.Join(verdict.MatchedPatterns, ", ")))
		if verdict.RiskScore > event.RiskScore {
			event.RiskScore = verdict.RiskScore
		}
	}

	stage = "rate_limit"
	if event.PrincipalID != "" {
		allowed, limitErr := m.c.Limiter.CheckClass(ctx, constants.ClassAPI,
			event.PrincipalID+":"+string(event.Type))
		if limitErr != nil {
			return nil, m.captureFailure(ctx, stage, limitErr)
		}
		if !allowed {
			event.Escalate(constants.SeverityHigh, "rate_limit", "request rate exceeded for principal and event type")
			if m.prom != nil {
				m.prom.RecordRateLimitDenial(constants.ClassAPI)
			}
		}
	}

	stage = "anomaly_detection"
	if event.PrincipalID != "" {
		report, anomalyErr := m.c.Behavior.DetectAnomalies(event.PrincipalID)
		if anomalyErr != nil {
			return nil, m.captureFailure(ctx, stage, anomalyErr)
		}
		if report.IsAnomaly {
			event.Escalate(constants.SeverityHigh, "behavioral_anomaly",
				fmt.Sprintf("anomaly confidence %.2f: %s", report.Confidence, strings.Join(report.Details, "; ")))
			if m.prom != nil {
				m.prom.RecordAnomaly()
			}
		}
	}

	stage = "enclave_health"
	m.c.Enclaves.CheckHealth(ctx)
	enclaveHealth := m.c.Enclaves.AverageHealth()
	if m.prom != nil {
		m.prom.SetEnclaveHealth(enclaveHealth)
	}

	if event.IsHighSeverity() {
		m.deliverAlert(event)
	}

	return m.c.Metrics.GenerateStatus(enclaveHealth), nil
}

// captureFailure records a synthetic high-severity event describing a
// pipeline failure, then returns the wrapped error. Failures are never
// silently swallowed and never corrupt previously-recorded state.
func (m *SecurityManager) captureFailure(ctx context.Context, stage string, cause error) error {
	synthetic := models.NewSecurityEvent(constants.EventTypeSecurityError, constants.SeverityHigh)
	synthetic.Details["stage"] = stage
	synthetic.Details["error"] = cause.Error()
	m.c.Metrics.RecordEvent(synthetic)

	if m.tracer != nil {
		m.tracer.RecordError(ctx, cause)
	}
	m.log.Error(ctx, "event processing failed", cause, logger.String("stage", stage))
	return errors.ErrProcessingFailure(stage, cause)
}

// deliverAlert hands the event to the alert sink without blocking the
// pipeline.
func (m *SecurityManager) deliverAlert(event *models.SecurityEvent) {
	alert := *event
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), alertDeliveryTimeout)
		defer cancel()
		if err := m.c.Alerts.Deliver(ctx, &alert); err != nil {
			m.log.Error(ctx, "alert delivery failed", err, logger.String("event_id", alert.ID))
		}
	}()
}

// eventPayload flattens the event's inspectable surface for threat matching:
// detail values (in key order) plus the user agent.
func eventPayload(event *models.SecurityEvent) string {
	keys := make([]string, 0, len(event.Details))
	for k := range event.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, event.Details[k])
	}
	if event.UserAgent != "" {
		parts = append(parts, event.UserAgent)
	}
	return strings.Join(parts, "\n")
}

// ================================================================================
// Pass-through Operations
// ================================================================================

// PinCertificate replaces the fingerprint allow-list for a domain.
func (m *SecurityManager) PinCertificate(domain string, fingerprints []string) {
	m.c.Pins.Pin(domain, fingerprints)
}

// VerifyCertificate reports whether the fingerprint is trusted for the domain.
func (m *SecurityManager) VerifyCertificate(domain, fingerprint string) bool {
	return m.c.Pins.Verify(domain, fingerprint)
}

// UnpinCertificate removes a domain's pin entry.
func (m *SecurityManager) UnpinCertificate(domain string) bool {
	return m.c.Pins.Unpin(domain)
}

// CertificatePins returns a copy of the pin table.
func (m *SecurityManager) CertificatePins() map[string][]string {
	return m.c.Pins.Pins()
}

// CreateSession starts a session for a principal.
func (m *SecurityManager) CreateSession(principalID string, metadata map[string]string) (*models.Session, error) {
	s, err := m.c.Sessions.CreateSession(principalID, metadata)
	if err == nil && m.prom != nil {
		m.prom.RecordSessionCreated()
	}
	return s, err
}

// ValidateSession checks a session id.
func (m *SecurityManager) ValidateSession(sessionID string) *models.SessionValidation {
	return m.c.Sessions.ValidateSession(sessionID)
}

// ExtendSession pushes an active session's expiry forward.
func (m *SecurityManager) ExtendSession(sessionID string, additional time.Duration) (*models.Session, error) {
	return m.c.Sessions.ExtendSession(sessionID, additional)
}

// InvalidateSession deactivates a session.
func (m *SecurityManager) InvalidateSession(sessionID string) bool {
	return m.c.Sessions.InvalidateSession(sessionID)
}

// InvalidateAllForPrincipal deactivates every session of a principal.
func (m *SecurityManager) InvalidateAllForPrincipal(principalID string) int {
	return m.c.Sessions.InvalidateAllForPrincipal(principalID)
}

// RecordFailedAttempt appends a failed attempt and returns the standing.
func (m *SecurityManager) RecordFailedAttempt(principalID string, attempt models.FailedAttempt) *models.LockoutStatus {
	return m.c.Sessions.RecordFailedAttempt(principalID, attempt)
}

// IsUserLocked reports whether a principal is locked out.
func (m *SecurityManager) IsUserLocked(principalID string) bool {
	return m.c.Sessions.IsUserLocked(principalID)
}

// ResetFailedAttempts clears a principal's failure history.
func (m *SecurityManager) ResetFailedAttempts(principalID string) {
	m.c.Sessions.ResetFailedAttempts(principalID)
}

// CheckLimit counts one request against an arbitrary key.
func (m *SecurityManager) CheckLimit(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, error) {
	return m.c.Limiter.CheckLimit(ctx, key, maxRequests, window)
}

// CheckClass counts one request against a key under an operation class.
func (m *SecurityManager) CheckClass(ctx context.Context, class constants.RateLimitClass, key string) (bool, error) {
	allowed, err := m.c.Limiter.CheckClass(ctx, class, key)
	if err == nil && !allowed && m.prom != nil {
		m.prom.RecordRateLimitDenial(class)
	}
	return allowed, err
}

// RateLimitInfo returns the state of a rate-limited key.
func (m *SecurityManager) RateLimitInfo(ctx context.Context, key string) (*models.RateLimitInfo, error) {
	return m.c.Limiter.Info(ctx, key)
}

// GetBehavioralProfile returns a copy of a principal's profile.
func (m *SecurityManager) GetBehavioralProfile(principalID string) (*models.BehavioralProfile, error) {
	return m.c.Behavior.Profile(principalID)
}

// DetectBehavioralAnomalies runs anomaly detection for a principal.
func (m *SecurityManager) DetectBehavioralAnomalies(principalID string) (*models.AnomalyReport, error) {
	return m.c.Behavior.DetectAnomalies(principalID)
}

// RegisterThreatPattern adds a pattern to the matcher registry.
func (m *SecurityManager) RegisterThreatPattern(pattern models.ThreatPattern) error {
	return m.c.Threats.Register(pattern)
}

// UnregisterThreatPattern removes a pattern by id.
func (m *SecurityManager) UnregisterThreatPattern(id string) bool {
	return m.c.Threats.Unregister(id)
}

// ThreatPatterns returns the registered patterns.
func (m *SecurityManager) ThreatPatterns() []models.ThreatPattern {
	return m.c.Threats.Patterns()
}

// SecurityStatus derives the current posture without processing an event.
func (m *SecurityManager) SecurityStatus() *models.SecurityStatus {
	return m.c.Metrics.GenerateStatus(m.c.Enclaves.AverageHealth())
}

// ExportSecurityData serializes the engine's state for audit and debugging.
func (m *SecurityManager) ExportSecurityData(ctx context.Context) *models.SecurityExport {
	if m.tracer != nil {
		_, span := m.tracer.StartSpan(ctx, "security.export")
		defer span.End()
	}

	return &models.SecurityExport{
		ExportedAt: m.now(),
		Metrics:    m.c.Metrics.Snapshot(),
		Profiles:   m.c.Behavior.Profiles(),
		Enclaves:   m.c.Enclaves.Enclaves(),
		Sessions:   m.c.Sessions.Sessions(),
	}
}

// UpdateConfig applies a validated runtime configuration to every component.
// A rejected configuration leaves all components untouched.
func (m *SecurityManager) UpdateConfig(cfg config.SecurityConfig) error {
	if err := cfg.Validate(); err != nil {
		return errors.ErrInvalidConfig(err.Error())
	}
	for _, p := range cfg.ThreatPatterns {
		if p.ID == "" || p.Expression == "" {
			return errors.ErrInvalidConfig(fmt.Sprintf("threat pattern %q requires id and expression", p.Name))
		}
		if _, err := regexp.Compile(p.Expression); err != nil {
			return errors.ErrInvalidConfig(fmt.Sprintf("threat pattern %q: %v", p.ID, err))
		}
	}

	if err := m.c.Behavior.Configure(cfg.AnomalyThreshold, cfg.LearningRate); err != nil {
		return err
	}
	if err := m.c.Sessions.Configure(cfg.SessionTimeout, cfg.MaxFailedAttempts, cfg.LockoutDuration); err != nil {
		return err
	}
	if err := m.c.Metrics.Configure(cfg.MetricsHistoryCap); err != nil {
		return err
	}
	m.c.Limiter.UpdateRules(cfg.RateLimits)
	for domain, fingerprints := range cfg.CertificatePins {
		m.c.Pins.Pin(domain, fingerprints)
	}
	for _, p := range cfg.ThreatPatterns {
		pattern := models.ThreatPattern{
			ID:          p.ID,
			Name:        p.Name,
			Severity:    constants.Severity(strings.ToLower(p.Severity)),
			Expression:  p.Expression,
			Description: p.Description,
			Mitigation:  p.Mitigation,
		}
		if err := m.c.Threats.Register(pattern); err != nil {
			return errors.ErrInvalidConfig(err.Error())
		}
	}

	m.log.Info(context.Background(), "runtime configuration applied",
		logger.Float64("anomaly_threshold", cfg.AnomalyThreshold),
		logger.Float64("learning_rate", cfg.LearningRate),
		logger.Int("max_failed_attempts", cfg.MaxFailedAttempts))
	return nil
}

// CleanupExpiredSessions flags expired-but-active sessions.
func (m *SecurityManager) CleanupExpiredSessions() int {
	return m.c.Sessions.CleanupExpiredSessions()
}

// SweepRateLimits drops lapsed rate-limit entries.
func (m *SecurityManager) SweepRateLimits(ctx context.Context) (int, error) {
	return m.c.Limiter.Sweep(ctx)
}

// CheckEnclaveHealth re-scores every registered enclave.
func (m *SecurityManager) CheckEnclaveHealth(ctx context.Context) []*models.SecureEnclave {
	updated := m.c.Enclaves.CheckHealth(ctx)
	if m.prom != nil {
		m.prom.SetEnclaveHealth(m.c.Enclaves.AverageHealth())
	}
	return updated
}

// DetectEnclaves probes for hardware capabilities and registers them.
func (m *SecurityManager) DetectEnclaves(ctx context.Context) []*models.SecureEnclave {
	return m.c.Enclaves.DetectAndRegister(ctx)
}

// Reset clears all sub-component state.
func (m *SecurityManager) Reset(ctx context.Context) error {
	if err := m.c.Limiter.Reset(ctx); err != nil {
		return err
	}
	m.c.Pins.Reset()
	m.c.Enclaves.Reset()
	m.c.Behavior.Reset()
	m.c.Sessions.Reset()
	m.c.Metrics.Reset()
	m.log.Warn(ctx, "all security state cleared")
	return nil
}

// Close releases external resources (the alert sink).
func (m *SecurityManager) Close() error {
	return m.c.Alerts.Close()
}
