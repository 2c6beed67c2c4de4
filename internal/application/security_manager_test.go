package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentra-sec/sentra/internal/application"
	"github.com/sentra-sec/sentra/internal/config"
	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/internal/domain/service"
	"github.com/sentra-sec/sentra/internal/security/behavior"
	"github.com/sentra-sec/sentra/internal/security/certpin"
	"github.com/sentra-sec/sentra/internal/security/enclave"
	"github.com/sentra-sec/sentra/internal/security/metrics"
	"github.com/sentra-sec/sentra/internal/security/ratelimit"
	"github.com/sentra-sec/sentra/internal/security/session"
	"github.com/sentra-sec/sentra/internal/security/threat"
	"github.com/sentra-sec/sentra/pkg/constants"
	pkgerrors "github.com/sentra-sec/sentra/pkg/errors"
	"github.com/sentra-sec/sentra/pkg/logger"
)

type capturingSink struct {
	delivered chan *models.SecurityEvent
}

func (s *capturingSink) Deliver(_ context.Context, e *models.SecurityEvent) error {
	s.delivered <- e
	return nil
}

func (s *capturingSink) Close() error { return nil }

type stubDetector struct{}

func (stubDetector) Detect(context.Context) ([]enclave.Detection, error) {
	return []enclave.Detection{{Kind: constants.EnclaveKindSoftware, KeyStore: "software"}}, nil
}

type stubScorer struct{}

func (stubScorer) Score(context.Context, *models.SecureEnclave) (float64, error) {
	return 1.0, nil
}

type testHarness struct {
	manager *application.SecurityManager
	sink    *capturingSink
}

func newHarness(t *testing.T, opts ...func(*application.Components)) *testHarness {
	t.Helper()
	log := logger.NewDefaultLogger()
	sink := &capturingSink{delivered: make(chan *models.SecurityEvent, 16)}

	registry := enclave.NewRegistry(log,
		enclave.WithDetector(stubDetector{}),
		enclave.WithHealthScorer(stubScorer{}))
	registry.DetectAndRegister(context.Background())

	c := application.Components{
		Threats:  threat.NewMatcher(),
		Limiter:  ratelimit.NewLimiter(ratelimit.NewMemoryStore(), nil),
		Pins:     certpin.NewStore(nil),
		Enclaves: registry,
		Behavior: behavior.NewAnalyzer(log),
		Sessions: session.NewManager(log),
		Metrics:  metrics.NewReporter(log),
		Alerts:   sink,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return &testHarness{
		manager: application.NewSecurityManager(c, log),
		sink:    sink,
	}
}

func newEvent(sev constants.Severity) *models.SecurityEvent {
	e := models.NewSecurityEvent(constants.EventTypeAuthentication, sev)
	e.PrincipalID = "alice"
	return e
}

func TestManager_ProcessEventReturnsStatus(t *testing.T) {
	h := newHarness(t)

	status, err := h.manager.ProcessSecurityEvent(context.Background(), newEvent(constants.SeverityLow))
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, constants.StatusSecure, status.Overall)
	assert.NotEmpty(t, status.Recommendations)
	assert.Equal(t, 1.0, status.EnclaveHealth)

	export := h.manager.ExportSecurityData(context.Background())
	assert.Equal(t, int64(1), export.Metrics.TotalEvents)
	assert.Contains(t, export.Profiles, "alice")
}

func TestManager_NilEventRejected(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.ProcessSecurityEvent(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidRequest))
}

func TestManager_UnknownEnumValuesRejected(t *testing.T) {
	h := newHarness(t)

	bogusType := models.NewSecurityEvent(constants.EventType("banana"), constants.SeverityLow)
	bogusType.PrincipalID = "alice"
	_, err := h.manager.ProcessSecurityEvent(context.Background(), bogusType)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidRequest))

	bogusSeverity := models.NewSecurityEvent(constants.EventTypeAuthentication, constants.Severity("extreme"))
	bogusSeverity.PrincipalID = "alice"
	_, err = h.manager.ProcessSecurityEvent(context.Background(), bogusSeverity)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidRequest))

	// Synthetic engine-internal types cannot be ingested from outside either.
	synthetic := models.NewSecurityEvent(constants.EventTypeSecurityError, constants.SeverityHigh)
	_, err = h.manager.ProcessSecurityEvent(context.Background(), synthetic)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidRequest))

	// Rejected events leave no trace in profiles or metrics.
	export := h.manager.ExportSecurityData(context.Background())
	assert.Zero(t, export.Metrics.TotalEvents)
	assert.NotContains(t, export.Profiles, "alice")
}

func TestManager_ThreatMatchEscalatesSeverity(t *testing.T) {
	h := newHarness(t)

	e := newEvent(constants.SeverityLow)
	e.Details["query"] = "name' OR '1'='1"

	_, err := h.manager.ProcessSecurityEvent(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, constants.SeverityHigh, e.Severity)
	assert.Contains(t, e.Details, "threat_match")
	assert.Greater(t, e.RiskScore, 0.0)
}

func TestManager_RateLimitDenialEscalates(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.UpdateConfig(withRateLimit(config.DefaultSecurityConfig(), 1)))

	first := newEvent(constants.SeverityLow)
	_, err := h.manager.ProcessSecurityEvent(context.Background(), first)
	require.NoError(t, err)
	assert.NotContains(t, first.Details, "rate_limit")

	second := newEvent(constants.SeverityLow)
	_, err = h.manager.ProcessSecurityEvent(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, constants.SeverityHigh, second.Severity)
	assert.Contains(t, second.Details, "rate_limit")
}

func withRateLimit(cfg config.SecurityConfig, max int) config.SecurityConfig {
	cfg.RateLimits[string(constants.ClassAPI)] = config.RateLimitRule{
		MaxRequests:   max,
		Window:        time.Minute,
		BlockDuration: time.Minute,
	}
	return cfg
}

func TestManager_AnomalyEscalates(t *testing.T) {
	h := newHarness(t)
	cfg := config.DefaultSecurityConfig()
	cfg.AnomalyThreshold = 0.25
	require.NoError(t, h.manager.UpdateConfig(cfg))

	// Repeated same-hour activity trips the hourly-spike signal (0.3 > 0.25).
	var last *models.SecurityEvent
	for i := 0; i < 3; i++ {
		last = newEvent(constants.SeverityLow)
		_, err := h.manager.ProcessSecurityEvent(context.Background(), last)
		require.NoError(t, err)
	}

	assert.Equal(t, constants.SeverityHigh, last.Severity)
	assert.Contains(t, last.Details, "behavioral_anomaly")
}

func TestManager_PipelineFailureCapturedAsSyntheticEvent(t *testing.T) {
	h := newHarness(t, func(c *application.Components) {
		c.Limiter = failingLimiter{}
	})

	_, err := h.manager.ProcessSecurityEvent(context.Background(), newEvent(constants.SeverityLow))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProcessingFailure))

	export := h.manager.ExportSecurityData(context.Background())
	var captured bool
	for _, recorded := range export.Metrics.History {
		if recorded.Type == constants.EventTypeSecurityError {
			captured = true
			assert.Equal(t, constants.SeverityHigh, recorded.Severity)
			assert.Equal(t, "rate_limit", recorded.Details["stage"])
		}
	}
	assert.True(t, captured, "pipeline failure must be recorded as a security_error event")
}

type failingLimiter struct{}

func (failingLimiter) CheckLimit(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("store unavailable")
}

func (failingLimiter) CheckClass(context.Context, constants.RateLimitClass, string) (bool, error) {
	return false, errors.New("store unavailable")
}

func (failingLimiter) Info(context.Context, string) (*models.RateLimitInfo, error) {
	return nil, nil
}

func (failingLimiter) UpdateRules(map[string]config.RateLimitRule) {}

func (failingLimiter) Sweep(context.Context) (int, error) { return 0, nil }

func (failingLimiter) Reset(context.Context) error { return nil }

var _ service.RateLimitService = failingLimiter{}

func TestManager_HighSeverityEventsReachAlertSink(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.ProcessSecurityEvent(context.Background(), newEvent(constants.SeverityCritical))
	require.NoError(t, err)

	select {
	case alert := <-h.sink.delivered:
		assert.Equal(t, constants.SeverityCritical, alert.Severity)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an alert delivery")
	}
}

func TestManager_LowSeverityEventsDoNotAlert(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.ProcessSecurityEvent(context.Background(), newEvent(constants.SeverityLow))
	require.NoError(t, err)

	select {
	case <-h.sink.delivered:
		t.Fatal("low-severity events must not alert")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManager_SessionPassThrough(t *testing.T) {
	h := newHarness(t)

	s, err := h.manager.CreateSession("alice", map[string]string{"ip_address": "203.0.113.7"})
	require.NoError(t, err)

	v := h.manager.ValidateSession(s.ID)
	assert.True(t, v.IsValid)

	extended, err := h.manager.ExtendSession(s.ID, time.Hour)
	require.NoError(t, err)
	assert.True(t, extended.ExpiresAt.After(s.ExpiresAt))

	assert.True(t, h.manager.InvalidateSession(s.ID))
	assert.False(t, h.manager.ValidateSession(s.ID).IsValid)
}

func TestManager_LockoutPassThrough(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < constants.DefaultMaxFailedAttempts; i++ {
		h.manager.RecordFailedAttempt("alice", models.FailedAttempt{Timestamp: time.Now()})
	}
	assert.True(t, h.manager.IsUserLocked("alice"))

	h.manager.ResetFailedAttempts("alice")
	assert.False(t, h.manager.IsUserLocked("alice"))
}

func TestManager_CertificatePassThrough(t *testing.T) {
	h := newHarness(t)

	h.manager.PinCertificate("api.example.com", []string{"aa:bb:cc"})
	assert.True(t, h.manager.VerifyCertificate("api.example.com", "aa:bb:cc"))
	assert.False(t, h.manager.VerifyCertificate("api.example.com", "dd:ee:ff"))
	assert.True(t, h.manager.UnpinCertificate("api.example.com"))
	assert.True(t, h.manager.VerifyCertificate("api.example.com", "dd:ee:ff"))
}

func TestManager_UpdateConfigRejectsInvalid(t *testing.T) {
	h := newHarness(t)

	cfg := config.DefaultSecurityConfig()
	cfg.LearningRate = 2.0
	err := h.manager.UpdateConfig(cfg)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidConfig))

	cfg = config.DefaultSecurityConfig()
	cfg.ThreatPatterns = []config.ThreatPatternConfig{{ID: "bad", Expression: "("}}
	assert.Error(t, h.manager.UpdateConfig(cfg))
}

func TestManager_UpdateConfigAppliesEverywhere(t *testing.T) {
	h := newHarness(t)

	cfg := config.DefaultSecurityConfig()
	cfg.SessionTimeout = 2 * time.Hour
	cfg.CertificatePins = map[string][]string{"api.example.com": {"aa:bb:cc"}}
	cfg.ThreatPatterns = []config.ThreatPatternConfig{{
		ID:         "ldap-injection",
		Name:       "LDAP injection",
		Severity:   "high",
		Expression: `\(\|\(`,
	}}
	require.NoError(t, h.manager.UpdateConfig(cfg))

	before := time.Now()
	s, err := h.manager.CreateSession("alice", nil)
	require.NoError(t, err)
	assert.True(t, s.ExpiresAt.After(before.Add(2*time.Hour-time.Minute)))

	assert.False(t, h.manager.VerifyCertificate("api.example.com", "unknown"))

	var registered bool
	for _, p := range h.manager.ThreatPatterns() {
		if p.ID == "ldap-injection" {
			registered = true
		}
	}
	assert.True(t, registered)
}

func TestManager_ResetClearsAllState(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.ProcessSecurityEvent(context.Background(), newEvent(constants.SeverityLow))
	require.NoError(t, err)
	_, err = h.manager.CreateSession("alice", nil)
	require.NoError(t, err)
	h.manager.PinCertificate("api.example.com", []string{"aa:bb:cc"})

	require.NoError(t, h.manager.Reset(context.Background()))

	export := h.manager.ExportSecurityData(context.Background())
	assert.Zero(t, export.Metrics.TotalEvents)
	assert.Empty(t, export.Profiles)
	assert.Empty(t, export.Sessions)
	assert.True(t, h.manager.VerifyCertificate("api.example.com", "anything"))
}

func TestManager_StatusReflectsCriticalStream(t *testing.T) {
	h := newHarness(t)

	var status *models.SecurityStatus
	for i := 0; i < 10; i++ {
		e := newEvent(constants.SeverityCritical)
		var err error
		status, err = h.manager.ProcessSecurityEvent(context.Background(), e)
		require.NoError(t, err)
	}

	assert.Equal(t, constants.StatusCritical, status.Overall)
	assert.Greater(t, status.ActiveThreats, 0)
}
