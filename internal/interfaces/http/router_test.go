package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentra-sec/sentra/internal/application"
	"github.com/sentra-sec/sentra/internal/config"
	"github.com/sentra-sec/sentra/internal/domain/models"
	sentrahttp "github.com/sentra-sec/sentra/internal/interfaces/http"
	"github.com/sentra-sec/sentra/internal/security/behavior"
	"github.com/sentra-sec/sentra/internal/security/certpin"
	"github.com/sentra-sec/sentra/internal/security/enclave"
	"github.com/sentra-sec/sentra/internal/security/metrics"
	"github.com/sentra-sec/sentra/internal/security/ratelimit"
	"github.com/sentra-sec/sentra/internal/security/session"
	"github.com/sentra-sec/sentra/internal/security/threat"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/logger"
)

type dropSink struct{}

func (dropSink) Deliver(context.Context, *models.SecurityEvent) error { return nil }
func (dropSink) Close() error                                         { return nil }

type swDetector struct{}

func (swDetector) Detect(context.Context) ([]enclave.Detection, error) {
	return []enclave.Detection{{Kind: constants.EnclaveKindSoftware, KeyStore: "software"}}, nil
}

func newTestRouter(t *testing.T, rules map[string]config.RateLimitRule) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewDefaultLogger()

	registry := enclave.NewRegistry(log, enclave.WithDetector(swDetector{}))
	registry.DetectAndRegister(context.Background())

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), rules)
	manager := application.NewSecurityManager(application.Components{
		Threats:  threat.NewMatcher(),
		Limiter:  limiter,
		Pins:     certpin.NewStore(nil),
		Enclaves: registry,
		Behavior: behavior.NewAnalyzer(log),
		Sessions: session.NewManager(log),
		Metrics:  metrics.NewReporter(log),
		Alerts:   dropSink{},
	}, log)

	tokens, err := session.NewTokenIssuer("router-test-signing-key", time.Hour)
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost"},
		},
	}

	router := sentrahttp.NewRouter(cfg, log, manager, limiter, tokens)
	router.SetupRoutes()
	return router.Engine()
}

func doJSON(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthEndpoints(t *testing.T) {
	engine := newTestRouter(t, nil)

	for _, path := range []string{"/health", "/ready", "/live"} {
		w := doJSON(engine, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_ProcessEvent(t *testing.T) {
	engine := newTestRouter(t, nil)

	w := doJSON(engine, http.MethodPost, "/api/v1/events", gin.H{
		"type":         "authentication",
		"severity":     "low",
		"principal_id": "alice",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Event  *models.SecurityEvent  `json:"event"`
		Status *models.SecurityStatus `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Event.ID)
	assert.Equal(t, constants.StatusSecure, resp.Status.Overall)
}

func TestRouter_ProcessEventRejectsBadPayload(t *testing.T) {
	engine := newTestRouter(t, nil)

	w := doJSON(engine, http.MethodPost, "/api/v1/events", gin.H{"severity": "low"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ProcessEventRejectsUnknownEnums(t *testing.T) {
	engine := newTestRouter(t, nil)

	w := doJSON(engine, http.MethodPost, "/api/v1/events", gin.H{
		"type":     "banana",
		"severity": "low",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown event type")

	w = doJSON(engine, http.MethodPost, "/api/v1/events", gin.H{
		"type":     "authentication",
		"severity": "extreme",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown severity")
}

func TestRouter_RateLimitHeadersAndDenial(t *testing.T) {
	engine := newTestRouter(t, map[string]config.RateLimitRule{
		string(constants.ClassAPI): {MaxRequests: 2, Window: time.Minute, BlockDuration: time.Minute},
	})

	for i := 0; i < 2; i++ {
		w := doJSON(engine, http.MethodGet, "/api/v1/status", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := doJSON(engine, http.MethodGet, "/api/v1/status", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate limit")
}

func TestRouter_CertificatePinFlow(t *testing.T) {
	engine := newTestRouter(t, nil)

	w := doJSON(engine, http.MethodPut, "/api/v1/pins/api.example.com",
		gin.H{"fingerprints": []string{"aa:bb:cc"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(engine, http.MethodPost, "/api/v1/pins/api.example.com/verify",
		gin.H{"fingerprint": "aa:bb:cc"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"trusted":true`)

	w = doJSON(engine, http.MethodPost, "/api/v1/pins/api.example.com/verify",
		gin.H{"fingerprint": "dd:ee:ff"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"trusted":false`)

	w = doJSON(engine, http.MethodDelete, "/api/v1/pins/api.example.com", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(engine, http.MethodDelete, "/api/v1/pins/api.example.com", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_SessionLifecycle(t *testing.T) {
	engine := newTestRouter(t, nil)

	w := doJSON(engine, http.MethodPost, "/api/v1/sessions", gin.H{"principal_id": "alice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Session *models.Session `json:"session"`
		Token   string          `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotNil(t, created.Session)
	assert.NotEmpty(t, created.Token)
	assert.NotEmpty(t, created.Session.IPAddress)

	w = doJSON(engine, http.MethodGet, "/api/v1/sessions/"+created.Session.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(engine, http.MethodGet, "/api/v1/sessions/no-such-session", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(engine, http.MethodDelete, "/api/v1/sessions/"+created.Session.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(engine, http.MethodGet, "/api/v1/sessions/"+created.Session.ID, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_UnknownRouteReturnsJSON404(t *testing.T) {
	engine := newTestRouter(t, nil)

	w := doJSON(engine, http.MethodGet, "/api/v2/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
}
