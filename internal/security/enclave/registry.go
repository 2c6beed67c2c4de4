// Package enclave tracks hardware security capability availability and
// health. Detection and health probing are pluggable strategies; the built-in
// implementations use cheap platform heuristics and never touch the hardware.
package enclave

import (
	"context"
	"crypto/rand"
	"math/big"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/logger"
)

// Detection is one capability found by a Detector.
type Detection struct {
	Kind         constants.EnclaveKind
	Capabilities []string
	KeyStore     string
}

// Detector probes the host for hardware security capabilities.
type Detector interface {
	// Detect returns the capabilities found. An empty result is valid; errors
	// are reserved for probe infrastructure failures.
	Detect(ctx context.Context) ([]Detection, error)
}

// HealthScorer produces a health score in [0,1] for a registered enclave.
type HealthScorer interface {
	Score(ctx context.Context, e *models.SecureEnclave) (float64, error)
}

// Registry owns the registered enclave records.
type Registry struct {
	detector Detector
	scorer   HealthScorer
	log      logger.Logger
	now      func() time.Time

	mu       sync.RWMutex
	enclaves map[string]*models.SecureEnclave
}

// Option customizes a Registry.
type Option func(*Registry)

// WithDetector overrides the capability detector.
func WithDetector(d Detector) Option {
	return func(r *Registry) { r.detector = d }
}

// WithHealthScorer overrides the health scorer.
func WithHealthScorer(s HealthScorer) Option {
	return func(r *Registry) { r.scorer = s }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry with the platform detector and simulated
// health scorer unless overridden.
func NewRegistry(log logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		detector: &platformDetector{},
		scorer:   &simulatedScorer{},
		log:      log.WithComponent("enclave"),
		now:      time.Now,
		enclaves: make(map[string]*models.SecureEnclave),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DetectAndRegister probes for capabilities and registers one enclave record
// per detection, each starting active with full health. When nothing is
// found, the software keystore fallback is registered so key storage is
// always available. Probe failures degrade to the fallback, never propagate.
func (r *Registry) DetectAndRegister(ctx context.Context) []*models.SecureEnclave {
	detections, err := r.detector.Detect(ctx)
	if err != nil {
		r.log.Warn(ctx, "capability detection failed, falling back to software keystore",
			logger.String("error", err.Error()))
		detections = nil
	}
	if len(detections) == 0 {
		detections = []Detection{{
			Kind:         constants.EnclaveKindSoftware,
			Capabilities: []string{"key_storage", "signing"},
			KeyStore:     "software",
		}}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	registered := make([]*models.SecureEnclave, 0, len(detections))
	for _, d := range detections {
		e := &models.SecureEnclave{
			ID:              uuid.New().String(),
			Kind:            d.Kind,
			Status:          constants.EnclaveStatusActive,
			Capabilities:    append([]string(nil), d.Capabilities...),
			KeyStore:        d.KeyStore,
			LastHealthCheck: r.now(),
			HealthScore:     1.0,
		}
		r.enclaves[e.ID] = e
		registered = append(registered, e.Clone())

		r.log.Info(ctx, "registered secure enclave",
			logger.String("enclave_id", e.ID),
			logger.String("kind", string(e.Kind)),
			logger.String("key_store", e.KeyStore))
	}
	return registered
}

// CheckHealth re-scores every registered enclave. A score below the health
// floor, or a probe error, marks the enclave compromised; probe errors also
// zero the score. Returns the updated records.
func (r *Registry) CheckHealth(ctx context.Context) []*models.SecureEnclave {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := make([]*models.SecureEnclave, 0, len(r.enclaves))
	for _, e := range r.enclaves {
		score, err := r.scorer.Score(ctx, e)
		e.LastHealthCheck = r.now()
		switch {
		case err != nil:
			e.HealthScore = 0
			e.Status = constants.EnclaveStatusCompromised
			r.log.Error(ctx, "enclave health probe failed", err,
				logger.String("enclave_id", e.ID),
				logger.String("kind", string(e.Kind)))
		case score < constants.EnclaveHealthFloor:
			e.HealthScore = score
			e.Status = constants.EnclaveStatusCompromised
			r.log.Warn(ctx, "enclave health below floor, marking compromised",
				logger.String("enclave_id", e.ID),
				logger.Float64("health_score", score))
		default:
			e.HealthScore = score
			e.Status = constants.EnclaveStatusActive
		}
		updated = append(updated, e.Clone())
	}

	sort.Slice(updated, func(i, j int) bool { return updated[i].ID < updated[j].ID })
	return updated
}

// Enclaves returns copies of the registered enclave records.
func (r *Registry) Enclaves() []*models.SecureEnclave {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.SecureEnclave, 0, len(r.enclaves))
	for _, e := range r.enclaves {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AverageHealth returns the mean health score across registered enclaves,
// or 1.0 when none are registered so an empty registry never drags the
// posture down.
func (r *Registry) AverageHealth() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.enclaves) == 0 {
		return 1.0
	}
	var total float64
	for _, e := range r.enclaves {
		total += e.HealthScore
	}
	return total / float64(len(r.enclaves))
}

// Reset clears the registry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enclaves = make(map[string]*models.SecureEnclave)
}

// platformDetector applies cheap host heuristics: TPM device nodes on Linux,
// the Apple secure enclave on darwin/arm64, TrustZone on other ARM hosts.
type platformDetector struct{}

func (platformDetector) Detect(context.Context) ([]Detection, error) {
	var detections []Detection

	if runtime.GOOS == "linux" {
		for _, dev := range []string{"/dev/tpm0", "/dev/tpmrm0"} {
			if _, err := os.Stat(dev); err == nil {
				detections = append(detections, Detection{
					Kind:         constants.EnclaveKindTPM,
					Capabilities: []string{"key_storage", "attestation", "sealing"},
					KeyStore:     "tpm2",
				})
				break
			}
		}
	}

	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		detections = append(detections, Detection{
			Kind:         constants.EnclaveKindSecureEnclave,
			Capabilities: []string{"key_storage", "biometric_binding", "signing"},
			KeyStore:     "keychain",
		})
	} else if runtime.GOARCH == "arm64" || runtime.GOARCH == "arm" {
		detections = append(detections, Detection{
			Kind:         constants.EnclaveKindTrustZone,
			Capabilities: []string{"key_storage", "trusted_execution"},
			KeyStore:     "optee",
		})
	}

	return detections, nil
}

// simulatedScorer stands in for real attestation: mostly healthy, with random
// jitter wide enough to dip below the health floor now and then so repeated
// checks exercise the full status machinery, compromise transition included.
type simulatedScorer struct{}

func (simulatedScorer) Score(context.Context, *models.SecureEnclave) (float64, error) {
	// Uniform in [0.85, 1.0].
	n, err := rand.Int(rand.Reader, big.NewInt(150_000))
	if err != nil {
		return 0, err
	}
	return 0.85 + float64(n.Int64())/1_000_000, nil
}
