package enclave_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/internal/security/enclave"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/logger"
)

type fixedDetector struct {
	detections []enclave.Detection
	err        error
}

func (d fixedDetector) Detect(context.Context) ([]enclave.Detection, error) {
	return d.detections, d.err
}

type fixedScorer struct {
	score float64
	err   error
}

func (s fixedScorer) Score(context.Context, *models.SecureEnclave) (float64, error) {
	return s.score, s.err
}

func TestRegistry_RegistersDetectedCapabilities(t *testing.T) {
	registry := enclave.NewRegistry(logger.NewDefaultLogger(),
		enclave.WithDetector(fixedDetector{detections: []enclave.Detection{
			{Kind: constants.EnclaveKindTPM, Capabilities: []string{"key_storage", "attestation"}, KeyStore: "tpm2"},
			{Kind: constants.EnclaveKindTrustZone, Capabilities: []string{"key_storage"}, KeyStore: "optee"},
		}}))

	registered := registry.DetectAndRegister(context.Background())
	require.Len(t, registered, 2)
	for _, e := range registered {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, constants.EnclaveStatusActive, e.Status)
		assert.Equal(t, 1.0, e.HealthScore)
		assert.False(t, e.LastHealthCheck.IsZero())
	}
	assert.Len(t, registry.Enclaves(), 2)
	assert.Equal(t, 1.0, registry.AverageHealth())
}

func TestRegistry_FallsBackToSoftwareKeystore(t *testing.T) {
	for name, detector := range map[string]enclave.Detector{
		"nothing detected": fixedDetector{},
		"probe failure":    fixedDetector{err: errors.New("probe bus unavailable")},
	} {
		t.Run(name, func(t *testing.T) {
			registry := enclave.NewRegistry(logger.NewDefaultLogger(),
				enclave.WithDetector(detector))

			registered := registry.DetectAndRegister(context.Background())
			require.Len(t, registered, 1)
			assert.Equal(t, constants.EnclaveKindSoftware, registered[0].Kind)
			assert.Equal(t, constants.EnclaveStatusActive, registered[0].Status)
		})
	}
}

func TestRegistry_HealthBelowFloorMarksCompromised(t *testing.T) {
	registry := enclave.NewRegistry(logger.NewDefaultLogger(),
		enclave.WithDetector(fixedDetector{detections: []enclave.Detection{
			{Kind: constants.EnclaveKindTPM, KeyStore: "tpm2"},
		}}),
		enclave.WithHealthScorer(fixedScorer{score: 0.5}))

	registry.DetectAndRegister(context.Background())
	updated := registry.CheckHealth(context.Background())

	require.Len(t, updated, 1)
	assert.Equal(t, constants.EnclaveStatusCompromised, updated[0].Status)
	assert.Equal(t, 0.5, updated[0].HealthScore)
	assert.Equal(t, 0.5, registry.AverageHealth())
}

func TestRegistry_ProbeErrorZeroesHealth(t *testing.T) {
	registry := enclave.NewRegistry(logger.NewDefaultLogger(),
		enclave.WithDetector(fixedDetector{detections: []enclave.Detection{
			{Kind: constants.EnclaveKindSGX, KeyStore: "sgx"},
		}}),
		enclave.WithHealthScorer(fixedScorer{err: errors.New("attestation timeout")}))

	registry.DetectAndRegister(context.Background())
	updated := registry.CheckHealth(context.Background())

	require.Len(t, updated, 1)
	assert.Equal(t, constants.EnclaveStatusCompromised, updated[0].Status)
	assert.Zero(t, updated[0].HealthScore)
}

func TestRegistry_RecoveryRestoresActiveStatus(t *testing.T) {
	scorer := &fixedScorer{score: 0.5}
	registry := enclave.NewRegistry(logger.NewDefaultLogger(),
		enclave.WithDetector(fixedDetector{detections: []enclave.Detection{
			{Kind: constants.EnclaveKindTPM, KeyStore: "tpm2"},
		}}),
		enclave.WithHealthScorer(scorer))

	registry.DetectAndRegister(context.Background())
	registry.CheckHealth(context.Background())
	require.Equal(t, constants.EnclaveStatusCompromised, registry.Enclaves()[0].Status)

	scorer.score = 0.98
	updated := registry.CheckHealth(context.Background())
	assert.Equal(t, constants.EnclaveStatusActive, updated[0].Status)
	assert.Equal(t, 0.98, updated[0].HealthScore)
}

func TestRegistry_DefaultScorerStaysInBounds(t *testing.T) {
	registry := enclave.NewRegistry(logger.NewDefaultLogger(),
		enclave.WithDetector(fixedDetector{detections: []enclave.Detection{
			{Kind: constants.EnclaveKindTPM, KeyStore: "tpm2"},
		}}))

	registry.DetectAndRegister(context.Background())
	for i := 0; i < 20; i++ {
		updated := registry.CheckHealth(context.Background())
		require.Len(t, updated, 1)
		assert.GreaterOrEqual(t, updated[0].HealthScore, 0.85)
		assert.LessOrEqual(t, updated[0].HealthScore, 1.0)

		// Status always tracks the score against the floor.
		want := constants.EnclaveStatusActive
		if updated[0].HealthScore < constants.EnclaveHealthFloor {
			want = constants.EnclaveStatusCompromised
		}
		assert.Equal(t, want, updated[0].Status)
	}
}

func TestRegistry_AverageHealthEmptyRegistry(t *testing.T) {
	registry := enclave.NewRegistry(logger.NewDefaultLogger())
	assert.Equal(t, 1.0, registry.AverageHealth())
}

func TestRegistry_ResetClearsRecords(t *testing.T) {
	registry := enclave.NewRegistry(logger.NewDefaultLogger(),
		enclave.WithDetector(fixedDetector{}))
	registry.DetectAndRegister(context.Background())
	require.NotEmpty(t, registry.Enclaves())

	registry.Reset()
	assert.Empty(t, registry.Enclaves())
	assert.Equal(t, 1.0, registry.AverageHealth())
}
