package models

import (
	"time"

	"github.com/sentra-sec/sentra/pkg/constants"
)

// SecureEnclave describes one detected hardware security capability. The
// engine tracks availability and health only; it never talks to the hardware
// directly (attestation is a pluggable strategy).
type SecureEnclave struct {
	// ID is the unique registry identifier.
	ID string `json:"id"`

	// Kind is the capability family (tpm, sgx, trustzone, secure-enclave).
	Kind constants.EnclaveKind `json:"kind"`

	// Status is active until a health check drops below the floor.
	Status constants.EnclaveStatus `json:"status"`

	// Capabilities lists what the enclave can do (key storage, attestation, ...).
	Capabilities []string `json:"capabilities"`

	// KeyStore labels the key storage backend the enclave exposes.
	KeyStore string `json:"key_store"`

	// LastHealthCheck is when the health score was last recomputed.
	LastHealthCheck time.Time `json:"last_health_check"`

	// HealthScore is the current health in [0,1].
	HealthScore float64 `json:"health_score"`
}

// Clone returns a copy safe to hand to callers outside the registry's lock.
func (e *SecureEnclave) Clone() *SecureEnclave {
	clone := *e
	clone.Capabilities = append([]string(nil), e.Capabilities...)
	return &clone
}
