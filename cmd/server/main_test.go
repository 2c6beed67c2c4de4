package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/logger"
)

func TestLogDetectedEnclaves(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewJSONLogger(constants.LogLevelInfo, &buf)

	logDetectedEnclaves(context.Background(), log, []*models.SecureEnclave{
		{ID: "enc-1", Kind: constants.EnclaveKindTPM},
		{ID: "enc-2", Kind: constants.EnclaveKindSoftware},
	})

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"enclave_id":"enc-1"`)
	assert.Contains(t, out, `"kind":"tpm"`)
	assert.Contains(t, out, `"kind":"software-keystore"`)
}
