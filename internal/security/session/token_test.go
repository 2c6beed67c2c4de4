package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentra-sec/sentra/internal/security/session"
	"github.com/sentra-sec/sentra/pkg/logger"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	m := session.NewManager(logger.NewDefaultLogger())
	s, err := m.CreateSession("alice", nil)
	require.NoError(t, err)

	issuer, err := session.NewTokenIssuer("test-signing-key", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue(s)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, s.ID, claims.Subject)
	assert.Equal(t, "alice", claims.PrincipalID)
}

func TestTokenIssuer_RejectsForeignSignature(t *testing.T) {
	m := session.NewManager(logger.NewDefaultLogger())
	s, err := m.CreateSession("alice", nil)
	require.NoError(t, err)

	issuer, err := session.NewTokenIssuer("key-one", time.Hour)
	require.NoError(t, err)
	other, err := session.NewTokenIssuer("key-two", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue(s)
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestTokenIssuer_TokenExpiryCappedBySession(t *testing.T) {
	m := session.NewManager(logger.NewDefaultLogger())
	s, err := m.CreateSession("alice", nil)
	require.NoError(t, err)

	// Issuer TTL far beyond the session lifetime: claims expire with the session.
	issuer, err := session.NewTokenIssuer("test-signing-key", 100*time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue(s)
	require.NoError(t, err)
	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.True(t, claims.ExpiresAt.Time.Equal(s.ExpiresAt) || claims.ExpiresAt.Time.Before(s.ExpiresAt))
}

func TestTokenIssuer_RequiresKey(t *testing.T) {
	_, err := session.NewTokenIssuer("", time.Hour)
	assert.Error(t, err)
}
