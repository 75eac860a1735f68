package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHS256IssueVerifyRoundTrip(t *testing.T) {
	issuer, err := NewHS256Issuer("0123456789abcdef0123456789abcdef", "pramana")
	require.NoError(t, err)

	token, err := issuer.Issue("agent-123", []string{"credentials:issue"}, "acme", time.Hour)
	require.NoError(t, err)

	id, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "agent-123", id.Subject)
	require.Equal(t, "acme", id.TenantID)
	require.True(t, id.HasScope("credentials:issue"))
	require.Equal(t, MethodHS256, id.Method)
}

func TestHS256VerifyRejectsExpiredToken(t *testing.T) {
	issuer, err := NewHS256Issuer("0123456789abcdef0123456789abcdef", "pramana")
	require.NoError(t, err)

	token, err := issuer.Issue("agent-123", nil, "acme", -time.Minute)
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.Error(t, err)
}

func TestNewHS256IssuerRejectsShortSecret(t *testing.T) {
	_, err := NewHS256Issuer("short", "pramana")
	require.Error(t, err)
}
