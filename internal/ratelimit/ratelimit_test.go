package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.9:1234"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	require.Equal(t, "203.0.113.7", clientIP(r))
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.3:5555"

	require.Equal(t, "198.51.100.3", clientIP(r))
}

func TestDisabledLimiterAlwaysAllows(t *testing.T) {
	l := New(nil, 0)
	result, err := l.Check(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	require.True(t, result.Allowed)
}
