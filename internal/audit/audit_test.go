package audit

import (
	"log/slog"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIPXForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")

	require.Equal(t, netip.MustParseAddr("203.0.113.50"), clientIP(r))
}

func TestClientIPXRealIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Real-IP", "198.51.100.23")

	require.Equal(t, netip.MustParseAddr("198.51.100.23"), clientIP(r))
}

func TestClientIPRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:12345"

	require.Equal(t, netip.MustParseAddr("192.0.2.1"), clientIP(r))
}

func TestClientIPPrecedence(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.50")
	r.Header.Set("X-Real-IP", "198.51.100.23")
	r.RemoteAddr = "192.0.2.1:12345"

	require.Equal(t, netip.MustParseAddr("203.0.113.50"), clientIP(r))
}

func TestClientIPInvalidXFFFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "not-an-ip")
	r.RemoteAddr = "192.0.2.1:12345"

	require.Equal(t, netip.MustParseAddr("192.0.2.1"), clientIP(r))
}

func TestLogDropsWhenFull(t *testing.T) {
	w := NewWriter(nil, slog.Default(), nil)
	// Don't start the background goroutine — nothing drains the channel.

	for i := 0; i < bufferSize; i++ {
		w.Log(Entry{EventType: "test", ResourceType: "test"})
	}
	w.Log(Entry{EventType: "dropped", ResourceType: "dropped"})

	require.Len(t, w.entries, bufferSize)
}

func TestLogFromRequestExtractsFields(t *testing.T) {
	w := NewWriter(nil, slog.Default(), nil)

	r := httptest.NewRequest("POST", "/v1/agents", nil)
	r.Header.Set("User-Agent", "test-agent/1.0")
	r.Header.Set("X-Real-IP", "198.51.100.23")

	id := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	w.LogFromRequest(r, "agent.create", "agent", id, nil)

	entry := <-w.entries

	require.Equal(t, "agent.create", entry.EventType)
	require.Equal(t, "agent", entry.ResourceType)
	require.NotNil(t, entry.IPAddress)
	require.Equal(t, netip.MustParseAddr("198.51.100.23"), *entry.IPAddress)
	require.NotNil(t, entry.UserAgent)
	require.Equal(t, "test-agent/1.0", *entry.UserAgent)
}

func TestNotifierDisabledWithoutWebhookURL(t *testing.T) {
	n := NewNotifier("", slog.Default())
	require.False(t, n.IsEnabled())
}
