package didweb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pramana-labs/pramana/pkg/keymaterial"
)

func TestAgentDID(t *testing.T) {
	did := AgentDID("localhost%3A8000", "abc-123")
	require.Equal(t, "did:web:localhost%3A8000:agents:abc-123", did)
}

func TestResolutionURLWellKnown(t *testing.T) {
	url, err := ResolutionURL("https", "did:web:example.com")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/.well-known/did.json", url)
}

func TestResolutionURLWithPath(t *testing.T) {
	url, err := ResolutionURL("https", "did:web:example.com:agents:abc-123")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/agents/abc-123/did.json", url)
}

func TestResolutionURLDecodesPercentEncodedPort(t *testing.T) {
	url, err := ResolutionURL("http", "did:web:localhost%3A8000:agents:abc-123")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/agents/abc-123/did.json", url)
}

func TestDomainRejectsNonDidWeb(t *testing.T) {
	_, err := Domain("did:key:z6Mk...")
	require.Error(t, err)
}

func TestBuildDocumentReferencesAllKeys(t *testing.T) {
	did := "did:web:example.com:agents:abc"
	doc := BuildDocument(did, []KeyRef{
		{Kid: did + "#key-1", JWK: keymaterial.JWK{Kty: "OKP", Crv: "Ed25519", X: "abc"}},
	})
	require.Equal(t, did, doc.ID)
	require.Len(t, doc.VerificationMethod, 1)
	require.Equal(t, []string{did + "#key-1"}, doc.Authentication)
	require.Equal(t, []string{did + "#key-1"}, doc.AssertionMethod)
}
