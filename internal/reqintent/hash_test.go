package reqintent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestHashStableUnderKeyOrder(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2}
	b := map[string]any{"a": 2, "b": 1}

	hashA, err := requestHash(a)
	require.NoError(t, err)
	hashB, err := requestHash(b)
	require.NoError(t, err)
	require.Equal(t, hashA, hashB)
}

func TestRequestHashDiffersOnValueChange(t *testing.T) {
	hashA, err := requestHash(map[string]any{"tenant_id": "demo", "body": 1})
	require.NoError(t, err)
	hashB, err := requestHash(map[string]any{"tenant_id": "demo", "body": 2})
	require.NoError(t, err)
	require.NotEqual(t, hashA, hashB)
}

func TestStatusTerminal(t *testing.T) {
	require.True(t, StatusSucceeded.Terminal())
	require.True(t, StatusFailed.Terminal())
	require.True(t, StatusCanceled.Terminal())
	require.False(t, StatusRequiresConfirmation.Terminal())
	require.False(t, StatusProcessing.Terminal())
}

func TestApplyReturnMode(t *testing.T) {
	d := Decision{Status: "satisfied"}
	b := ProofBundle{IssuerDID: "did:web:example.com"}

	decisionOnly := applyReturnMode(Intent{Options: Options{ReturnMode: ReturnDecision}, Decision: &d, ProofBundle: &b})
	require.NotNil(t, decisionOnly.Decision)
	require.Nil(t, decisionOnly.ProofBundle)

	bundleOnly := applyReturnMode(Intent{Options: Options{ReturnMode: ReturnBundle}, Decision: &d, ProofBundle: &b})
	require.Nil(t, bundleOnly.Decision)
	require.NotNil(t, bundleOnly.ProofBundle)

	both := applyReturnMode(Intent{Options: Options{ReturnMode: ReturnBoth}, Decision: &d, ProofBundle: &b})
	require.NotNil(t, both.Decision)
	require.NotNil(t, both.ProofBundle)
}
