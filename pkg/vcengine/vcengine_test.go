package vcengine

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"

	"github.com/pramana-labs/pramana/pkg/didweb"
	"github.com/pramana-labs/pramana/pkg/keymaterial"
)

type stubResolver struct {
	doc *didweb.Document
}

func (s stubResolver) Resolve(_ context.Context, _ string) (*didweb.Document, error) {
	return s.doc, nil
}

func issuerFixture(t *testing.T) (string, string, didweb.Document, ed25519.PrivateKey) {
	t.Helper()
	kp, err := keymaterial.Generate()
	require.NoError(t, err)

	issuerDID := didweb.StatusIssuerDID("example.com")
	kid := issuerDID + "#key-1"
	doc := didweb.BuildDocument(issuerDID, []didweb.KeyRef{{Kid: kid, JWK: kp.PublicJWK}})

	priv, err := keymaterial.PrivateKeyFromPEM(kp.PrivateKeyPEM)
	require.NoError(t, err)
	return issuerDID, kid, doc, priv
}

func TestIssueThenVerifyRoundTripNoStatus(t *testing.T) {
	issuerDID, kid, doc, priv := issuerFixture(t)

	res, err := Issue(IssueParams{
		IssuerDID:      issuerDID,
		IssuerKid:      kid,
		SubjectDID:     "did:web:example.com:agents:subject-1",
		CredentialType: "ExampleCredential",
	}, priv)
	require.NoError(t, err)
	require.NotEmpty(t, res.JWT)
	require.NotEmpty(t, res.Jti)

	verified, err := Verify(context.Background(), res.JWT, stubResolver{doc: &doc}, nil)
	require.NoError(t, err)
	require.Equal(t, issuerDID, verified.Claims.Iss)
	require.False(t, verified.Status.Present)
}

func TestIssueThenVerifyWithStatusChecksRevocation(t *testing.T) {
	issuerDID, kid, doc, priv := issuerFixture(t)

	res, err := Issue(IssueParams{
		IssuerDID:       issuerDID,
		IssuerKid:       kid,
		SubjectDID:      "did:web:example.com:agents:subject-1",
		CredentialType:  "ExampleCredential",
		StatusListURL:   "https://example.com/v1/status/list-1",
		StatusListIndex: 7,
	}, priv)
	require.NoError(t, err)

	var checkedURL string
	var checkedIndex int
	checker := func(_ context.Context, statusListCredential string, index int) (bool, error) {
		checkedURL = statusListCredential
		checkedIndex = index
		return true, nil
	}

	verified, err := Verify(context.Background(), res.JWT, stubResolver{doc: &doc}, checker)
	require.NoError(t, err)
	require.True(t, verified.Status.Present)
	require.True(t, verified.Status.Revoked)
	require.Equal(t, "https://example.com/v1/status/list-1", checkedURL)
	require.Equal(t, 7, checkedIndex)
}

func TestVerifyRejectsMalformedJWS(t *testing.T) {
	_, err := Verify(context.Background(), "not-a-jws", stubResolver{}, nil)
	require.Error(t, err)
}

func TestVerifyRejectsNonEdDSAAlgorithm(t *testing.T) {
	issuerDID, kid, doc, _ := issuerFixture(t)

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte("0123456789abcdef0123456789abcdef")},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", kid),
	)
	require.NoError(t, err)

	body := []byte(`{"iss":"` + issuerDID + `","sub":"did:web:example.com:agents:subject-1","jti":"forged","iat":1}`)
	jws, err := signer.Sign(body)
	require.NoError(t, err)
	raw, err := jws.CompactSerialize()
	require.NoError(t, err)

	_, err = Verify(context.Background(), raw, stubResolver{doc: &doc}, nil)
	require.Error(t, err)
}
