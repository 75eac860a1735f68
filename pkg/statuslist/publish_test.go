package statuslist

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
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

func TestPublishThenVerifyAndExtractRoundTrip(t *testing.T) {
	kp, err := keymaterial.Generate()
	require.NoError(t, err)

	issuerDID := didweb.StatusIssuerDID("example.com")
	kid := issuerDID + "#key-1"
	doc := didweb.BuildDocument(issuerDID, []didweb.KeyRef{{Kid: kid, JWK: kp.PublicJWK}})

	priv, err := keymaterial.PrivateKeyFromPEM(kp.PrivateKeyPEM)
	require.NoError(t, err)

	l := List{
		ID:        uuid.New(),
		Purpose:   DefaultPurpose,
		Size:      DefaultSize,
		Bitstring: make([]byte, DefaultSize/8),
	}
	require.True(t, SetRevoked(l.Bitstring, 42))

	raw, vc, err := Publish(l, issuerDID, kid, priv, "https://example.com/v1/status/"+l.ID.String())
	require.NoError(t, err)
	require.Equal(t, issuerDID, vc["issuer"])

	bits, payload, err := VerifyAndExtract(context.Background(), stubResolver{doc: &doc}, raw)
	require.NoError(t, err)
	require.True(t, IsRevoked(bits, 42))
	require.False(t, IsRevoked(bits, 43))
	require.Equal(t, issuerDID, payload["iss"])
}

func TestVerifyAndExtractRejectsMalformedJWS(t *testing.T) {
	_, _, err := VerifyAndExtract(context.Background(), stubResolver{}, "not-a-jws")
	require.Error(t, err)
}

func TestVerifyAndExtractRejectsTamperedPayload(t *testing.T) {
	kp, err := keymaterial.Generate()
	require.NoError(t, err)

	issuerDID := didweb.StatusIssuerDID("example.com")
	kid := issuerDID + "#key-1"
	doc := didweb.BuildDocument(issuerDID, []didweb.KeyRef{{Kid: kid, JWK: kp.PublicJWK}})

	priv, err := keymaterial.PrivateKeyFromPEM(kp.PrivateKeyPEM)
	require.NoError(t, err)

	l := List{
		ID:        uuid.New(),
		Purpose:   DefaultPurpose,
		Size:      DefaultSize,
		Bitstring: make([]byte, DefaultSize/8),
	}

	raw, _, err := Publish(l, issuerDID, kid, priv, "https://example.com/v1/status/"+l.ID.String())
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x" + "." + parts[2]

	_, _, err = VerifyAndExtract(context.Background(), stubResolver{doc: &doc}, tampered)
	require.Error(t, err)
}
