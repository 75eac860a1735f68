package credential

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStatusListURLRoundTripsThroughParseListID(t *testing.T) {
	svc := &Service{domain: "pramana.example", scheme: "https"}
	listID := uuid.New()

	url := svc.StatusListURL(listID)
	require.Equal(t, "https://pramana.example/v1/status/"+listID.String(), url)

	parsed, err := parseListID(url)
	require.NoError(t, err)
	require.Equal(t, listID, parsed)
}

func TestParseListIDRejectsMalformedURL(t *testing.T) {
	_, err := parseListID("not-a-url")
	require.Error(t, err)

	_, err = parseListID("https://pramana.example/v1/status/not-a-uuid")
	require.Error(t, err)
}

func TestParseListIDTrimsTrailingSlash(t *testing.T) {
	listID := uuid.New()
	parsed, err := parseListID("https://pramana.example/v1/status/" + listID.String() + "/")
	require.NoError(t, err)
	require.Equal(t, listID, parsed)
}

func TestToCredentialResponseCopiesAllFields(t *testing.T) {
	now := time.Now().UTC()
	exp := now.Add(time.Hour)
	cred := Credential{
		ID:              uuid.New(),
		TenantID:        "tenant-a",
		IssuerAgentID:   uuid.New(),
		SubjectDID:      "did:web:example.com:subject",
		CredentialType:  "CapabilityCredential",
		Jti:             "jti-1",
		JWT:             "header.payload.sig",
		StatusListID:    uuid.New(),
		StatusListIndex: 7,
		IssuedAt:        now,
		ExpiresAt:       &exp,
	}

	resp := toCredentialResponse(cred)
	require.Equal(t, cred.ID, resp.ID)
	require.Equal(t, cred.IssuerAgentID, resp.IssuerAgentID)
	require.Equal(t, cred.SubjectDID, resp.SubjectDID)
	require.Equal(t, cred.CredentialType, resp.CredentialType)
	require.Equal(t, cred.JWT, resp.JWT)
	require.Equal(t, cred.StatusListID, resp.StatusListID)
	require.Equal(t, cred.StatusListIndex, resp.StatusListIndex)
	require.Equal(t, cred.IssuedAt, resp.IssuedAt)
	require.Equal(t, cred.ExpiresAt, resp.ExpiresAt)
}
