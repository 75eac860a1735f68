// Package credential implements §4.E's Issue/Verify surface as an HTTP
// domain: Credential persistence, transactional issuance, revocation, and
// the public verify/status endpoints.
package credential

import (
	"time"

	"github.com/google/uuid"
)

// Credential is a single issued verifiable credential.
type Credential struct {
	ID              uuid.UUID
	TenantID        string
	IssuerAgentID   uuid.UUID
	SubjectDID      string
	CredentialType  string
	Jti             string
	JWT             string
	StatusListID    uuid.UUID
	StatusListIndex int
	IssuedAt        time.Time
	ExpiresAt       *time.Time
}
