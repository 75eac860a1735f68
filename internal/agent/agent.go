// Package agent implements Component B (key material) and the Agent/Key
// halves of Component C (DID service) from the specification: agent
// creation, key generation and rotation, and DID document assembly.
package agent

import (
	"time"

	"github.com/google/uuid"

	"github.com/pramana-labs/pramana/pkg/keymaterial"
)

// Agent is a named identity anchored at a did:web DID.
type Agent struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	DID       string    `json:"did"`
	TenantID  string    `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Key is one Ed25519 verification method belonging to an Agent.
// PrivateKeySealed is never serialized to JSON or logged.
type Key struct {
	ID                uuid.UUID       `json:"id"`
	AgentID           uuid.UUID       `json:"agent_id"`
	TenantID          string          `json:"tenant_id"`
	Kid               string          `json:"kid"`
	PublicJWK         keymaterial.JWK `json:"public_jwk"`
	PrivateKeySealed  []byte          `json:"-"`
	CreatedAt         time.Time       `json:"created_at"`
	RotatedAt         *time.Time      `json:"rotated_at,omitempty"`
	Active            bool            `json:"active"`
}

// StatusIssuerAgentName is the reserved name of the process-wide status-list
// issuer agent; its DID has no path segments (did:web:<domain>).
const StatusIssuerAgentName = "__status_list_issuer__"
