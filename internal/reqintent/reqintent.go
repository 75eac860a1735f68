// Package reqintent implements Component F: the two-phase, idempotent
// RequirementIntent state machine — create, confirm, cancel — that
// orchestrates issuer/subject creation, per-requirement credential
// issuance, and end-to-end verification into a decision and proof bundle.
package reqintent

import (
	"time"

	"github.com/google/uuid"
)

// Status is one of the five RequirementIntent lifecycle states.
type Status string

const (
	StatusRequiresConfirmation Status = "requires_confirmation"
	StatusProcessing           Status = "processing"
	StatusSucceeded            Status = "succeeded"
	StatusFailed               Status = "failed"
	StatusCanceled             Status = "canceled"
)

// Terminal reports whether s is one of the three terminal states.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// ReturnMode controls which half of the confirm response is populated.
type ReturnMode string

const (
	ReturnDecision ReturnMode = "decision"
	ReturnBundle   ReturnMode = "bundle"
	ReturnBoth     ReturnMode = "both"
)

// Requirement is one embedded capability requirement.
type Requirement struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Claims map[string]any `json:"claims,omitempty"`
}

// RequirementSet is the "requirements" field's {items: [...]} envelope.
type RequirementSet struct {
	Items []Requirement `json:"items"`
}

// Options carries create-time options, including return_mode.
type Options struct {
	ReturnMode ReturnMode `json:"return_mode,omitempty"`
}

// RequirementResult is one entry of the proof bundle's credentials array.
type RequirementResult struct {
	RequirementID   string `json:"requirement_id"`
	CredentialID    uuid.UUID `json:"credential_id"`
	VCJWT           string `json:"vc_jwt"`
	StatusListURL   string `json:"status_list_url"`
	StatusListIndex int    `json:"status_list_index"`
	Verified        bool   `json:"verified"`
}

// DecisionRequirement is one entry of decision.requirements.
type DecisionRequirement struct {
	ID        string `json:"id"`
	Satisfied bool   `json:"satisfied"`
	Reason    string `json:"reason,omitempty"`
}

// Decision is the machine-readable pass/fail summary.
type Decision struct {
	Status       string                `json:"status"` // "satisfied" | "not_satisfied"
	Requirements []DecisionRequirement `json:"requirements"`
}

// ProofBundle carries the actual issued credentials for replay/audit.
type ProofBundle struct {
	IssuerDID   string               `json:"issuer_did"`
	SubjectDID  string               `json:"subject_did"`
	Credentials []RequirementResult `json:"credentials"`
}

// Intent is a single RequirementIntent row.
type Intent struct {
	ID         uuid.UUID
	TenantID   string
	Status     Status
	SubjectDID *string
	IssuerName string
	SubjectName string
	Requirements RequirementSet
	Options    Options
	Metadata   map[string]any

	IdempotencyKey *string
	RequestHash    *string

	ConfirmIdempotencyKey *string
	ConfirmRequestHash    *string

	Decision    *Decision
	ProofBundle *ProofBundle
	LastError   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
