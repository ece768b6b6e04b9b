// Package audit defines the append-only audit trail for the registry.
// Every state-changing action on an application or one of its evidence
// items produces exactly one entry; entries are never updated or deleted.
package audit

import (
	"time"

	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
)

// Action classifies what the actor did.
type Action string

const (
	ActionSubmit         Action = "submit"
	ActionBeginReview    Action = "begin_review"
	ActionVerify         Action = "verify"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionRequestChanges Action = "request_changes"
	ActionResumeReview   Action = "resume_review"
	ActionRegister       Action = "register"
	ActionEvidenceAdded  Action = "evidence_added"
)

// EntityType names the record the action touched.
type EntityType string

const (
	EntityApplication EntityType = "application"
	EntityEducation   EntityType = "education"
	EntityExperience  EntityType = "experience"
	EntityTraining    EntityType = "training"
	EntityDocument    EntityType = "document"
)

// Entry is one immutable audit record.
//
// Invariants:
//   - immutable once written; there is no update or delete path
//   - Seq is assigned by the store and strictly increases in insertion order
//   - CreatedAt is the request-scoped time of the action that produced it
type Entry struct {
	ID            id.EntryID       `json:"id"`
	Seq           int64            `json:"-"`
	ApplicationID id.ApplicationID `json:"application_id"`
	ActorID       id.ActorID       `json:"actor_id"`
	Action        Action           `json:"action"`
	EntityType    EntityType       `json:"entity_type"`
	EntityID      string           `json:"entity_id"`
	Notes         string           `json:"notes,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// NewEntry builds a validated entry. The store assigns Seq on append.
func NewEntry(applicationID id.ApplicationID, actorID id.ActorID, action Action, entityType EntityType, entityID string, notes string, now time.Time) (*Entry, error) {
	if applicationID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audit entry requires an application id")
	}
	if actorID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audit entry requires an actor id")
	}
	if action == "" || entityType == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audit entry requires action and entity type")
	}
	return &Entry{
		ID:            id.NewEntryID(),
		ApplicationID: applicationID,
		ActorID:       actorID,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Notes:         notes,
		CreatedAt:     now,
	}, nil
}
