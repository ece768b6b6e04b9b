// Package models defines the certification application aggregate and its
// status state machine.
package models

import (
	"time"

	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
)

// Application is the aggregate root for one applicant's certification
// request.
//
// Invariants:
//   - SubmissionDate is set once at creation and never changes
//   - ApprovalDate and RejectionDate are mutually exclusive, each set at
//     most once
//   - RejectionReason is non-empty iff Status is rejected
//   - ReviewerID is set no later than the first transition out of "new"
//   - RegistrarID is set by the approved→registered transition
//   - rejected and registered are terminal; no code path mutates a
//     terminal application
//   - applications are never physically deleted
type Application struct {
	ID                id.ApplicationID     `json:"id"`
	ApplicantID       id.ApplicantID       `json:"applicant_id"`
	SpecializationID  *id.SpecializationID `json:"specialization_id,omitempty"`
	LevelID           *id.LevelID          `json:"certification_level_id,omitempty"`
	Status            Status               `json:"status"`
	SubmissionDate    time.Time            `json:"submission_date"`
	ApprovalDate      *time.Time           `json:"approval_date,omitempty"`
	RejectionDate     *time.Time           `json:"rejection_date,omitempty"`
	RejectionReason   string               `json:"rejection_reason,omitempty"`
	ReviewerID        *id.ActorID          `json:"reviewer_id,omitempty"`
	RegistrarID       *id.ActorID          `json:"registrar_id,omitempty"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// NewApplication creates an application at submission time.
func NewApplication(applicationID id.ApplicationID, applicantID id.ApplicantID, specializationID *id.SpecializationID, levelID *id.LevelID, now time.Time) (*Application, error) {
	if applicationID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application id is required")
	}
	if applicantID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "applicant id is required")
	}
	return &Application{
		ID:               applicationID,
		ApplicantID:      applicantID,
		SpecializationID: specializationID,
		LevelID:          levelID,
		Status:           StatusNew,
		SubmissionDate:   now,
		UpdatedAt:        now,
	}, nil
}

// CanTransition checks whether moving to next is legal for this
// application right now. Terminal states report a dedicated message so
// callers can distinguish "locked forever" from "wrong order".
func (a *Application) CanTransition(next Status) error {
	if a.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"application is "+string(a.Status)+" and can no longer change status")
	}
	if !a.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"cannot transition from "+string(a.Status)+" to "+string(next))
	}
	return nil
}

// ApplyTransition mutates the application for an already-validated
// transition. Call CanTransition first; the store's Execute callback runs
// both under the row lock.
func (a *Application) ApplyTransition(next Status, actor id.ActorID, reason string, now time.Time) {
	switch next {
	case StatusPending:
		if a.ReviewerID == nil {
			reviewer := actor
			a.ReviewerID = &reviewer
		}
	case StatusApproved:
		approvedAt := now
		a.ApprovalDate = &approvedAt
	case StatusRejected:
		rejectedAt := now
		a.RejectionDate = &rejectedAt
		a.RejectionReason = reason
	case StatusRegistered:
		registrar := actor
		a.RegistrarID = &registrar
	}
	a.Status = next
	a.UpdatedAt = now
}

// VerificationProgress summarizes how much of the application's evidence a
// reviewer has verified. It informs the decision but never gates it.
type VerificationProgress struct {
	Verified int            `json:"verified"`
	Total    int            `json:"total"`
	Kinds    []KindProgress `json:"kinds,omitempty"`
}

// KindProgress is the per-evidence-kind tally.
type KindProgress struct {
	Kind     string `json:"kind"`
	Verified int    `json:"verified"`
	Total    int    `json:"total"`
}

// Percent returns the reviewed share in whole percent, 0 when the
// application has no evidence.
func (p VerificationProgress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Verified * 100 / p.Total
}
