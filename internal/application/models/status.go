package models

import dErrors "certreg/pkg/domain-errors"

// Status is the application's lifecycle state.
type Status string

const (
	StatusNew            Status = "new"
	StatusPending        Status = "pending"
	StatusActionRequired Status = "action_required"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusRegistered     Status = "registered"
)

// ParseStatus validates a caller-supplied status string.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusNew, StatusPending, StatusActionRequired, StatusApproved, StatusRejected, StatusRegistered:
		return Status(raw), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown status: "+raw)
}

// transitions is the complete legal transition table. Any (from, to) pair
// absent here is an invalid transition; rejected and registered have no
// outgoing edges at all.
var transitions = map[Status][]Status{
	StatusNew:            {StatusPending},
	StatusPending:        {StatusApproved, StatusRejected, StatusActionRequired},
	StatusActionRequired: {StatusPending},
	StatusApproved:       {StatusRegistered},
}

// CanTransitionTo reports whether the table permits moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
// Terminal applications are immutable except for metadata reads.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusRegistered
}
