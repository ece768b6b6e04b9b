// Package domain defines UUID-backed identifier types for the registry.
//
// Each entity gets its own named type so the compiler rejects accidental
// cross-assignment (passing an ActorID where an ApplicationID is expected).
// Parse functions enforce the invariant that identifiers are valid,
// non-empty, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "certreg/pkg/domain-errors"
)

type (
	// ApplicationID identifies a certification application.
	ApplicationID uuid.UUID
	// ApplicantID identifies the person applying for certification.
	ApplicantID uuid.UUID
	// ActorID identifies an authenticated actor (reviewer, registrar, admin).
	ActorID uuid.UUID
	// EvidenceID identifies a single evidence item.
	EvidenceID uuid.UUID
	// SpecializationID references a certification specialization.
	SpecializationID uuid.UUID
	// LevelID references a certification level.
	LevelID uuid.UUID
	// EntryID identifies an audit trail entry.
	EntryID uuid.UUID
)

func (id ApplicationID) String() string    { return uuid.UUID(id).String() }
func (id ApplicantID) String() string      { return uuid.UUID(id).String() }
func (id ActorID) String() string          { return uuid.UUID(id).String() }
func (id EvidenceID) String() string       { return uuid.UUID(id).String() }
func (id SpecializationID) String() string { return uuid.UUID(id).String() }
func (id LevelID) String() string          { return uuid.UUID(id).String() }
func (id EntryID) String() string          { return uuid.UUID(id).String() }

func (id ApplicationID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id ApplicantID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsZero() bool       { return uuid.UUID(id) == uuid.Nil }
func (id EvidenceID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsZero() bool       { return uuid.UUID(id) == uuid.Nil }

// The named types hide uuid.UUID's method set, so text marshaling is
// restated explicitly; without it encoding/json renders each ID as a
// 16-byte array instead of the canonical string.

func (id ApplicationID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id ApplicantID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id ActorID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id EvidenceID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id SpecializationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id LevelID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id EntryID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }

func (id *ApplicationID) UnmarshalText(text []byte) error    { return (*uuid.UUID)(id).UnmarshalText(text) }
func (id *ApplicantID) UnmarshalText(text []byte) error      { return (*uuid.UUID)(id).UnmarshalText(text) }
func (id *ActorID) UnmarshalText(text []byte) error          { return (*uuid.UUID)(id).UnmarshalText(text) }
func (id *EvidenceID) UnmarshalText(text []byte) error       { return (*uuid.UUID)(id).UnmarshalText(text) }
func (id *SpecializationID) UnmarshalText(text []byte) error { return (*uuid.UUID)(id).UnmarshalText(text) }
func (id *LevelID) UnmarshalText(text []byte) error          { return (*uuid.UUID)(id).UnmarshalText(text) }
func (id *EntryID) UnmarshalText(text []byte) error          { return (*uuid.UUID)(id).UnmarshalText(text) }

// NewApplicationID returns a fresh random ApplicationID.
func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }

// NewEvidenceID returns a fresh random EvidenceID.
func NewEvidenceID() EvidenceID { return EvidenceID(uuid.New()) }

// NewEntryID returns a fresh random EntryID.
func NewEntryID() EntryID { return EntryID(uuid.New()) }

func parseUUID(raw, what string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, what+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, what+" must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, what+" must not be the nil UUID")
	}
	return parsed, nil
}

// ParseApplicationID parses and validates an application identifier.
func ParseApplicationID(raw string) (ApplicationID, error) {
	parsed, err := parseUUID(raw, "application id")
	return ApplicationID(parsed), err
}

// ParseApplicantID parses and validates an applicant identifier.
func ParseApplicantID(raw string) (ApplicantID, error) {
	parsed, err := parseUUID(raw, "applicant id")
	return ApplicantID(parsed), err
}

// ParseActorID parses and validates an actor identifier.
func ParseActorID(raw string) (ActorID, error) {
	parsed, err := parseUUID(raw, "actor id")
	return ActorID(parsed), err
}

// ParseEvidenceID parses and validates an evidence item identifier.
func ParseEvidenceID(raw string) (EvidenceID, error) {
	parsed, err := parseUUID(raw, "evidence id")
	return EvidenceID(parsed), err
}

// ParseSpecializationID parses and validates a specialization identifier.
func ParseSpecializationID(raw string) (SpecializationID, error) {
	parsed, err := parseUUID(raw, "specialization id")
	return SpecializationID(parsed), err
}

// ParseLevelID parses and validates a certification level identifier.
func ParseLevelID(raw string) (LevelID, error) {
	parsed, err := parseUUID(raw, "certification level id")
	return LevelID(parsed), err
}
