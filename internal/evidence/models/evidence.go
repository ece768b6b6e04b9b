// Package models defines the evidence item aggregate.
//
// An evidence item is a tagged union: a shared verification core plus
// exactly one kind-specific payload. The union replaces the loosely typed
// "one shape for everything" record the registry previously used, so the
// verification service can operate generically while each kind keeps its
// own required fields.
package models

import (
	"time"

	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
)

// Kind discriminates the evidence payload.
type Kind string

const (
	KindEducation  Kind = "education"
	KindExperience Kind = "experience"
	KindTraining   Kind = "training"
	KindDocument   Kind = "document"
)

// ParseKind validates a caller-supplied kind string.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindEducation, KindExperience, KindTraining, KindDocument:
		return Kind(raw), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "item type must be one of education, experience, training, document")
}

// EducationDetails captures a degree or diploma claim.
type EducationDetails struct {
	Institution  string `json:"institution"`
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"field_of_study,omitempty"`
	StartYear    int    `json:"start_year,omitempty"`
	EndYear      int    `json:"end_year,omitempty"`
}

// ExperienceDetails captures a professional experience claim.
type ExperienceDetails struct {
	Employer    string     `json:"employer"`
	Position    string     `json:"position"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Description string     `json:"description,omitempty"`
}

// TrainingDetails captures a completed training course.
type TrainingDetails struct {
	Provider          string    `json:"provider"`
	CourseName        string    `json:"course_name"`
	Hours             int       `json:"hours,omitempty"`
	CompletedOn       time.Time `json:"completed_on"`
	CertificateNumber string    `json:"certificate_number,omitempty"`
}

// DocumentDetails captures an uploaded supporting document. Storage and
// rendering of the bytes live elsewhere; the registry only tracks metadata.
type DocumentDetails struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
}

// Item is one piece of supporting material attached to an application.
//
// Invariants:
//   - exactly one payload pointer is set and it matches Kind
//   - VerifiedBy and VerificationDate are both nil or both set
//   - once verified, an item is never silently reset to unverified; there
//     is deliberately no un-verify path
type Item struct {
	ID            id.EvidenceID    `json:"id"`
	ApplicationID id.ApplicationID `json:"application_id"`
	Kind          Kind             `json:"kind"`

	IsVerified        bool        `json:"is_verified"`
	VerifiedBy        *id.ActorID `json:"verified_by,omitempty"`
	VerificationDate  *time.Time  `json:"verification_date,omitempty"`
	VerificationNotes string      `json:"verification_notes,omitempty"`

	Education  *EducationDetails  `json:"education,omitempty"`
	Experience *ExperienceDetails `json:"experience,omitempty"`
	Training   *TrainingDetails   `json:"training,omitempty"`
	Document   *DocumentDetails   `json:"document,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewItem builds a validated item from exactly one payload.
func NewItem(itemID id.EvidenceID, applicationID id.ApplicationID, kind Kind, payload any, now time.Time) (*Item, error) {
	item := &Item{
		ID:            itemID,
		ApplicationID: applicationID,
		Kind:          kind,
		CreatedAt:     now,
	}
	switch p := payload.(type) {
	case *EducationDetails:
		item.Education = p
	case *ExperienceDetails:
		item.Experience = p
	case *TrainingDetails:
		item.Training = p
	case *DocumentDetails:
		item.Document = p
	default:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unsupported evidence payload")
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// Validate enforces the union and pairing invariants.
func (i *Item) Validate() error {
	if i.ApplicationID.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "evidence item requires an application id")
	}
	var set int
	if i.Education != nil {
		set++
		if i.Kind != KindEducation {
			return dErrors.New(dErrors.CodeInvariantViolation, "education payload requires kind education")
		}
		if i.Education.Institution == "" || i.Education.Degree == "" {
			return dErrors.New(dErrors.CodeValidation, "education evidence requires institution and degree")
		}
	}
	if i.Experience != nil {
		set++
		if i.Kind != KindExperience {
			return dErrors.New(dErrors.CodeInvariantViolation, "experience payload requires kind experience")
		}
		if i.Experience.Employer == "" || i.Experience.Position == "" {
			return dErrors.New(dErrors.CodeValidation, "experience evidence requires employer and position")
		}
	}
	if i.Training != nil {
		set++
		if i.Kind != KindTraining {
			return dErrors.New(dErrors.CodeInvariantViolation, "training payload requires kind training")
		}
		if i.Training.Provider == "" || i.Training.CourseName == "" {
			return dErrors.New(dErrors.CodeValidation, "training evidence requires provider and course name")
		}
	}
	if i.Document != nil {
		set++
		if i.Kind != KindDocument {
			return dErrors.New(dErrors.CodeInvariantViolation, "document payload requires kind document")
		}
		if i.Document.FileName == "" {
			return dErrors.New(dErrors.CodeValidation, "document evidence requires a file name")
		}
	}
	if set != 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "evidence item requires exactly one payload")
	}
	if (i.VerifiedBy == nil) != (i.VerificationDate == nil) {
		return dErrors.New(dErrors.CodeInvariantViolation, "verifiedBy and verificationDate must be set together")
	}
	return nil
}

// ApplyVerification marks the item verified, overwriting any prior
// verification stamp. Re-verifying refreshes actor, timestamp, and notes;
// it never flips the item back to unverified, so the operation is
// idempotent by overwrite.
func (i *Item) ApplyVerification(actor id.ActorID, now time.Time, notes string) {
	i.IsVerified = true
	i.VerifiedBy = &actor
	i.VerificationDate = &now
	i.VerificationNotes = notes
}

// KindCount is the per-kind verification tally used for progress reporting.
type KindCount struct {
	Kind     Kind `json:"kind"`
	Verified int  `json:"verified"`
	Total    int  `json:"total"`
}
