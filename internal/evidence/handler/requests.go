package handler

import (
	"strings"

	"certreg/internal/evidence/models"
	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
)

// VerifyRequest is the HTTP request body for POST /verification/verify-item.
type VerifyRequest struct {
	ItemType string `json:"item_type"`
	ItemID   string `json:"item_id"`
	Notes    string `json:"notes,omitempty"`

	// Parsed values (populated by Validate)
	parsedKind   models.Kind
	parsedItemID id.EvidenceID
}

// Validate validates and parses the request.
func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.ItemType = strings.TrimSpace(r.ItemType)
	if r.ItemType == "" {
		return dErrors.New(dErrors.CodeValidation, "item_type is required")
	}
	kind, err := models.ParseKind(r.ItemType)
	if err != nil {
		return err
	}
	r.parsedKind = kind

	r.ItemID = strings.TrimSpace(r.ItemID)
	if r.ItemID == "" {
		return dErrors.New(dErrors.CodeValidation, "item_id is required")
	}
	itemID, err := id.ParseEvidenceID(r.ItemID)
	if err != nil {
		return err
	}
	r.parsedItemID = itemID

	if len(r.Notes) > 2000 {
		return dErrors.New(dErrors.CodeValidation, "notes must be at most 2000 characters")
	}
	r.Notes = strings.TrimSpace(r.Notes)
	return nil
}

// ParsedKind returns the validated evidence kind.
func (r *VerifyRequest) ParsedKind() models.Kind {
	return r.parsedKind
}

// ParsedItemID returns the validated item ID.
func (r *VerifyRequest) ParsedItemID() id.EvidenceID {
	return r.parsedItemID
}

// AddRequest is the HTTP request body for
// POST /applications/{applicationID}/evidence. Exactly one payload must be
// present and it must match kind.
type AddRequest struct {
	Kind       string                    `json:"kind"`
	Education  *models.EducationDetails  `json:"education,omitempty"`
	Experience *models.ExperienceDetails `json:"experience,omitempty"`
	Training   *models.TrainingDetails   `json:"training,omitempty"`
	Document   *models.DocumentDetails   `json:"document,omitempty"`

	parsedKind models.Kind
}

// Validate validates the kind and the presence of its payload. Payload
// field rules live in the model's own validation.
func (r *AddRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Kind = strings.TrimSpace(r.Kind)
	if r.Kind == "" {
		return dErrors.New(dErrors.CodeValidation, "kind is required")
	}
	kind, err := models.ParseKind(r.Kind)
	if err != nil {
		return err
	}
	r.parsedKind = kind
	if r.Payload() == nil {
		return dErrors.New(dErrors.CodeValidation, "a "+r.Kind+" payload is required")
	}
	return nil
}

// ParsedKind returns the validated evidence kind.
func (r *AddRequest) ParsedKind() models.Kind {
	return r.parsedKind
}

// Payload returns the kind's payload pointer, nil when absent. The typed
// nil matters: the model constructor switches on the concrete type.
func (r *AddRequest) Payload() any {
	switch r.parsedKind {
	case models.KindEducation:
		if r.Education != nil {
			return r.Education
		}
	case models.KindExperience:
		if r.Experience != nil {
			return r.Experience
		}
	case models.KindTraining:
		if r.Training != nil {
			return r.Training
		}
	case models.KindDocument:
		if r.Document != nil {
			return r.Document
		}
	}
	return nil
}
