package handler

import (
	"strings"

	"certreg/internal/application/models"
	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
)

// SubmitRequest is the HTTP request body for POST /applications.
type SubmitRequest struct {
	ApplicantID          string `json:"applicant_id,omitempty"`
	SpecializationID     string `json:"specialization_id,omitempty"`
	CertificationLevelID string `json:"certification_level_id,omitempty"`

	// Parsed values (populated by Validate)
	parsedApplicantID      id.ApplicantID
	parsedSpecializationID *id.SpecializationID
	parsedLevelID          *id.LevelID
}

// Validate validates and parses the request. ApplicantID is optional: the
// handler falls back to the authenticated actor.
func (r *SubmitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.ApplicantID = strings.TrimSpace(r.ApplicantID)
	if r.ApplicantID != "" {
		applicantID, err := id.ParseApplicantID(r.ApplicantID)
		if err != nil {
			return err
		}
		r.parsedApplicantID = applicantID
	}

	r.SpecializationID = strings.TrimSpace(r.SpecializationID)
	if r.SpecializationID != "" {
		specializationID, err := id.ParseSpecializationID(r.SpecializationID)
		if err != nil {
			return err
		}
		r.parsedSpecializationID = &specializationID
	}

	r.CertificationLevelID = strings.TrimSpace(r.CertificationLevelID)
	if r.CertificationLevelID != "" {
		levelID, err := id.ParseLevelID(r.CertificationLevelID)
		if err != nil {
			return err
		}
		r.parsedLevelID = &levelID
	}
	return nil
}

// ParsedApplicantID returns the validated applicant ID, zero when absent.
func (r *SubmitRequest) ParsedApplicantID() id.ApplicantID {
	return r.parsedApplicantID
}

// ParsedSpecializationID returns the validated specialization ID, nil when
// absent.
func (r *SubmitRequest) ParsedSpecializationID() *id.SpecializationID {
	return r.parsedSpecializationID
}

// ParsedLevelID returns the validated certification level ID, nil when
// absent.
func (r *SubmitRequest) ParsedLevelID() *id.LevelID {
	return r.parsedLevelID
}

// UpdateStatusRequest is the HTTP request body for
// POST /applications/{applicationID}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`

	parsedStatus models.Status
}

// Validate validates and parses the request. The reason requirement for
// rejections is enforced in the service, next to the transition itself.
func (r *UpdateStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	status, err := models.ParseStatus(r.Status)
	if err != nil {
		return err
	}
	r.parsedStatus = status
	r.Reason = strings.TrimSpace(r.Reason)
	return nil
}

// ParsedStatus returns the validated target status.
func (r *UpdateStatusRequest) ParsedStatus() models.Status {
	return r.parsedStatus
}
