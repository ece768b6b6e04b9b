package handler

import (
	"certreg/internal/application/models"
	"certreg/internal/audit"
)

// GetResponse is an application together with its verification tally.
type GetResponse struct {
	*models.Application
	Progress ProgressResponse `json:"progress"`
}

// ListResponse wraps a page of applications.
type ListResponse struct {
	Applications []*models.Application `json:"applications"`
	Count        int                   `json:"count"`
}

// HistoryResponse wraps an application's audit trail, most recent first.
type HistoryResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}

// ProgressResponse reports the verification tally with a derived percent.
type ProgressResponse struct {
	Verified int                   `json:"verified"`
	Total    int                   `json:"total"`
	Percent  int                   `json:"percent"`
	Kinds    []models.KindProgress `json:"kinds,omitempty"`
}

// FromProgress converts the domain tally into the response shape.
func FromProgress(p *models.VerificationProgress) ProgressResponse {
	return ProgressResponse{
		Verified: p.Verified,
		Total:    p.Total,
		Percent:  p.Percent(),
		Kinds:    p.Kinds,
	}
}
