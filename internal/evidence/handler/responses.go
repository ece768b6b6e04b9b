package handler

import "certreg/internal/evidence/models"

// ListResponse wraps an application's evidence items, newest first.
type ListResponse struct {
	Items []*models.Item `json:"items"`
	Count int            `json:"count"`
}
