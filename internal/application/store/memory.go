// Package store provides application persistence. The in-memory variant
// backs unit tests and demo mode; PostgreSQL is the production store.
package store

import (
	"context"
	"sort"
	"sync"

	"certreg/internal/application/models"
	id "certreg/pkg/domain"
	"certreg/pkg/platform/sentinel"
)

// Filter narrows List results.
type Filter struct {
	Status      *models.Status
	ApplicantID *id.ApplicantID
}

// InMemory keeps applications in process. Execute serializes
// validate-then-mutate under the store lock, mirroring the row lock the
// PostgreSQL store takes with FOR UPDATE.
type InMemory struct {
	mu           sync.RWMutex
	applications map[id.ApplicationID]models.Application
}

func NewInMemory() *InMemory {
	return &InMemory{applications: make(map[id.ApplicationID]models.Application)}
}

func (s *InMemory) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.applications[app.ID]; exists {
		return sentinel.ErrConflict
	}
	s.applications[app.ID] = *app
	return nil
}

func (s *InMemory) FindByID(_ context.Context, applicationID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.applications[applicationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := app
	return &copied, nil
}

func (s *InMemory) List(_ context.Context, filter Filter) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Application
	for _, app := range s.applications {
		if filter.Status != nil && app.Status != *filter.Status {
			continue
		}
		if filter.ApplicantID != nil && app.ApplicantID != *filter.ApplicantID {
			continue
		}
		copied := app
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SubmissionDate.Equal(out[j].SubmissionDate) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].SubmissionDate.After(out[j].SubmissionDate)
	})
	return out, nil
}

// Execute runs validate then apply while holding the store lock, so two
// concurrent deciders cannot both pass validation against the same stale
// status; the loser fails inside validate.
func (s *InMemory) Execute(_ context.Context, applicationID id.ApplicationID, validate func(*models.Application) error, apply func(*models.Application)) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.applications[applicationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(&app); err != nil {
		return nil, err
	}
	apply(&app)
	s.applications[applicationID] = app
	copied := app
	return &copied, nil
}
