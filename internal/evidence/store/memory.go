// Package store provides evidence item persistence. The in-memory variant
// backs unit tests and demo mode; PostgreSQL is the production store.
package store

import (
	"context"
	"sort"
	"sync"

	"certreg/internal/evidence/models"
	id "certreg/pkg/domain"
	"certreg/pkg/platform/sentinel"
)

// InMemory keeps evidence items in process. It intentionally favors clarity
// over performance.
type InMemory struct {
	mu    sync.RWMutex
	items map[id.EvidenceID]models.Item
}

func NewInMemory() *InMemory {
	return &InMemory{items: make(map[id.EvidenceID]models.Item)}
}

func (s *InMemory) Create(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; exists {
		return sentinel.ErrConflict
	}
	s.items[item.ID] = *item
	return nil
}

func (s *InMemory) FindByID(_ context.Context, itemID id.EvidenceID) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := item
	return &copied, nil
}

// Update persists verification-relevant fields. Evidence content itself is
// edited through the applicant submission flow, not here.
func (s *InMemory) Update(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.items[item.ID] = *item
	return nil
}

// ListByApplication returns the application's items newest first, optionally
// filtered by kind. The caller is responsible for checking the application
// exists; an application with no items yields an empty slice.
func (s *InMemory) ListByApplication(_ context.Context, applicationID id.ApplicationID, kind *models.Kind) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Item
	for _, item := range s.items {
		if item.ApplicationID != applicationID {
			continue
		}
		if kind != nil && item.Kind != *kind {
			continue
		}
		copied := item
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CountByApplication tallies verified vs total items per kind.
func (s *InMemory) CountByApplication(_ context.Context, applicationID id.ApplicationID) ([]models.KindCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Kind]*models.KindCount)
	for _, item := range s.items {
		if item.ApplicationID != applicationID {
			continue
		}
		c, ok := counts[item.Kind]
		if !ok {
			c = &models.KindCount{Kind: item.Kind}
			counts[item.Kind] = c
		}
		c.Total++
		if item.IsVerified {
			c.Verified++
		}
	}
	out := make([]models.KindCount, 0, len(counts))
	for _, kind := range []models.Kind{models.KindEducation, models.KindExperience, models.KindTraining, models.KindDocument} {
		if c, ok := counts[kind]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}
