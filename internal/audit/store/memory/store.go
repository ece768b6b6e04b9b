// Package memory provides the in-memory audit store used by unit tests and
// demo mode. It intentionally favors clarity over performance.
package memory

import (
	"context"
	"sort"
	"sync"

	"certreg/internal/audit"
	id "certreg/pkg/domain"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	nextSeq int64
	entries map[id.ApplicationID][]audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.ApplicationID][]audit.Entry)}
}

// Append records the entry and assigns its insertion-order sequence.
// There is no update or delete counterpart.
func (s *InMemoryStore) Append(_ context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	entry.Seq = s.nextSeq
	s.entries[entry.ApplicationID] = append(s.entries[entry.ApplicationID], *entry)
	return nil
}

// History returns the application's entries latest-first, with the
// insertion sequence breaking CreatedAt ties.
func (s *InMemoryStore) History(_ context.Context, applicationID id.ApplicationID) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.entries[applicationID]
	out := append([]audit.Entry{}, stored...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Seq > out[j].Seq
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Clear drops all entries. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[id.ApplicationID][]audit.Entry)
	s.nextSeq = 0
}
