package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"

	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
)

func TestNewEntry(t *testing.T) {
	appID := id.NewApplicationID()
	actor := id.ActorID(uuid.New())
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	t.Run("valid entry", func(t *testing.T) {
		entry, err := NewEntry(appID, actor, ActionVerify, EntityEducation, "item-1", "matches transcript", now)
		if err != nil {
			t.Fatalf("NewEntry: %v", err)
		}
		if entry.ID.IsZero() {
			t.Error("entry must get an ID")
		}
		if !entry.CreatedAt.Equal(now) {
			t.Error("createdAt must be the supplied time")
		}
		if entry.Seq != 0 {
			t.Error("seq is store-assigned and must start zero")
		}
	})

	t.Run("requires application and actor", func(t *testing.T) {
		if _, err := NewEntry(id.ApplicationID{}, actor, ActionVerify, EntityEducation, "x", "", now); !dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			t.Errorf("zero application: got %v", err)
		}
		if _, err := NewEntry(appID, id.ActorID{}, ActionVerify, EntityEducation, "x", "", now); !dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			t.Errorf("zero actor: got %v", err)
		}
	})

	t.Run("requires action and entity type", func(t *testing.T) {
		if _, err := NewEntry(appID, actor, "", EntityEducation, "x", "", now); err == nil {
			t.Error("empty action must fail")
		}
		if _, err := NewEntry(appID, actor, ActionVerify, "", "x", "", now); err == nil {
			t.Error("empty entity type must fail")
		}
	})
}
