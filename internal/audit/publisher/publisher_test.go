package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"certreg/internal/audit"
	id "certreg/pkg/domain"
)

type captureSink struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (s *captureSink) Publish(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func testEntry(t *testing.T, action audit.Action) audit.Entry {
	t.Helper()
	appID := id.NewApplicationID()
	entry, err := audit.NewEntry(appID, id.ActorID(uuid.New()), action, audit.EntityApplication, appID.String(), "", time.Now())
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	return *entry
}

func TestEmitSync(t *testing.T) {
	sink := &captureSink{}
	p := New(sink, slog.Default())

	if err := p.Emit(context.Background(), testEntry(t, audit.ActionSubmit)); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("expected 1 published entry, got %d", sink.count())
	}

	sink.err = errors.New("broker down")
	if err := p.Emit(context.Background(), testEntry(t, audit.ActionVerify)); err == nil {
		t.Fatal("sync mode must surface sink errors")
	}
}

func TestEmitAsyncDrainsOnClose(t *testing.T) {
	sink := &captureSink{}
	p := New(sink, slog.Default(), WithAsyncBuffer(16))

	for i := 0; i < 5; i++ {
		if err := p.Emit(context.Background(), testEntry(t, audit.ActionVerify)); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	p.Close()

	if sink.count() != 5 {
		t.Fatalf("expected 5 entries after drain, got %d", sink.count())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p := New(&captureSink{}, slog.Default(), WithAsyncBuffer(1))
	p.Close()
	p.Close()
}
