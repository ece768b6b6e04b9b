// Package publisher exports committed audit entries to external consumers
// (SIEM, compliance archive). Export is best effort: the transactional
// audit_entries table is the source of truth and a failed export never
// fails the enclosing request.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	"certreg/internal/audit"
)

// Sink receives exported audit entries.
type Sink interface {
	Publish(ctx context.Context, entry audit.Entry) error
}

// Publisher fans audit entries out to a sink, optionally through a buffered
// worker so request paths never block on the export backend.
type Publisher struct {
	sink   Sink
	logger *slog.Logger

	buffer chan audit.Entry
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous publishing with the given buffer
// size. When the buffer is full the entry is dropped (and counted in logs)
// rather than blocking the request.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.buffer = make(chan audit.Entry, size)
	}
}

func New(sink Sink, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit hands the entry to the sink. In async mode a full buffer drops the
// entry; the durable copy already lives in the audit store.
func (p *Publisher) Emit(ctx context.Context, entry audit.Entry) error {
	if p.buffer == nil {
		return p.sink.Publish(ctx, entry)
	}
	select {
	case p.buffer <- entry:
		return nil
	default:
		p.logger.Warn("audit export buffer full, dropping entry",
			"application_id", entry.ApplicationID.String(),
			"action", string(entry.Action),
		)
		return nil
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for entry := range p.buffer {
		if err := p.sink.Publish(context.Background(), entry); err != nil {
			p.logger.Error("audit export failed",
				"error", err,
				"application_id", entry.ApplicationID.String(),
				"action", string(entry.Action),
			)
		}
	}
}

// Close drains the buffer and waits for in-flight publishes.
func (p *Publisher) Close() {
	if p.buffer == nil {
		return
	}
	p.once.Do(func() {
		close(p.buffer)
	})
	p.wg.Wait()
}
