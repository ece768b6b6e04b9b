// Package service implements the per-item verification protocol and
// evidence intake.
package service

import (
	"context"
	"errors"
	"log/slog"

	"certreg/internal/audit"
	"certreg/internal/evidence/models"
	"certreg/internal/platform/metrics"
	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/platform/sentinel"
	"certreg/pkg/platform/tx"
	"certreg/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, item *models.Item) error
	FindByID(ctx context.Context, itemID id.EvidenceID) (*models.Item, error)
	Update(ctx context.Context, item *models.Item) error
	ListByApplication(ctx context.Context, applicationID id.ApplicationID, kind *models.Kind) ([]*models.Item, error)
}

type AuditStore interface {
	Append(ctx context.Context, entry *audit.Entry) error
}

// ApplicationWorkflow is the evidence service's view of the application
// lifecycle. The write methods run inside this service's transaction so
// evidence mutation, audit entry and any status advance commit together.
type ApplicationWorkflow interface {
	EnsureExists(ctx context.Context, applicationID id.ApplicationID) error
	EnsureOpen(ctx context.Context, applicationID id.ApplicationID) error
	NoteReviewActivity(ctx context.Context, applicationID id.ApplicationID, actor id.ActorID) error
	NoteEvidenceSupplied(ctx context.Context, applicationID id.ApplicationID, actor id.ActorID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// Service verifies and stores evidence items.
type Service struct {
	items          Store
	auditTrail     AuditStore
	applications   ApplicationWorkflow
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(items Store, auditTrail AuditStore, applications ApplicationWorkflow, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		items:        items,
		auditTrail:   auditTrail,
		applications: applications,
		tx:           runner,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify marks one evidence item as verified by the authenticated
// reviewer. Re-verifying an already verified item overwrites the reviewer,
// date and notes rather than failing; every call appends its own audit
// entry.
//
// The audit append, the item update and any new→pending advance share one
// transaction: if any step fails, the item stays untouched.
func (s *Service) Verify(ctx context.Context, kind models.Kind, itemID id.EvidenceID, notes string) (*models.Item, error) {
	actor := requestcontext.ActorID(ctx)
	if actor.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !requestcontext.ActorRole(ctx).CanReview() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only a reviewer may verify evidence")
	}
	now := requestcontext.Now(ctx)

	item, err := s.findByKind(ctx, kind, itemID)
	if err != nil {
		return nil, err
	}

	entry, err := audit.NewEntry(item.ApplicationID, actor, audit.ActionVerify,
		entityTypeFor(kind), itemID.String(), notes, now)
	if err != nil {
		return nil, err
	}

	txErr := s.tx.RunInTx(tx.WithLockKey(ctx, item.ApplicationID.String()), func(txCtx context.Context) error {
		if err := s.applications.EnsureOpen(txCtx, item.ApplicationID); err != nil {
			return err
		}
		if err := s.auditTrail.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorage, "failed to record verification")
		}
		item.ApplyVerification(actor, now, notes)
		if err := s.items.Update(txCtx, item); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update evidence item")
		}
		return s.applications.NoteReviewActivity(txCtx, item.ApplicationID, actor)
	})
	if txErr != nil {
		return nil, txErr
	}

	s.publishEntry(ctx, entry)
	if s.metrics != nil {
		s.metrics.IncrementVerified(string(kind))
	}
	s.logger.InfoContext(ctx, "evidence verified",
		"application_id", item.ApplicationID,
		"item_id", itemID,
		"kind", kind,
		"actor_id", actor)
	return item, nil
}

// Add attaches a new evidence item to an application. An applicant adding
// evidence to an action-required application resumes its review.
func (s *Service) Add(ctx context.Context, applicationID id.ApplicationID, kind models.Kind, payload any) (*models.Item, error) {
	actor := requestcontext.ActorID(ctx)
	if actor.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	now := requestcontext.Now(ctx)

	item, err := models.NewItem(id.NewEvidenceID(), applicationID, kind, payload, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	entry, err := audit.NewEntry(applicationID, actor, audit.ActionEvidenceAdded,
		entityTypeFor(kind), item.ID.String(), "", now)
	if err != nil {
		return nil, err
	}

	txErr := s.tx.RunInTx(tx.WithLockKey(ctx, applicationID.String()), func(txCtx context.Context) error {
		if err := s.applications.EnsureOpen(txCtx, applicationID); err != nil {
			return err
		}
		if err := s.items.Create(txCtx, item); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store evidence item")
		}
		if err := s.auditTrail.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorage, "failed to record evidence")
		}
		return s.applications.NoteEvidenceSupplied(txCtx, applicationID, actor)
	})
	if txErr != nil {
		return nil, txErr
	}

	s.publishEntry(ctx, entry)
	s.logger.InfoContext(ctx, "evidence added",
		"application_id", applicationID,
		"item_id", item.ID,
		"kind", kind)
	return item, nil
}

// List returns an application's evidence items, optionally narrowed to one
// kind, newest first.
func (s *Service) List(ctx context.Context, applicationID id.ApplicationID, kind *models.Kind) ([]*models.Item, error) {
	if err := s.applications.EnsureExists(ctx, applicationID); err != nil {
		return nil, err
	}
	items, err := s.items.ListByApplication(ctx, applicationID, kind)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list evidence")
	}
	return items, nil
}

// findByKind resolves an item and checks the caller-supplied kind matches,
// so a verify aimed at the wrong collection cannot touch another kind's
// item that happens to share the ID space.
func (s *Service) findByKind(ctx context.Context, kind models.Kind, itemID id.EvidenceID) (*models.Item, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "evidence item not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evidence item")
	}
	if item.Kind != kind {
		return nil, dErrors.New(dErrors.CodeNotFound, "no "+string(kind)+" item with that id")
	}
	return item, nil
}

func entityTypeFor(kind models.Kind) audit.EntityType {
	switch kind {
	case models.KindEducation:
		return audit.EntityEducation
	case models.KindExperience:
		return audit.EntityExperience
	case models.KindTraining:
		return audit.EntityTraining
	case models.KindDocument:
		return audit.EntityDocument
	}
	return audit.EntityType(string(kind))
}

func (s *Service) publishEntry(ctx context.Context, entry *audit.Entry) {
	if s.metrics != nil {
		s.metrics.IncrementAuditEntries()
	}
	if s.auditPublisher != nil {
		if err := s.auditPublisher.Emit(ctx, *entry); err != nil {
			s.logger.WarnContext(ctx, "audit publish failed",
				"application_id", entry.ApplicationID,
				"action", entry.Action,
				"error", err)
		}
	}
}
