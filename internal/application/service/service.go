// Package service orchestrates the application lifecycle: submission,
// status decisions, verification progress and history reads.
package service

import (
	"context"
	"log/slog"

	"certreg/internal/application/models"
	"certreg/internal/application/store"
	"certreg/internal/audit"
	evidencemodels "certreg/internal/evidence/models"
	"certreg/internal/platform/metrics"
	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/platform/tx"
	"certreg/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error)
	List(ctx context.Context, filter store.Filter) ([]*models.Application, error)
	Execute(ctx context.Context, applicationID id.ApplicationID, validate func(*models.Application) error, apply func(*models.Application)) (*models.Application, error)
}

type AuditStore interface {
	Append(ctx context.Context, entry *audit.Entry) error
	History(ctx context.Context, applicationID id.ApplicationID) ([]audit.Entry, error)
}

// EvidenceCounter reports per-kind verification tallies. Implemented by the
// evidence store; kept as an interface so this package does not depend on
// evidence persistence.
type EvidenceCounter interface {
	CountByApplication(ctx context.Context, applicationID id.ApplicationID) ([]evidencemodels.KindCount, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// Service orchestrates application workflow. All writes go through the
// transaction runner so the status change and its audit entry land
// together.
type Service struct {
	applications   Store
	auditTrail     AuditStore
	evidence       EvidenceCounter
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
func New(applications Store, auditTrail AuditStore, evidence EvidenceCounter, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		applications: applications,
		auditTrail:   auditTrail,
		evidence:     evidence,
		tx:           runner,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit creates a new application for the authenticated applicant and
// writes the submit audit entry in the same transaction. Applicants may
// only submit on their own behalf; admins may submit for anyone.
func (s *Service) Submit(ctx context.Context, applicantID id.ApplicantID, specializationID *id.SpecializationID, levelID *id.LevelID) (*models.Application, error) {
	actor := requestcontext.ActorID(ctx)
	if actor.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	switch role := requestcontext.ActorRole(ctx); role {
	case requestcontext.RoleAdmin:
	case requestcontext.RoleApplicant:
		if applicantID != id.ApplicantID(actor) {
			return nil, dErrors.New(dErrors.CodeForbidden, "applicants may only submit their own applications")
		}
	default:
		return nil, dErrors.New(dErrors.CodeForbidden, "role may not submit applications")
	}
	now := requestcontext.Now(ctx)

	app, err := models.NewApplication(id.NewApplicationID(), applicantID, specializationID, levelID, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	entry, err := audit.NewEntry(app.ID, actor, audit.ActionSubmit, audit.EntityApplication, app.ID.String(), "", now)
	if err != nil {
		return nil, err
	}

	txErr := s.tx.RunInTx(tx.WithLockKey(ctx, app.ID.String()), func(txCtx context.Context) error {
		if err := s.applications.Create(txCtx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create application")
		}
		if err := s.auditTrail.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorage, "failed to record submission")
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.publishEntry(ctx, entry)
	if s.metrics != nil {
		s.metrics.IncrementSubmitted()
	}
	s.logger.InfoContext(ctx, "application submitted",
		"application_id", app.ID,
		"applicant_id", applicantID)
	return app, nil
}

// Get returns one application by ID.
func (s *Service) Get(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error) {
	return s.loadVisible(ctx, applicationID)
}

// loadVisible fetches an application and enforces read visibility: actors
// without review rights only see their own applications. Foreign IDs get
// "not found" rather than "forbidden" so existence is not leaked.
func (s *Service) loadVisible(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error) {
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		return nil, notFoundOr(err, "failed to load application")
	}
	if !requestcontext.ActorRole(ctx).CanReview() && app.ApplicantID != id.ApplicantID(requestcontext.ActorID(ctx)) {
		return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	return app, nil
}

// List returns applications matching the filter, newest submission first.
// Actors without review rights only see their own applications.
func (s *Service) List(ctx context.Context, filter store.Filter) ([]*models.Application, error) {
	if !requestcontext.ActorRole(ctx).CanReview() {
		applicant := id.ApplicantID(requestcontext.ActorID(ctx))
		filter.ApplicantID = &applicant
	}
	apps, err := s.applications.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return apps, nil
}

// Progress returns the per-kind verification tally for an application.
// Progress informs a reviewer's decision but never gates it.
func (s *Service) Progress(ctx context.Context, applicationID id.ApplicationID) (*models.VerificationProgress, error) {
	if _, err := s.loadVisible(ctx, applicationID); err != nil {
		return nil, err
	}
	counts, err := s.evidence.CountByApplication(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count evidence")
	}
	progress := &models.VerificationProgress{}
	for _, c := range counts {
		progress.Verified += c.Verified
		progress.Total += c.Total
		progress.Kinds = append(progress.Kinds, models.KindProgress{
			Kind:     string(c.Kind),
			Verified: c.Verified,
			Total:    c.Total,
		})
	}
	return progress, nil
}

// History returns the application's audit trail, most recent first.
func (s *Service) History(ctx context.Context, applicationID id.ApplicationID) ([]audit.Entry, error) {
	if _, err := s.loadVisible(ctx, applicationID); err != nil {
		return nil, err
	}
	entries, err := s.auditTrail.History(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load history")
	}
	return entries, nil
}

// publishEntry forwards a committed audit entry to the async publisher and
// logs it. Publish failures are logged, never surfaced: the entry is
// already durable in the store.
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
	s.logger.InfoContext(ctx, "audit entry recorded",
		"application_id", entry.ApplicationID,
		"actor_id", entry.ActorID,
		"action", entry.Action,
		"entity_type", entry.EntityType)
}

func notFoundOr(err error, message string) error {
	if isNotFound(err) {
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
