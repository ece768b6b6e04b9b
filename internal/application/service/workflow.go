package service

import (
	"context"

	"certreg/internal/application/models"
	"certreg/internal/audit"
	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/requestcontext"
)

// The methods below are the evidence service's view of the application
// workflow. They are called inside the evidence service's transaction and
// therefore never open one of their own.

// EnsureExists fails with not-found when the application does not exist.
func (s *Service) EnsureExists(ctx context.Context, applicationID id.ApplicationID) error {
	if _, err := s.applications.FindByID(ctx, applicationID); err != nil {
		return notFoundOr(err, "failed to load application")
	}
	return nil
}

// EnsureOpen fails when the application does not exist or has reached a
// terminal status. Evidence activity checks this before mutating anything.
func (s *Service) EnsureOpen(ctx context.Context, applicationID id.ApplicationID) error {
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		return notFoundOr(err, "failed to load application")
	}
	if app.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"application is "+string(app.Status)+" and no longer accepts review activity")
	}
	return nil
}

// NoteReviewActivity moves a new application to pending when a reviewer
// first touches its evidence. Applications already under review are left
// alone; terminal applications reject the activity outright so a verify
// against a decided application fails before any evidence mutates.
func (s *Service) NoteReviewActivity(ctx context.Context, applicationID id.ApplicationID, actor id.ActorID) error {
	now := requestcontext.Now(ctx)
	_, err := s.applications.Execute(ctx, applicationID,
		func(a *models.Application) error {
			if a.Status.IsTerminal() {
				return a.CanTransition(models.StatusPending)
			}
			return nil
		},
		func(a *models.Application) {
			if a.Status == models.StatusNew {
				a.ApplyTransition(models.StatusPending, actor, "", now)
			}
		})
	if err != nil {
		return transitionErr(err)
	}
	return nil
}

// NoteEvidenceSupplied resumes review when an applicant adds evidence to
// an application sitting in action-required. Any other non-terminal status
// is a no-op; terminal applications refuse new evidence.
func (s *Service) NoteEvidenceSupplied(ctx context.Context, applicationID id.ApplicationID, actor id.ActorID) error {
	now := requestcontext.Now(ctx)
	resumed := false
	_, err := s.applications.Execute(ctx, applicationID,
		func(a *models.Application) error {
			if a.Status.IsTerminal() {
				return dErrors.New(dErrors.CodeInvalidTransition,
					"application is "+string(a.Status)+" and can no longer accept evidence")
			}
			return nil
		},
		func(a *models.Application) {
			if a.Status == models.StatusActionRequired {
				a.ApplyTransition(models.StatusPending, actor, "", now)
				resumed = true
			}
		})
	if err != nil {
		return transitionErr(err)
	}
	if !resumed {
		return nil
	}

	entry, err := audit.NewEntry(applicationID, actor, audit.ActionResumeReview,
		audit.EntityApplication, applicationID.String(), "", now)
	if err != nil {
		return err
	}
	if err := s.auditTrail.Append(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "failed to record resumed review")
	}
	s.publishEntry(ctx, entry)
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(models.StatusPending))
	}
	return nil
}
