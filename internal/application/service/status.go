package service

import (
	"context"
	"errors"
	"strings"

	"certreg/internal/application/models"
	"certreg/internal/audit"
	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/platform/sentinel"
	"certreg/pkg/platform/tx"
	"certreg/pkg/requestcontext"
)

// UpdateStatus moves an application to the requested status on behalf of
// the authenticated actor. The transition is validated and applied under
// the row lock, and exactly one audit entry is appended in the same
// transaction; a failed append rolls the transition back.
//
// Reason is required when rejecting and recorded as the audit notes for
// reject and request-changes decisions.
func (s *Service) UpdateStatus(ctx context.Context, applicationID id.ApplicationID, next models.Status, reason string) (*models.Application, error) {
	actor := requestcontext.ActorID(ctx)
	if actor.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	role := requestcontext.ActorRole(ctx)
	if next == models.StatusRegistered {
		if !role.CanRegister() {
			return nil, dErrors.New(dErrors.CodeForbidden, "only a registrar may finalize registration")
		}
	} else if !role.CanReview() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only a reviewer may change application status")
	}

	reason = strings.TrimSpace(reason)
	if next == models.StatusRejected && reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a rejection reason is required")
	}
	now := requestcontext.Now(ctx)

	var (
		updated *models.Application
		entry   *audit.Entry
	)
	txErr := s.tx.RunInTx(tx.WithLockKey(ctx, applicationID.String()), func(txCtx context.Context) error {
		var from models.Status
		app, err := s.applications.Execute(txCtx, applicationID,
			func(a *models.Application) error {
				from = a.Status
				return a.CanTransition(next)
			},
			func(a *models.Application) {
				a.ApplyTransition(next, actor, reason, now)
			})
		if err != nil {
			return transitionErr(err)
		}

		entry, err = audit.NewEntry(applicationID, actor, actionForTransition(from, next),
			audit.EntityApplication, applicationID.String(), auditNotes(next, reason), now)
		if err != nil {
			return err
		}
		if err := s.auditTrail.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorage, "failed to record status change")
		}
		updated = app
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.publishEntry(ctx, entry)
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(next))
	}
	s.logger.InfoContext(ctx, "application status changed",
		"application_id", applicationID,
		"status", next,
		"actor_id", actor)
	return updated, nil
}

// actionForTransition maps a validated transition to its audit action.
// Entering pending is the one ambiguous case: first review versus a
// returning applicant being picked back up.
func actionForTransition(from, to models.Status) audit.Action {
	switch to {
	case models.StatusPending:
		if from == models.StatusNew {
			return audit.ActionBeginReview
		}
		return audit.ActionResumeReview
	case models.StatusApproved:
		return audit.ActionApprove
	case models.StatusRejected:
		return audit.ActionReject
	case models.StatusActionRequired:
		return audit.ActionRequestChanges
	case models.StatusRegistered:
		return audit.ActionRegister
	}
	return audit.Action(string(to))
}

func auditNotes(next models.Status, reason string) string {
	if next == models.StatusRejected || next == models.StatusActionRequired {
		return reason
	}
	return ""
}

func transitionErr(err error) error {
	if isNotFound(err) {
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	if dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update application")
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound)
}
