package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	applicationmodels "certreg/internal/application/models"
	applicationservice "certreg/internal/application/service"
	applicationstore "certreg/internal/application/store"
	"certreg/internal/audit"
	auditmemory "certreg/internal/audit/store/memory"
	"certreg/internal/evidence/models"
	evidencestore "certreg/internal/evidence/store"
	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/platform/tx"
	"certreg/pkg/requestcontext"
)

type EvidenceServiceSuite struct {
	suite.Suite
	items        *evidencestore.InMemory
	auditTrail   *auditmemory.InMemoryStore
	applications *applicationstore.InMemory
	workflow     *applicationservice.Service
	service      *Service

	applicant id.ApplicantID
	reviewer  id.ActorID
	now       time.Time
}

func TestEvidenceServiceSuite(t *testing.T) {
	suite.Run(t, new(EvidenceServiceSuite))
}

func (s *EvidenceServiceSuite) SetupTest() {
	s.items = evidencestore.NewInMemory()
	s.auditTrail = auditmemory.NewInMemoryStore()
	s.applications = applicationstore.NewInMemory()
	runner := tx.NewInMemoryRunner()
	s.workflow = applicationservice.New(s.applications, s.auditTrail, s.items, runner)
	s.service = New(s.items, s.auditTrail, s.workflow, runner)

	s.applicant = id.ApplicantID(uuid.New())
	s.reviewer = id.ActorID(uuid.New())
	s.now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
}

func (s *EvidenceServiceSuite) ctxAs(actor id.ActorID, role requestcontext.Role) context.Context {
	ctx := requestcontext.WithActor(context.Background(), actor, role)
	return requestcontext.WithTime(ctx, s.now)
}

func (s *EvidenceServiceSuite) newApplication(status applicationmodels.Status) *applicationmodels.Application {
	app, err := applicationmodels.NewApplication(id.NewApplicationID(), s.applicant, nil, nil, s.now)
	s.Require().NoError(err)
	app.Status = status
	s.Require().NoError(s.applications.Create(context.Background(), app))
	return app
}

func (s *EvidenceServiceSuite) newStoredItem(appID id.ApplicationID, kind models.Kind) *models.Item {
	var payload any
	switch kind {
	case models.KindEducation:
		payload = &models.EducationDetails{Institution: "MIT", Degree: "BSc"}
	case models.KindTraining:
		payload = &models.TrainingDetails{Provider: "Acme", CourseName: "Go", CompletedOn: s.now}
	default:
		payload = &models.DocumentDetails{FileName: "cv.pdf"}
	}
	item, err := models.NewItem(id.NewEvidenceID(), appID, kind, payload, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.items.Create(context.Background(), item))
	return item
}

func (s *EvidenceServiceSuite) appStatus(appID id.ApplicationID) applicationmodels.Status {
	app, err := s.applications.FindByID(context.Background(), appID)
	s.Require().NoError(err)
	return app.Status
}

func (s *EvidenceServiceSuite) TestVerify() {
	s.Run("reviewer verifies an item", func() {
		app := s.newApplication(applicationmodels.StatusPending)
		item := s.newStoredItem(app.ID, models.KindEducation)

		verified, err := s.service.Verify(s.ctxAs(s.reviewer, requestcontext.RoleReviewer), models.KindEducation, item.ID, "matches transcript")
		s.Require().NoError(err)
		s.True(verified.IsVerified)
		s.Require().NotNil(verified.VerifiedBy)
		s.Equal(s.reviewer, *verified.VerifiedBy)
		s.Require().NotNil(verified.VerificationDate)
		s.True(verified.VerificationDate.Equal(s.now))
		s.Equal("matches transcript", verified.VerificationNotes)

		entries, err := s.auditTrail.History(context.Background(), app.ID)
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionVerify, entries[0].Action)
		s.Equal(audit.EntityEducation, entries[0].EntityType)
		s.Equal(item.ID.String(), entries[0].EntityID)
		s.Equal("matches transcript", entries[0].Notes)
	})

	s.Run("first verify moves a new application to pending", func() {
		app := s.newApplication(applicationmodels.StatusNew)
		item := s.newStoredItem(app.ID, models.KindDocument)

		_, err := s.service.Verify(s.ctxAs(s.reviewer, requestcontext.RoleReviewer), models.KindDocument, item.ID, "")
		s.Require().NoError(err)
		s.Equal(applicationmodels.StatusPending, s.appStatus(app.ID))

		updated, err := s.applications.FindByID(context.Background(), app.ID)
		s.Require().NoError(err)
		s.Require().NotNil(updated.ReviewerID)
		s.Equal(s.reviewer, *updated.ReviewerID)
	})

	s.Run("re-verification overwrites and appends a second entry", func() {
		app := s.newApplication(applicationmodels.StatusPending)
		item := s.newStoredItem(app.ID, models.KindTraining)
		second := id.ActorID(uuid.New())

		_, err := s.service.Verify(s.ctxAs(s.reviewer, requestcontext.RoleReviewer), models.KindTraining, item.ID, "first pass")
		s.Require().NoError(err)
		reverified, err := s.service.Verify(s.ctxAs(second, requestcontext.RoleReviewer), models.KindTraining, item.ID, "second pass")
		s.Require().NoError(err)

		s.True(reverified.IsVerified)
		s.Equal(second, *reverified.VerifiedBy)
		s.Equal("second pass", reverified.VerificationNotes)

		entries, err := s.auditTrail.History(context.Background(), app.ID)
		s.Require().NoError(err)
		s.Len(entries, 2)
	})
}

func (s *EvidenceServiceSuite) TestVerifyAuthorization() {
	app := s.newApplication(applicationmodels.StatusPending)
	item := s.newStoredItem(app.ID, models.KindEducation)

	s.Run("applicant is forbidden", func() {
		_, err := s.service.Verify(s.ctxAs(id.ActorID(s.applicant), requestcontext.RoleApplicant), models.KindEducation, item.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("anonymous is unauthorized", func() {
		_, err := s.service.Verify(context.Background(), models.KindEducation, item.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("registrar may verify", func() {
		registrar := id.ActorID(uuid.New())
		_, err := s.service.Verify(s.ctxAs(registrar, requestcontext.RoleRegistrar), models.KindEducation, item.ID, "")
		s.NoError(err)
	})
}

func (s *EvidenceServiceSuite) TestVerifyResolution() {
	app := s.newApplication(applicationmodels.StatusPending)
	item := s.newStoredItem(app.ID, models.KindEducation)

	s.Run("unknown item", func() {
		_, err := s.service.Verify(s.ctxAs(s.reviewer, requestcontext.RoleReviewer), models.KindEducation, id.NewEvidenceID(), "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("kind mismatch reads as not found", func() {
		_, err := s.service.Verify(s.ctxAs(s.reviewer, requestcontext.RoleReviewer), models.KindTraining, item.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		stored, err := s.items.FindByID(context.Background(), item.ID)
		s.Require().NoError(err)
		s.False(stored.IsVerified, "a mismatched verify must not touch the item")
	})
}

func (s *EvidenceServiceSuite) TestVerifyAgainstDecidedApplication() {
	app := s.newApplication(applicationmodels.StatusRejected)
	item := s.newStoredItem(app.ID, models.KindEducation)

	_, err := s.service.Verify(s.ctxAs(s.reviewer, requestcontext.RoleReviewer), models.KindEducation, item.ID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	stored, err := s.items.FindByID(context.Background(), item.ID)
	s.Require().NoError(err)
	s.False(stored.IsVerified)
}

type failingAuditStore struct{}

func (failingAuditStore) Append(context.Context, *audit.Entry) error {
	return errors.New("audit store down")
}

func (s *EvidenceServiceSuite) TestVerifyIsAtomicWhenAuditFails() {
	app := s.newApplication(applicationmodels.StatusNew)
	item := s.newStoredItem(app.ID, models.KindEducation)

	broken := New(s.items, failingAuditStore{}, s.workflow, tx.NewInMemoryRunner())
	_, err := broken.Verify(s.ctxAs(s.reviewer, requestcontext.RoleReviewer), models.KindEducation, item.ID, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStorage))

	stored, err := s.items.FindByID(context.Background(), item.ID)
	s.Require().NoError(err)
	s.False(stored.IsVerified, "failed audit append must leave the item unchanged")
	s.Equal(applicationmodels.StatusNew, s.appStatus(app.ID), "failed verify must not advance the application")
}

func (s *EvidenceServiceSuite) TestAdd() {
	s.Run("applicant attaches evidence", func() {
		app := s.newApplication(applicationmodels.StatusNew)

		item, err := s.service.Add(s.ctxAs(id.ActorID(s.applicant), requestcontext.RoleApplicant), app.ID, models.KindDocument,
			&models.DocumentDetails{FileName: "diploma.pdf"})
		s.Require().NoError(err)
		s.Equal(models.KindDocument, item.Kind)
		s.False(item.IsVerified)

		entries, err := s.auditTrail.History(context.Background(), app.ID)
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionEvidenceAdded, entries[0].Action)
		s.Equal(audit.EntityDocument, entries[0].EntityType)
	})

	s.Run("adding evidence resumes an action-required review", func() {
		app := s.newApplication(applicationmodels.StatusActionRequired)

		_, err := s.service.Add(s.ctxAs(id.ActorID(s.applicant), requestcontext.RoleApplicant), app.ID, models.KindEducation,
			&models.EducationDetails{Institution: "MIT", Degree: "MSc"})
		s.Require().NoError(err)
		s.Equal(applicationmodels.StatusPending, s.appStatus(app.ID))

		entries, err := s.auditTrail.History(context.Background(), app.ID)
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal(audit.ActionResumeReview, entries[0].Action)
		s.Equal(audit.ActionEvidenceAdded, entries[1].Action)
	})

	s.Run("terminal applications refuse evidence", func() {
		app := s.newApplication(applicationmodels.StatusRegistered)
		_, err := s.service.Add(s.ctxAs(id.ActorID(s.applicant), requestcontext.RoleApplicant), app.ID, models.KindDocument,
			&models.DocumentDetails{FileName: "late.pdf"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("invalid payload is a validation error", func() {
		app := s.newApplication(applicationmodels.StatusNew)
		_, err := s.service.Add(s.ctxAs(id.ActorID(s.applicant), requestcontext.RoleApplicant), app.ID, models.KindEducation,
			&models.EducationDetails{Institution: ""})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown application", func() {
		_, err := s.service.Add(s.ctxAs(id.ActorID(s.applicant), requestcontext.RoleApplicant), id.NewApplicationID(), models.KindDocument,
			&models.DocumentDetails{FileName: "x.pdf"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EvidenceServiceSuite) TestList() {
	app := s.newApplication(applicationmodels.StatusPending)
	s.newStoredItem(app.ID, models.KindEducation)
	s.newStoredItem(app.ID, models.KindDocument)

	items, err := s.service.List(context.Background(), app.ID, nil)
	s.Require().NoError(err)
	s.Len(items, 2)

	kind := models.KindEducation
	items, err = s.service.List(context.Background(), app.ID, &kind)
	s.Require().NoError(err)
	s.Len(items, 1)

	_, err = s.service.List(context.Background(), id.NewApplicationID(), nil)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
