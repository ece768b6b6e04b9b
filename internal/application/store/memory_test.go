package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certreg/internal/application/models"
	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/platform/sentinel"
)

type ApplicationStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestApplicationStoreSuite(t *testing.T) {
	suite.Run(t, new(ApplicationStoreSuite))
}

func (s *ApplicationStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *ApplicationStoreSuite) newApplication(submitted time.Time) *models.Application {
	app, err := models.NewApplication(id.NewApplicationID(), id.ApplicantID(uuid.New()), nil, nil, submitted)
	s.Require().NoError(err)
	return app
}

func (s *ApplicationStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds by ID", func() {
		app := s.newApplication(time.Now())
		s.Require().NoError(s.store.Create(s.ctx, app))

		found, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal(app.ID, found.ID)
		s.Equal(models.StatusNew, found.Status)
	})

	s.Run("rejects duplicate ID", func() {
		app := s.newApplication(time.Now())
		s.Require().NoError(s.store.Create(s.ctx, app))
		s.ErrorIs(s.store.Create(s.ctx, app), sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewApplicationID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("FindByID returns a copy", func() {
		app := s.newApplication(time.Now())
		s.Require().NoError(s.store.Create(s.ctx, app))

		found, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		found.Status = models.StatusApproved

		again, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusNew, again.Status)
	})
}

func (s *ApplicationStoreSuite) TestList() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older := s.newApplication(base)
	newer := s.newApplication(base.Add(24 * time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, older))
	s.Require().NoError(s.store.Create(s.ctx, newer))

	s.Run("orders by submission date descending", func() {
		apps, err := s.store.List(s.ctx, Filter{})
		s.Require().NoError(err)
		s.Require().Len(apps, 2)
		s.Equal(newer.ID, apps[0].ID)
		s.Equal(older.ID, apps[1].ID)
	})

	s.Run("filters by status", func() {
		pending := models.StatusPending
		apps, err := s.store.List(s.ctx, Filter{Status: &pending})
		s.Require().NoError(err)
		s.Empty(apps)

		newStatus := models.StatusNew
		apps, err = s.store.List(s.ctx, Filter{Status: &newStatus})
		s.Require().NoError(err)
		s.Len(apps, 2)
	})

	s.Run("filters by applicant", func() {
		apps, err := s.store.List(s.ctx, Filter{ApplicantID: &older.ApplicantID})
		s.Require().NoError(err)
		s.Require().Len(apps, 1)
		s.Equal(older.ID, apps[0].ID)
	})
}

func (s *ApplicationStoreSuite) TestExecute() {
	actor := id.ActorID(uuid.New())
	now := time.Now()

	s.Run("applies mutation after validation passes", func() {
		app := s.newApplication(now)
		s.Require().NoError(s.store.Create(s.ctx, app))

		updated, err := s.store.Execute(s.ctx, app.ID,
			func(a *models.Application) error { return a.CanTransition(models.StatusPending) },
			func(a *models.Application) { a.ApplyTransition(models.StatusPending, actor, "", now) },
		)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, updated.Status)

		found, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("leaves record untouched when validation fails", func() {
		app := s.newApplication(now)
		s.Require().NoError(s.store.Create(s.ctx, app))

		_, err := s.store.Execute(s.ctx, app.ID,
			func(a *models.Application) error { return a.CanTransition(models.StatusRegistered) },
			func(a *models.Application) { a.ApplyTransition(models.StatusRegistered, actor, "", now) },
		)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		found, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusNew, found.Status)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.Execute(s.ctx, id.NewApplicationID(),
			func(*models.Application) error { return nil },
			func(*models.Application) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
