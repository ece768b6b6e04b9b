//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"certreg/internal/application/models"
	"certreg/internal/application/store"
	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/platform/sentinel"
	txcontext "certreg/pkg/platform/tx"
	"certreg/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx, "audit_entries", "evidence_items", "applications")
	s.Require().NoError(err)
}

func newTestApplication() *models.Application {
	now := time.Now().UTC().Truncate(time.Microsecond)
	app, err := models.NewApplication(id.NewApplicationID(), id.ApplicantID(uuid.New()), nil, nil, now)
	if err != nil {
		panic(err)
	}
	return app
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	app := newTestApplication()
	s.Require().NoError(s.store.Create(ctx, app))

	found, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(app.ID, found.ID)
	s.Equal(app.ApplicantID, found.ApplicantID)
	s.Equal(models.StatusNew, found.Status)
	s.Nil(found.ReviewerID)

	_, err = s.store.FindByID(ctx, id.NewApplicationID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListFilters() {
	ctx := context.Background()
	first := newTestApplication()
	second := newTestApplication()
	s.Require().NoError(s.store.Create(ctx, first))
	s.Require().NoError(s.store.Create(ctx, second))

	all, err := s.store.List(ctx, store.Filter{})
	s.Require().NoError(err)
	s.Len(all, 2)

	applicant := first.ApplicantID
	byApplicant, err := s.store.List(ctx, store.Filter{ApplicantID: &applicant})
	s.Require().NoError(err)
	s.Require().Len(byApplicant, 1)
	s.Equal(first.ID, byApplicant[0].ID)

	status := models.StatusApproved
	byStatus, err := s.store.List(ctx, store.Filter{Status: &status})
	s.Require().NoError(err)
	s.Empty(byStatus)
}

func (s *PostgresStoreSuite) TestExecuteAppliesTransition() {
	ctx := context.Background()
	app := newTestApplication()
	s.Require().NoError(s.store.Create(ctx, app))

	reviewer := id.ActorID(uuid.New())
	now := time.Now().UTC().Truncate(time.Microsecond)

	updated, err := s.store.Execute(ctx, app.ID,
		func(a *models.Application) error { return a.CanTransition(models.StatusPending) },
		func(a *models.Application) { a.ApplyTransition(models.StatusPending, reviewer, "", now) })
	s.Require().NoError(err)
	s.Equal(models.StatusPending, updated.Status)

	found, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, found.Status)
	s.Require().NotNil(found.ReviewerID)
	s.Equal(reviewer, *found.ReviewerID)
}

func (s *PostgresStoreSuite) TestExecuteValidateFailureLeavesRow() {
	ctx := context.Background()
	app := newTestApplication()
	s.Require().NoError(s.store.Create(ctx, app))

	_, err := s.store.Execute(ctx, app.ID,
		func(a *models.Application) error { return a.CanTransition(models.StatusRegistered) },
		func(a *models.Application) { s.Fail("apply must not run when validate fails") })
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	found, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusNew, found.Status)
}

func (s *PostgresStoreSuite) TestExecuteUnknownApplication() {
	_, err := s.store.Execute(context.Background(), id.NewApplicationID(),
		func(a *models.Application) error { return nil },
		func(a *models.Application) {})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentDeciders drives approve and reject through concurrent
// transactions. The FOR UPDATE lock in Execute means the loser revalidates
// against the winner's committed row and fails its transition check.
func (s *PostgresStoreSuite) TestConcurrentDeciders() {
	ctx := context.Background()
	app := newTestApplication()
	app.Status = models.StatusPending
	s.Require().NoError(s.store.Create(ctx, app))

	actor := id.ActorID(uuid.New())
	now := time.Now().UTC().Truncate(time.Microsecond)
	decide := func(target models.Status) error {
		tx, err := s.postgres.DB.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		txCtx := txcontext.WithTx(ctx, tx)
		_, err = s.store.Execute(txCtx, app.ID,
			func(a *models.Application) error { return a.CanTransition(target) },
			func(a *models.Application) { a.ApplyTransition(target, actor, "insufficient evidence", now) })
		if err != nil {
			return err
		}
		return tx.Commit()
	}

	var wg sync.WaitGroup
	var failures atomic.Int32
	for _, target := range []models.Status{models.StatusApproved, models.StatusRejected} {
		wg.Add(1)
		go func(target models.Status) {
			defer wg.Done()
			if err := decide(target); err != nil {
				failures.Add(1)
				s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition),
					"loser must fail its transition check, got %v", err)
			}
		}(target)
	}
	wg.Wait()

	s.Equal(int32(1), failures.Load(), "exactly one decider should lose")

	found, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.True(found.Status == models.StatusApproved || found.Status == models.StatusRejected)
}

func (s *PostgresStoreSuite) TestRejectionReasonPersists() {
	ctx := context.Background()
	app := newTestApplication()
	app.Status = models.StatusPending
	s.Require().NoError(s.store.Create(ctx, app))

	actor := id.ActorID(uuid.New())
	now := time.Now().UTC().Truncate(time.Microsecond)
	_, err := s.store.Execute(ctx, app.ID,
		func(a *models.Application) error { return a.CanTransition(models.StatusRejected) },
		func(a *models.Application) { a.ApplyTransition(models.StatusRejected, actor, "forged transcript", now) })
	s.Require().NoError(err)

	found, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, found.Status)
	s.Equal("forged transcript", found.RejectionReason)
	s.Require().NotNil(found.RejectionDate)
}

func (s *PostgresStoreSuite) TestRejectedRowsRequireReason() {
	// The schema enforces the pairing, not just the model.
	ctx := context.Background()
	app := newTestApplication()
	app.Status = models.StatusRejected

	err := s.store.Create(ctx, app)
	s.Require().Error(err)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		s.Equal(pq.ErrorCode("23514"), pqErr.Code, "expected a check constraint violation")
	}
}
