//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	applicationmodels "certreg/internal/application/models"
	applicationstore "certreg/internal/application/store"
	"certreg/internal/audit"
	"certreg/internal/audit/store/postgres"
	id "certreg/pkg/domain"
	"certreg/pkg/testutil/containers"
)

type AuditPostgresSuite struct {
	suite.Suite
	postgres     *containers.PostgresContainer
	store        *postgres.Store
	applications *applicationstore.Postgres

	appID id.ApplicationID
	actor id.ActorID
	now   time.Time
}

func TestAuditPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditPostgresSuite))
}

func (s *AuditPostgresSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.applications = applicationstore.NewPostgres(s.postgres.DB)
}

func (s *AuditPostgresSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "audit_entries", "evidence_items", "applications")
	s.Require().NoError(err)

	s.now = time.Now().UTC().Truncate(time.Microsecond)
	s.actor = id.ActorID(uuid.New())
	app, err := applicationmodels.NewApplication(id.NewApplicationID(), id.ApplicantID(uuid.New()), nil, nil, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.applications.Create(ctx, app))
	s.appID = app.ID
}

func (s *AuditPostgresSuite) append(action audit.Action, at time.Time) *audit.Entry {
	entry, err := audit.NewEntry(s.appID, s.actor, action, audit.EntityApplication, s.appID.String(), "", at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(context.Background(), entry))
	return entry
}

func (s *AuditPostgresSuite) TestAppendAssignsIncreasingSeq() {
	first := s.append(audit.ActionSubmit, s.now)
	second := s.append(audit.ActionBeginReview, s.now.Add(time.Minute))

	s.Positive(first.Seq)
	s.Greater(second.Seq, first.Seq)
}

func (s *AuditPostgresSuite) TestHistoryLatestFirst() {
	s.append(audit.ActionSubmit, s.now)
	s.append(audit.ActionBeginReview, s.now.Add(time.Minute))
	s.append(audit.ActionApprove, s.now.Add(2*time.Minute))

	entries, err := s.store.History(context.Background(), s.appID)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.Equal(audit.ActionApprove, entries[0].Action)
	s.Equal(audit.ActionBeginReview, entries[1].Action)
	s.Equal(audit.ActionSubmit, entries[2].Action)
}

// TestHistorySeqBreaksTimestampTies pins ordering when two entries land in
// the same transaction with the same createdAt.
func (s *AuditPostgresSuite) TestHistorySeqBreaksTimestampTies() {
	s.append(audit.ActionSubmit, s.now)
	s.append(audit.ActionBeginReview, s.now)

	entries, err := s.store.History(context.Background(), s.appID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(audit.ActionBeginReview, entries[0].Action, "later insert wins the tie")
	s.Greater(entries[0].Seq, entries[1].Seq)
}

func (s *AuditPostgresSuite) TestHistoryUnknownApplication() {
	entries, err := s.store.History(context.Background(), id.NewApplicationID())
	s.Require().NoError(err)
	s.Empty(entries)
}
