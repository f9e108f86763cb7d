//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lethe/internal/audit"
	auditpg "lethe/internal/audit/store/postgres"
	"lethe/internal/platform/postgres"
	"lethe/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpg.Store
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.EnsureSchema(context.Background(), s.postgres.DB))
	s.store = auditpg.New(s.postgres.DB)
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_entries"))
}

func (s *AuditStoreSuite) entry(id string, action audit.Action) audit.Entry {
	return audit.Entry{
		ID:        id,
		Action:    action,
		UserID:    "u1",
		UserEmail: "u1@example.com",
		DeletedBy: "ops@example.com",
		Success:   true,
		Detail:    "account closure",
		Timestamp: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
}

func (s *AuditStoreSuite) TestAppendAndListRoundTrip() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.entry("e1", audit.ActionUserDeleted)))

	entries, err := s.store.ListRecent(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("e1", entries[0].ID)
	s.Equal(audit.ActionUserDeleted, entries[0].Action)
	s.Equal("u1@example.com", entries[0].UserEmail)
	s.True(entries[0].Success)
}

func (s *AuditStoreSuite) TestDuplicateIDsAreDeduplicated() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.entry("e1", audit.ActionUserDeleted)))
	s.Require().NoError(s.store.Append(ctx, s.entry("e1", audit.ActionUserDeletionFailed)))

	entries, err := s.store.ListRecent(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionUserDeleted, entries[0].Action, "the first write wins")
}

func (s *AuditStoreSuite) TestListRecentOrdersNewestFirst() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.entry("e1", audit.ActionUserDeleted)))
	s.Require().NoError(s.store.Append(ctx, s.entry("e2", audit.ActionUserDeletedOnRetry)))
	s.Require().NoError(s.store.Append(ctx, s.entry("e3", audit.ActionRetentionSweep)))

	entries, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("e3", entries[0].ID)
	s.Equal("e2", entries[1].ID)

	all, err := s.store.ListRecent(ctx, 0)
	s.Require().NoError(err)
	s.Len(all, 3, "non-positive limit returns everything")
}
