package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lethe/internal/audit"
	"lethe/internal/deletion/models"
	"lethe/internal/deletion/service"
	"lethe/pkg/platform/sentinel"
)

type RetrySuite struct {
	suite.Suite
	fixture *pipelineFixture
}

func TestRetrySuite(t *testing.T) {
	suite.Run(t, new(RetrySuite))
}

func (s *RetrySuite) SetupTest() {
	s.fixture = newPipelineFixture(s.T())
}

func (s *RetrySuite) TestRetrySucceedsAndRemovesIntent() {
	ctx := context.Background()
	// The principal is already gone from the identity store, which still
	// counts as a successful deletion.
	s.fixture.seedIntent(s.T(), &models.DeletionIntent{
		UserID:      "u1",
		UserEmail:   "u1@example.com",
		Status:      models.StatusError,
		RetryCount:  1,
		RequestedBy: "ops@example.com",
	})

	report, err := s.fixture.svc.SweepRetries(ctx)
	s.Require().NoError(err)
	s.Equal(1, report.Selected)
	s.Equal(1, report.Succeeded)
	s.Equal(0, report.Failed)

	_, gerr := s.fixture.intents.Get(ctx, "u1")
	s.ErrorIs(gerr, sentinel.ErrNotFound)

	entries := s.fixture.auditEntries(s.T())
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionUserDeletedOnRetry, entries[0].Action)
	s.True(entries[0].Success)
	s.Contains(entries[0].Detail, "after 1 failed retries")
}

func (s *RetrySuite) TestRetryFailureIncrementsCount() {
	ctx := context.Background()
	s.fixture.directory.Put(&models.Principal{ID: "u1"})
	s.fixture.directory.FailDeletesWith(errors.New("still down"))
	s.fixture.seedIntent(s.T(), &models.DeletionIntent{
		UserID: "u1",
		Status: models.StatusError,
	})

	report, err := s.fixture.svc.SweepRetries(ctx)
	s.Require().NoError(err)
	s.Equal(1, report.Failed)
	s.Equal(0, report.Escalated)

	intent, gerr := s.fixture.intents.Get(ctx, "u1")
	s.Require().NoError(gerr)
	s.Equal(models.StatusError, intent.Status)
	s.Equal(1, intent.RetryCount)
	s.Equal("still down", intent.LastError)
	s.NotNil(intent.LastRetryAt)
}

func (s *RetrySuite) TestBudgetExhaustionEscalates() {
	ctx := context.Background()
	s.fixture.directory.Put(&models.Principal{ID: "u1"})
	s.fixture.directory.FailDeletesWith(errors.New("still down"))
	s.fixture.seedIntent(s.T(), &models.DeletionIntent{
		UserID:     "u1",
		Status:     models.StatusError,
		RetryCount: 2,
	})

	report, err := s.fixture.svc.SweepRetries(ctx)
	s.Require().NoError(err)
	s.Equal(1, report.Failed)
	s.Equal(1, report.Escalated)

	intent, gerr := s.fixture.intents.Get(ctx, "u1")
	s.Require().NoError(gerr)
	s.Equal(models.StatusPermanentError, intent.Status)
	s.Equal(3, intent.RetryCount)
	s.Contains(intent.FinalError, "failed after 4 attempts")
}

func (s *RetrySuite) TestBatchSizeBoundsSelection() {
	ctx := context.Background()
	fixture := newPipelineFixture(s.T(), service.WithPolicy(service.Policy{
		RetryBudget:        3,
		RetryBatchSize:     2,
		RetentionWindow:    30 * 24 * time.Hour,
		RetentionBatchSize: 500,
	}))
	for i := 0; i < 5; i++ {
		fixture.seedIntent(s.T(), &models.DeletionIntent{
			UserID:      fmt.Sprintf("u%d", i),
			Status:      models.StatusError,
			RequestedAt: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		})
	}

	report, err := fixture.svc.SweepRetries(ctx)
	s.Require().NoError(err)
	s.Equal(2, report.Selected)
	s.Equal(2, report.Succeeded)
}

func (s *RetrySuite) TestTerminalAndExhaustedIntentsNotSelected() {
	ctx := context.Background()
	s.fixture.seedIntent(s.T(), &models.DeletionIntent{
		UserID: "done", Status: models.StatusCompleted,
	})
	s.fixture.seedIntent(s.T(), &models.DeletionIntent{
		UserID: "dead", Status: models.StatusPermanentError, RetryCount: 3,
	})
	s.fixture.seedIntent(s.T(), &models.DeletionIntent{
		UserID: "exhausted", Status: models.StatusError, RetryCount: 3,
	})
	s.fixture.seedIntent(s.T(), &models.DeletionIntent{
		UserID: "fresh", Status: models.StatusPending,
	})

	report, err := s.fixture.svc.SweepRetries(ctx)
	s.Require().NoError(err)
	s.Equal(0, report.Selected)
}

// TestEscalatesAfterFourFailedAttempts walks one intent through the full
// failure lifecycle: the initiating attempt fails, then three hourly sweeps
// fail, and the intent lands in permanent_error with the retry count at the
// budget.
func (s *RetrySuite) TestEscalatesAfterFourFailedAttempts() {
	ctx := context.Background()
	s.fixture.directory.Put(&models.Principal{ID: "u1"})
	s.fixture.directory.FailDeletesWith(errors.New("identity store down"))
	s.fixture.seedIntent(s.T(), &models.DeletionIntent{
		UserID: "u1",
		Status: models.StatusPending,
	})

	s.Require().Error(s.fixture.svc.ProcessIntent(ctx, "u1"))

	for sweep := 1; sweep <= 3; sweep++ {
		report, err := s.fixture.svc.SweepRetries(ctx)
		s.Require().NoError(err)
		s.Require().Equal(1, report.Selected, "sweep %d", sweep)
		s.Require().Equal(1, report.Failed, "sweep %d", sweep)
	}

	intent, err := s.fixture.intents.Get(ctx, "u1")
	s.Require().NoError(err)
	s.Equal(models.StatusPermanentError, intent.Status)
	s.Equal(3, intent.RetryCount)
	s.Contains(intent.FinalError, "failed after 4 attempts")

	// A fourth sweep finds nothing left to retry.
	report, err := s.fixture.svc.SweepRetries(ctx)
	s.Require().NoError(err)
	s.Equal(0, report.Selected)
}
