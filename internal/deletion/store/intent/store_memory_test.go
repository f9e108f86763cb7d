package intent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lethe/internal/deletion/models"
	"lethe/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s.store = New().WithClock(func() time.Time { return s.now })
}

func (s *MemoryStoreSuite) seed(userID string, status models.IntentStatus, retryCount int, requestedAt time.Time) {
	s.Require().NoError(s.store.Upsert(context.Background(), &models.DeletionIntent{
		UserID:      userID,
		Status:      status,
		RetryCount:  retryCount,
		RequestedAt: requestedAt,
	}))
}

func (s *MemoryStoreSuite) TestUpsertDefaultsAndGetReturnsCopy() {
	ctx := context.Background()
	s.Require().NoError(s.store.Upsert(ctx, &models.DeletionIntent{UserID: "u1"}))

	intent, err := s.store.Get(ctx, "u1")
	s.Require().NoError(err)
	s.Equal(models.StatusPending, intent.Status)
	s.Equal(s.now, intent.RequestedAt)

	// Mutating the returned value must not leak into the store.
	intent.Status = models.StatusCompleted
	again, err := s.store.Get(ctx, "u1")
	s.Require().NoError(err)
	s.Equal(models.StatusPending, again.Status)
}

func (s *MemoryStoreSuite) TestGetMissingReturnsNotFound() {
	_, err := s.store.Get(context.Background(), "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestUpsertOverwritesExisting() {
	ctx := context.Background()
	s.seed("u1", models.StatusError, 2, s.now.Add(-time.Hour))
	s.Require().NoError(s.store.Upsert(ctx, &models.DeletionIntent{
		UserID: "u1",
		Reason: "second request",
	}))

	intent, err := s.store.Get(ctx, "u1")
	s.Require().NoError(err)
	s.Equal(models.StatusPending, intent.Status)
	s.Equal(0, intent.RetryCount)
	s.Equal("second request", intent.Reason)
	s.Equal(1, s.store.Len(), "upsert keyed by user ID must not duplicate")
}

func (s *MemoryStoreSuite) TestMarkCompletedStampsTimestamp() {
	ctx := context.Background()
	s.seed("u1", models.StatusPending, 0, s.now)

	s.Require().NoError(s.store.MarkCompleted(ctx, "u1", "principal not found"))

	intent, err := s.store.Get(ctx, "u1")
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, intent.Status)
	s.Require().NotNil(intent.CompletedAt)
	s.Equal(s.now, *intent.CompletedAt)
	s.Equal("principal not found", intent.LastError)
}

func (s *MemoryStoreSuite) TestMarkErrorLeavesRetryCountAlone() {
	ctx := context.Background()
	s.seed("u1", models.StatusPending, 0, s.now)

	s.Require().NoError(s.store.MarkError(ctx, "u1", "timeout", "identity_store_failure"))

	intent, err := s.store.Get(ctx, "u1")
	s.Require().NoError(err)
	s.Equal(models.StatusError, intent.Status)
	s.Equal(0, intent.RetryCount)
	s.Equal("timeout", intent.LastError)
	s.Equal("identity_store_failure", intent.ErrorCode)
	s.NotNil(intent.ErrorAt)
}

func (s *MemoryStoreSuite) TestRecordRetryFailureIncrementsMonotonically() {
	ctx := context.Background()
	s.seed("u1", models.StatusError, 0, s.now)

	for want := 1; want <= 3; want++ {
		count, err := s.store.RecordRetryFailure(ctx, "u1", "still down")
		s.Require().NoError(err)
		s.Equal(want, count)
	}

	intent, err := s.store.Get(ctx, "u1")
	s.Require().NoError(err)
	s.Equal(3, intent.RetryCount)
	s.Equal(models.StatusError, intent.Status, "retry bookkeeping must not change status")
	s.NotNil(intent.LastRetryAt)
}

func (s *MemoryStoreSuite) TestMutationsOnMissingIntentReturnNotFound() {
	ctx := context.Background()
	s.ErrorIs(s.store.MarkCompleted(ctx, "nobody", ""), sentinel.ErrNotFound)
	s.ErrorIs(s.store.MarkError(ctx, "nobody", "e", "c"), sentinel.ErrNotFound)
	s.ErrorIs(s.store.MarkPermanentError(ctx, "nobody", "e"), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Remove(ctx, "nobody"), sentinel.ErrNotFound)
	_, err := s.store.RecordRetryFailure(ctx, "nobody", "e")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestListRetryableFiltersAndOrders() {
	ctx := context.Background()
	s.seed("late", models.StatusError, 1, s.now.Add(-time.Hour))
	s.seed("early", models.StatusError, 0, s.now.Add(-2*time.Hour))
	s.seed("exhausted", models.StatusError, 3, s.now.Add(-3*time.Hour))
	s.seed("pending", models.StatusPending, 0, s.now)
	s.seed("done", models.StatusCompleted, 0, s.now)

	intents, err := s.store.ListRetryable(ctx, 3, 10)
	s.Require().NoError(err)
	s.Require().Len(intents, 2)
	s.Equal("early", intents[0].UserID, "oldest request first")
	s.Equal("late", intents[1].UserID)

	limited, err := s.store.ListRetryable(ctx, 3, 1)
	s.Require().NoError(err)
	s.Require().Len(limited, 1)
	s.Equal("early", limited[0].UserID)
}

func (s *MemoryStoreSuite) TestListOlderThanIgnoresStatus() {
	ctx := context.Background()
	cutoff := s.now.Add(-30 * 24 * time.Hour)
	s.seed("old-pending", models.StatusPending, 0, cutoff.Add(-time.Minute))
	s.seed("old-dead", models.StatusPermanentError, 3, cutoff.Add(-time.Hour))
	s.seed("at-cutoff", models.StatusPending, 0, cutoff)
	s.seed("fresh", models.StatusPending, 0, s.now)

	userIDs, err := s.store.ListOlderThan(ctx, cutoff)
	s.Require().NoError(err)
	s.Equal([]string{"old-dead", "old-pending"}, userIDs)
}

func (s *MemoryStoreSuite) TestRemoveBatchToleratesMissing() {
	ctx := context.Background()
	s.seed("u1", models.StatusPending, 0, s.now)
	s.seed("u2", models.StatusPending, 0, s.now)

	s.Require().NoError(s.store.RemoveBatch(ctx, []string{"u1", "u2", "ghost"}))
	s.Equal(0, s.store.Len())
}
