package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"lethe/internal/audit"
	"lethe/internal/deletion/models"
	"lethe/internal/deletion/ports"
	dErrors "lethe/pkg/domain-errors"
	"lethe/pkg/platform/sentinel"
)

// RetryReport summarizes one retry sweep.
type RetryReport struct {
	Selected  int
	Succeeded int
	Failed    int
	Escalated int
}

// SweepRetries re-attempts identity-store deletion for intents in the error
// state that are still under the retry budget, bounded to the configured
// batch size. Attempts run concurrently and are joined before the sweep
// returns; one intent's failure never aborts the others. A failed selection
// query aborts the whole run so the scheduler can alert on it.
func (s *Service) SweepRetries(ctx context.Context) (*RetryReport, error) {
	intents, err := s.intents.ListRetryable(ctx, s.policy.RetryBudget, s.policy.RetryBatchSize)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to select retryable intents")
	}

	report := &RetryReport{Selected: len(intents)}
	s.logger.InfoContext(ctx, "retry sweep started", "selected", len(intents))

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, intent := range intents {
		g.Go(func() error {
			outcome := s.retryOne(ctx, intent)
			mu.Lock()
			switch outcome {
			case retrySucceeded:
				report.Succeeded++
			case retryEscalated:
				report.Failed++
				report.Escalated++
			default:
				report.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "retry sweep completed",
		"selected", report.Selected,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"escalated", report.Escalated,
	)
	return report, nil
}

type retryOutcome int

const (
	retryFailed retryOutcome = iota
	retrySucceeded
	retryEscalated
)

func (s *Service) retryOne(ctx context.Context, intent *models.DeletionIntent) retryOutcome {
	if s.metrics != nil {
		s.metrics.RetriesAttempted.Inc()
	}

	err := s.directory.Delete(ctx, intent.UserID)
	if err == nil || errors.Is(err, sentinel.ErrNotFound) {
		ports.LogAudit(ctx, s.logger, s.audit, audit.Entry{
			Action:    audit.ActionUserDeletedOnRetry,
			UserID:    intent.UserID,
			UserEmail: intent.UserEmail,
			DeletedBy: intent.RequestedBy,
			Success:   true,
			Detail:    fmt.Sprintf("succeeded after %d failed retries", intent.RetryCount),
		})
		if err := s.intents.Remove(ctx, intent.UserID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.ErrorContext(ctx, "failed to remove intent after retry success",
				"user_id", intent.UserID,
				"error", err,
			)
		}
		if s.metrics != nil {
			s.metrics.DeletionsCompleted.Inc()
		}
		return retrySucceeded
	}

	count, uerr := s.intents.RecordRetryFailure(ctx, intent.UserID, err.Error())
	if uerr != nil {
		s.logger.ErrorContext(ctx, "failed to record retry failure",
			"user_id", intent.UserID,
			"error", uerr,
		)
		return retryFailed
	}
	if s.metrics != nil {
		s.metrics.DeletionsFailed.Inc()
	}
	s.logger.WarnContext(ctx, "retry deletion failed",
		"user_id", intent.UserID,
		"retry_count", count,
		"error", err,
	)

	if count >= s.policy.RetryBudget {
		updated := *intent
		updated.RetryCount = count
		updated.LastError = err.Error()
		if eerr := s.escalate(ctx, &updated); eerr == nil {
			return retryEscalated
		}
	}
	return retryFailed
}
