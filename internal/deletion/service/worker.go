package service

import (
	"context"
	"errors"

	"lethe/internal/audit"
	"lethe/internal/deletion/models"
	"lethe/internal/deletion/ports"
	dErrors "lethe/pkg/domain-errors"
	"lethe/pkg/platform/sentinel"
)

// errorCodeIdentityStore tags recoverable identity-store failures on the
// intent record.
const errorCodeIdentityStore = "identity_store_failure"

// ProcessIntent runs the deletion worker for one created intent. The queue
// delivers at least once, so every path must be safe to repeat: an absent
// or terminal intent is a no-op, and deleting an already-absent principal
// counts as success.
//
// Identity-store failures are recorded on the intent and in the audit log,
// then returned to the caller so the invoking infrastructure can alert on
// them. Bookkeeping failures are logged but never mask the primary outcome.
func (s *Service) ProcessIntent(ctx context.Context, userID string) error {
	intent, err := s.intents.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Redelivery after the intent was completed and removed.
			s.logger.InfoContext(ctx, "no live intent for user, skipping", "user_id", userID)
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deletion intent")
	}
	if intent.Status.Terminal() {
		s.logger.InfoContext(ctx, "intent already in terminal state, skipping",
			"user_id", userID,
			"status", intent.Status,
		)
		return nil
	}

	// Redelivered intent whose budget is already exhausted: escalate
	// instead of attempting again.
	if intent.RetryCount >= s.policy.RetryBudget {
		return s.escalate(ctx, intent)
	}

	principal, err := s.directory.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return s.completeAbsent(ctx, intent)
		}
		return s.recordFailure(ctx, intent, err)
	}

	if err := s.directory.Delete(ctx, userID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Deleted out from under us between lookup and delete.
			return s.completeAbsent(ctx, intent)
		}
		return s.recordFailure(ctx, intent, err)
	}

	ports.LogAudit(ctx, s.logger, s.audit, audit.Entry{
		Action:    audit.ActionUserDeleted,
		UserID:    userID,
		UserEmail: principal.Email,
		DeletedBy: intent.RequestedBy,
		Success:   true,
		Detail:    intent.Reason,
	})

	// The completed record need not be retained.
	if err := s.intents.Remove(ctx, userID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.ErrorContext(ctx, "failed to remove completed intent",
			"user_id", userID,
			"error", err,
		)
	}
	if s.metrics != nil {
		s.metrics.DeletionsCompleted.Inc()
	}
	s.logger.InfoContext(ctx, "principal deleted from identity store", "user_id", userID)
	return nil
}

// completeAbsent handles the idempotent-success case: the principal no
// longer exists, so there is nothing left to do. The intent is marked
// completed and left for the retention sweep.
func (s *Service) completeAbsent(ctx context.Context, intent *models.DeletionIntent) error {
	const detail = "principal not found in identity store"
	if err := s.intents.MarkCompleted(ctx, intent.UserID, detail); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.ErrorContext(ctx, "failed to mark intent completed",
			"user_id", intent.UserID,
			"error", err,
		)
	}
	ports.LogAudit(ctx, s.logger, s.audit, audit.Entry{
		Action:    audit.ActionUserDeleted,
		UserID:    intent.UserID,
		UserEmail: intent.UserEmail,
		DeletedBy: intent.RequestedBy,
		Success:   true,
		Detail:    detail,
	})
	if s.metrics != nil {
		s.metrics.DeletionsCompleted.Inc()
	}
	return nil
}

// recordFailure books a recoverable failure on the initiating path: error
// state on the intent (RetryCount untouched; retries are counted by the
// retry sweep), one audit entry, then the original error is returned for
// the invoking infrastructure to record.
func (s *Service) recordFailure(ctx context.Context, intent *models.DeletionIntent, cause error) error {
	if err := s.intents.MarkError(ctx, intent.UserID, cause.Error(), errorCodeIdentityStore); err != nil {
		s.logger.ErrorContext(ctx, "failed to record intent error state",
			"user_id", intent.UserID,
			"error", err,
		)
	}
	ports.LogAudit(ctx, s.logger, s.audit, audit.Entry{
		Action:    audit.ActionUserDeletionFailed,
		UserID:    intent.UserID,
		UserEmail: intent.UserEmail,
		DeletedBy: intent.RequestedBy,
		Success:   false,
		Detail:    cause.Error(),
	})
	if s.metrics != nil {
		s.metrics.DeletionsFailed.Inc()
	}
	return dErrors.Wrap(cause, dErrors.CodeUnavailable, "identity store deletion failed")
}
