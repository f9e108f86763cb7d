package service

import (
	"context"
	"fmt"
	"strings"

	"lethe/internal/deletion/models"
	dErrors "lethe/pkg/domain-errors"
	"lethe/pkg/requestcontext"
)

// RequestDeletionInput is the manual intake payload.
type RequestDeletionInput struct {
	UserID string
	Reason string
}

// RequestDeletionResult acknowledges that an intent was enqueued. The
// deletion itself is performed by the worker reacting to the queue.
type RequestDeletionResult struct {
	Success bool
	Message string
	UserID  string
}

// RequestDeletion lets an authenticated operator enqueue a deletion intent.
// It rejects unauthenticated callers, callers missing from the operator
// registry, and empty target IDs, in that order. On success the intent is
// upserted keyed by the target user ID and a created-intent notification is
// published.
func (s *Service) RequestDeletion(ctx context.Context, input RequestDeletionInput) (*RequestDeletionResult, error) {
	caller := requestcontext.CallerID(ctx)
	if caller == "" {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "authentication required")
	}

	if s.operators == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "operator registry not configured")
	}
	isOperator, err := s.operators.IsOperator(ctx, caller)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check operator registry")
	}
	if !isOperator {
		return nil, dErrors.New(dErrors.CodePermissionDenied, "only registered operators can request deletions")
	}

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "target user ID is required")
	}

	reason := input.Reason
	if reason == "" {
		reason = "manual deletion requested"
	}

	intent := &models.DeletionIntent{
		UserID:      userID,
		Status:      models.StatusPending,
		RequestedAt: s.now(),
		RequestedBy: caller,
		Reason:      reason,
		Source:      "manual_intake",
	}
	if err := s.intents.Upsert(ctx, intent); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue deletion intent")
	}

	if s.queue != nil {
		if err := s.queue.Publish(ctx, userID); err != nil {
			// The intent is durable; the caller can safely retry, and the
			// upsert is idempotent.
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to publish intent notification")
		}
	}

	s.logger.InfoContext(ctx, "manual deletion requested",
		"user_id", userID,
		"requested_by", caller,
	)
	return &RequestDeletionResult{
		Success: true,
		Message: fmt.Sprintf("user %s marked for deletion", userID),
		UserID:  userID,
	}, nil
}
