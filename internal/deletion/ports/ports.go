// Package ports defines shared interfaces for the deletion module.
// Interfaces are placed here when consumed by multiple services to avoid
// duplication; implementations live under store/, directory/ and queue/.
package ports

import (
	"context"
	"log/slog"
	"time"

	"lethe/internal/audit"
	"lethe/internal/deletion/models"
	"lethe/pkg/requestcontext"
)

// IntentStore manages the durable deletion-intent queue. Implementations
// must key records by user ID (at most one live intent per user) and keep
// retry_count monotonically non-decreasing.
type IntentStore interface {
	// Upsert creates or overwrites the intent for intent.UserID.
	Upsert(ctx context.Context, intent *models.DeletionIntent) error

	// Get returns the intent for a user, or sentinel.ErrNotFound.
	Get(ctx context.Context, userID string) (*models.DeletionIntent, error)

	// MarkCompleted transitions the intent to completed and stamps CompletedAt.
	MarkCompleted(ctx context.Context, userID string, detail string) error

	// MarkError records a recoverable failure on the initiating path:
	// status error, LastError, ErrorCode, ErrorAt. RetryCount is untouched.
	MarkError(ctx context.Context, userID string, lastError, errorCode string) error

	// RecordRetryFailure atomically increments RetryCount and stamps
	// LastRetryAt and LastError, leaving status as error. Returns the
	// post-increment count.
	RecordRetryFailure(ctx context.Context, userID string, lastError string) (int, error)

	// MarkPermanentError transitions the intent to permanent_error with a
	// summary of the exhausted attempts.
	MarkPermanentError(ctx context.Context, userID string, finalError string) error

	// Remove deletes the intent record outright.
	Remove(ctx context.Context, userID string) error

	// ListRetryable returns intents with status error and RetryCount below
	// budget, bounded to limit.
	ListRetryable(ctx context.Context, budget, limit int) ([]*models.DeletionIntent, error)

	// ListOlderThan returns user IDs of intents requested before cutoff,
	// regardless of status.
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)

	// RemoveBatch deletes the given intents in one commit. Callers keep
	// batches at or below the store's operation ceiling.
	RemoveBatch(ctx context.Context, userIDs []string) error
}

// PrincipalDirectory is the identity store holding login principals.
// Lookup and Delete return sentinel.ErrNotFound for absent principals so
// the worker can treat absence as idempotent success.
type PrincipalDirectory interface {
	Lookup(ctx context.Context, userID string) (*models.Principal, error)
	Delete(ctx context.Context, userID string) error
}

// OperatorRegistry answers whether a caller is a registered operator,
// allowed to enqueue manual deletions.
type OperatorRegistry interface {
	IsOperator(ctx context.Context, callerID string) (bool, error)
}

// AuditPublisher emits append-only audit entries for deletion attempts.
type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// IntentQueue delivers created-intent notifications to the deletion worker
// with at-least-once semantics.
type IntentQueue interface {
	// Publish notifies that an intent for userID was created.
	Publish(ctx context.Context, userID string) error
}

// LogAudit writes an attempt outcome to both the structured logger and the
// audit publisher. Audit failures are logged, never propagated: bookkeeping
// must not mask the primary operation's outcome.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, entry audit.Entry) {
	attrs := []any{
		"action", entry.Action,
		"user_id", entry.UserID,
		"success", entry.Success,
		"log_type", "audit",
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	if logger != nil {
		logger.InfoContext(ctx, string(entry.Action), attrs...)
	}
	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, entry); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit entry", "action", entry.Action, "error", err)
	}
}
