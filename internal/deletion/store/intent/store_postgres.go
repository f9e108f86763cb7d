package intent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"lethe/internal/deletion/models"
	"lethe/pkg/platform/sentinel"
)

// PostgresStore implements the intent queue on PostgreSQL. retry_count is
// incremented server-side so stale concurrent writers can never roll it
// back.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const intentColumns = `
	user_id, user_email, status, requested_at, requested_by,
	reason, rejection_reason, source, retry_count,
	last_error, error_code, final_error,
	error_at, last_retry_at, completed_at
`

func (s *PostgresStore) Upsert(ctx context.Context, intent *models.DeletionIntent) error {
	requestedAt := intent.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Now()
	}
	status := intent.Status
	if status == "" {
		status = models.StatusPending
	}

	query := `
		INSERT INTO deletion_intents (
			user_id, user_email, status, requested_at, requested_by,
			reason, rejection_reason, source, retry_count,
			last_error, error_code, final_error
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			user_email       = EXCLUDED.user_email,
			status           = EXCLUDED.status,
			requested_at     = EXCLUDED.requested_at,
			requested_by     = EXCLUDED.requested_by,
			reason           = EXCLUDED.reason,
			rejection_reason = EXCLUDED.rejection_reason,
			source           = EXCLUDED.source,
			retry_count      = EXCLUDED.retry_count,
			last_error       = EXCLUDED.last_error,
			error_code       = EXCLUDED.error_code,
			final_error      = EXCLUDED.final_error,
			error_at         = NULL,
			last_retry_at    = NULL,
			completed_at     = NULL
	`
	_, err := s.db.ExecContext(ctx, query,
		intent.UserID,
		intent.UserEmail,
		string(status),
		requestedAt,
		intent.RequestedBy,
		intent.Reason,
		intent.RejectionReason,
		intent.Source,
		intent.RetryCount,
		intent.LastError,
		intent.ErrorCode,
		intent.FinalError,
	)
	if err != nil {
		return fmt.Errorf("upsert deletion intent: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*models.DeletionIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM deletion_intents WHERE user_id = $1`
	intent, err := scanIntent(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get deletion intent: %w", err)
	}
	return intent, nil
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, userID string, detail string) error {
	query := `
		UPDATE deletion_intents
		SET status = $2, completed_at = now(),
			last_error = CASE WHEN $3 <> '' THEN $3 ELSE last_error END
		WHERE user_id = $1
	`
	return s.execOne(ctx, query, userID, string(models.StatusCompleted), detail)
}

func (s *PostgresStore) MarkError(ctx context.Context, userID string, lastError, errorCode string) error {
	query := `
		UPDATE deletion_intents
		SET status = $2, last_error = $3, error_code = $4, error_at = now()
		WHERE user_id = $1
	`
	return s.execOne(ctx, query, userID, string(models.StatusError), lastError, errorCode)
}

func (s *PostgresStore) RecordRetryFailure(ctx context.Context, userID string, lastError string) (int, error) {
	query := `
		UPDATE deletion_intents
		SET retry_count = retry_count + 1, last_error = $2, last_retry_at = now()
		WHERE user_id = $1
		RETURNING retry_count
	`
	var count int
	err := s.db.QueryRowContext(ctx, query, userID, lastError).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("record retry failure: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) MarkPermanentError(ctx context.Context, userID string, finalError string) error {
	query := `
		UPDATE deletion_intents
		SET status = $2, final_error = $3
		WHERE user_id = $1
	`
	return s.execOne(ctx, query, userID, string(models.StatusPermanentError), finalError)
}

func (s *PostgresStore) Remove(ctx context.Context, userID string) error {
	return s.execOne(ctx, `DELETE FROM deletion_intents WHERE user_id = $1`, userID)
}

func (s *PostgresStore) ListRetryable(ctx context.Context, budget, limit int) ([]*models.DeletionIntent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM deletion_intents
		WHERE status = $1 AND retry_count < $2
		ORDER BY requested_at
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, string(models.StatusError), budget, limit)
	if err != nil {
		return nil, fmt.Errorf("query retryable intents: %w", err)
	}
	defer rows.Close()

	var intents []*models.DeletionIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deletion intent: %w", err)
		}
		intents = append(intents, intent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retryable intents: %w", err)
	}
	return intents, nil
}

func (s *PostgresStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `SELECT user_id FROM deletion_intents WHERE requested_at < $1 ORDER BY requested_at`
	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query stale intents: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan stale intent: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale intents: %w", err)
	}
	return userIDs, nil
}

func (s *PostgresStore) RemoveBatch(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM deletion_intents WHERE user_id = ANY($1)`,
		pq.Array(userIDs),
	)
	if err != nil {
		return fmt.Errorf("remove intent batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec deletion intent update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(row rowScanner) (*models.DeletionIntent, error) {
	var (
		intent      models.DeletionIntent
		status      string
		errorAt     sql.NullTime
		lastRetryAt sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&intent.UserID,
		&intent.UserEmail,
		&status,
		&intent.RequestedAt,
		&intent.RequestedBy,
		&intent.Reason,
		&intent.RejectionReason,
		&intent.Source,
		&intent.RetryCount,
		&intent.LastError,
		&intent.ErrorCode,
		&intent.FinalError,
		&errorAt,
		&lastRetryAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	intent.Status = models.IntentStatus(status)
	if errorAt.Valid {
		intent.ErrorAt = &errorAt.Time
	}
	if lastRetryAt.Valid {
		intent.LastRetryAt = &lastRetryAt.Time
	}
	if completedAt.Valid {
		intent.CompletedAt = &completedAt.Time
	}
	return &intent, nil
}
