package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"lethe/internal/audit"
)

// Store implements audit.Store on PostgreSQL. The audit_entries table is
// insert-only; the sequence column preserves write order.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	query := `
		INSERT INTO audit_entries (
			id, action, user_id, user_email, deleted_by,
			success, detail, deleted_count, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		string(entry.Action),
		entry.UserID,
		entry.UserEmail,
		entry.DeletedBy,
		entry.Success,
		entry.Detail,
		entry.DeletedCount,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	query := `
		SELECT id, action, user_id, user_email, deleted_by,
			   success, detail, deleted_count, created_at
		FROM audit_entries
		ORDER BY seq DESC
		LIMIT $1
	`
	// LIMIT NULL means no limit, matching the in-memory store.
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.db.QueryContext(ctx, query, lim)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry  audit.Entry
			action string
		)
		err := rows.Scan(
			&entry.ID,
			&action,
			&entry.UserID,
			&entry.UserEmail,
			&entry.DeletedBy,
			&entry.Success,
			&entry.Detail,
			&entry.DeletedCount,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Action = audit.Action(action)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
