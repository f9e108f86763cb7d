package operator

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRegistry backs the operator set with the operators table.
type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) Add(ctx context.Context, callerID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO operators (caller_id) VALUES ($1) ON CONFLICT (caller_id) DO NOTHING`,
		callerID,
	)
	if err != nil {
		return fmt.Errorf("add operator: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) Remove(ctx context.Context, callerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM operators WHERE caller_id = $1`, callerID)
	if err != nil {
		return fmt.Errorf("remove operator: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) IsOperator(ctx context.Context, callerID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM operators WHERE caller_id = $1)`,
		callerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check operator: %w", err)
	}
	return exists, nil
}
