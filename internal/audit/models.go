package audit

import "time"

// Action tags the event an audit entry records.
type Action string

const (
	ActionUserDeleted        Action = "user_deleted"
	ActionUserDeletionFailed Action = "user_deletion_failed"
	ActionUserDeletedOnRetry Action = "user_deleted_on_retry"
	ActionRetentionSweep     Action = "retention_sweep"
)

// Entry is one append-only audit record. The pipeline writes one entry per
// deletion attempt and one summary entry per retention sweep; it never reads
// them back. Ordering is insertion order, there is no natural key.
type Entry struct {
	ID        string
	Action    Action
	UserID    string
	UserEmail string
	DeletedBy string
	Success   bool
	Detail    string

	// DeletedCount is only set on retention sweep summaries.
	DeletedCount int

	Timestamp time.Time
}
