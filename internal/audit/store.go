package audit

import "context"

// Store persists audit entries. Append-only: nothing in the pipeline
// updates or deletes an entry once written.
type Store interface {
	Append(ctx context.Context, entry Entry) error

	// ListRecent returns the newest entries, most recent first. Used by
	// operators and tests only, never by the pipeline.
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}
