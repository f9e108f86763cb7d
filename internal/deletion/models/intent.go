package models

import "time"

// IntentStatus is the lifecycle state of a deletion intent.
//
// pending -> completed            success (including already-absent principal)
// pending -> error                recoverable identity-store failure
// error   -> permanent_error      retry budget exhausted
//
// Transitions are monotonic: a permanent_error record is never resurrected.
type IntentStatus string

const (
	StatusPending        IntentStatus = "pending"
	StatusCompleted      IntentStatus = "completed"
	StatusError          IntentStatus = "error"
	StatusPermanentError IntentStatus = "permanent_error"
)

// Terminal reports whether no further deletion attempts are allowed.
func (s IntentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusPermanentError
}

// DeletionIntent is a durable record expressing "this user's principal
// should be deleted from the identity store". The intent queue is the
// write-ahead log for the reconciliation pipeline; at most one live intent
// exists per user ID.
type DeletionIntent struct {
	UserID          string
	UserEmail       string
	Status          IntentStatus
	RequestedAt     time.Time
	RequestedBy     string
	Reason          string
	RejectionReason string
	Source          string

	// RetryCount counts failed retry attempts. It only ever increases.
	RetryCount int

	LastError  string
	ErrorCode  string
	FinalError string

	ErrorAt     *time.Time
	LastRetryAt *time.Time
	CompletedAt *time.Time
}
