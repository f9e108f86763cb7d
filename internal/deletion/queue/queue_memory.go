package queue

import (
	"context"
	"log/slog"
)

// InMemoryQueue is a channel-backed intent queue for unit tests and
// single-process runs. Handler failures are logged, not redelivered: the
// worker records failed attempts in the intent queue and the retry sweep
// owns subsequent attempts.
type InMemoryQueue struct {
	ch     chan string
	logger *slog.Logger
}

func NewInMemory(buffer int, logger *slog.Logger) *InMemoryQueue {
	if buffer <= 0 {
		buffer = 64
	}
	return &InMemoryQueue{
		ch:     make(chan string, buffer),
		logger: logger,
	}
}

func (q *InMemoryQueue) Publish(ctx context.Context, userID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- userID:
		return nil
	}
}

// Consume dispatches notifications to handler until ctx is cancelled.
func (q *InMemoryQueue) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case userID := <-q.ch:
			if err := handler(ctx, userID); err != nil {
				// The worker has already recorded the failure; the retry
				// sweep owns further attempts.
				q.logger.WarnContext(ctx, "intent processing failed",
					"user_id", userID,
					"error", err,
				)
			}
		}
	}
}
