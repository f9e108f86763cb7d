// Package queue carries created-intent notifications from producers to the
// deletion worker. Delivery is at-least-once: the worker is idempotent, so
// redelivery of a processed intent is a harmless no-op.
package queue

import "context"

// Handler processes one created-intent notification. A returned error is
// logged by the queue; the notification is still acknowledged because the
// worker records failures on the intent and the retry sweep owns further
// attempts.
type Handler func(ctx context.Context, userID string) error
