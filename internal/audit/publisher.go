package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher captures structured audit entries. It is append-only and uses
// the storage layer for persistence so tests can swap sinks easily. When an
// outbox channel is attached, appended entries are also handed to the
// forwarder for Kafka publication; a full outbox never blocks the pipeline.
type Publisher struct {
	store  Store
	outbox chan<- Entry
}

type PublisherOption func(*Publisher)

// WithOutbox attaches a forwarder inbox to the publisher.
func WithOutbox(outbox chan<- Entry) PublisherOption {
	return func(p *Publisher) {
		p.outbox = outbox
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, entry); err != nil {
		return err
	}
	if p.outbox != nil {
		select {
		case p.outbox <- entry:
		default:
			// Forwarding is best effort; the store already holds the entry.
		}
	}
	return nil
}

func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	return p.store.ListRecent(ctx, limit)
}
