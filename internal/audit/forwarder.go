package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Producer publishes a keyed payload to the audit topic.
type Producer interface {
	Produce(ctx context.Context, key string, payload []byte) error
}

// Forwarder consumes appended audit entries from a channel and publishes
// them to Kafka. The store remains the durable copy; forwarding failures
// are logged and dropped so the pipeline is never coupled to broker health.
type Forwarder struct {
	producer Producer
	inbox    <-chan Entry
	logger   *slog.Logger
}

func NewForwarder(producer Producer, inbox <-chan Entry, logger *slog.Logger) *Forwarder {
	return &Forwarder{producer: producer, inbox: inbox, logger: logger}
}

// wirePayload is the JSON structure published to the audit topic.
type wirePayload struct {
	ID           string `json:"id"`
	Action       string `json:"action"`
	UserID       string `json:"user_id,omitempty"`
	UserEmail    string `json:"user_email,omitempty"`
	DeletedBy    string `json:"deleted_by,omitempty"`
	Success      bool   `json:"success"`
	Detail       string `json:"detail,omitempty"`
	DeletedCount int    `json:"deleted_count,omitempty"`
	Timestamp    string `json:"timestamp"`
}

func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-f.inbox:
			f.forward(ctx, entry)
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, entry Entry) {
	payload, err := json.Marshal(wirePayload{
		ID:           entry.ID,
		Action:       string(entry.Action),
		UserID:       entry.UserID,
		UserEmail:    entry.UserEmail,
		DeletedBy:    entry.DeletedBy,
		Success:      entry.Success,
		Detail:       entry.Detail,
		DeletedCount: entry.DeletedCount,
		Timestamp:    entry.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		f.logger.ErrorContext(ctx, "marshal audit entry", "entry_id", entry.ID, "error", err)
		return
	}
	if err := f.producer.Produce(ctx, entry.UserID, payload); err != nil {
		f.logger.WarnContext(ctx, "forward audit entry to kafka",
			"entry_id", entry.ID,
			"action", entry.Action,
			"error", err,
		)
	}
}
