package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue carries created-intent notifications over a Redis Stream with
// a consumer group. A message is acknowledged after the handler returns, so
// a crash mid-processing leads to redelivery (at-least-once); the worker's
// idempotence makes that safe.
type RedisQueue struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	logger   *slog.Logger

	// block bounds each XREADGROUP wait so ctx cancellation is honored.
	block time.Duration
}

func NewRedis(client *redis.Client, stream string, logger *slog.Logger) *RedisQueue {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "lethe"
	}
	return &RedisQueue{
		client:   client,
		stream:   stream,
		group:    "deletion-worker",
		consumer: hostname + "-" + uuid.NewString()[:8],
		logger:   logger,
		block:    5 * time.Second,
	}
}

func (q *RedisQueue) Publish(ctx context.Context, userID string) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{"user_id": userID},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish intent notification: %w", err)
	}
	return nil
}

// Consume dispatches notifications to handler until ctx is cancelled. On
// startup it creates the consumer group if needed, and each cycle it claims
// messages abandoned by dead consumers before reading new ones.
func (q *RedisQueue) Consume(ctx context.Context, handler Handler) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		q.claimAbandoned(ctx, handler)

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    10,
			Block:    q.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			q.logger.ErrorContext(ctx, "read intent stream", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.dispatch(ctx, handler, msg)
			}
		}
	}
}

func (q *RedisQueue) dispatch(ctx context.Context, handler Handler, msg redis.XMessage) {
	userID, _ := msg.Values["user_id"].(string)
	if userID == "" {
		q.logger.WarnContext(ctx, "intent notification without user_id", "message_id", msg.ID)
	} else if err := handler(ctx, userID); err != nil {
		// The worker has already recorded the failure in the intent queue;
		// the retry sweep owns further attempts, so the message is still
		// acknowledged.
		q.logger.WarnContext(ctx, "intent processing failed",
			"user_id", userID,
			"message_id", msg.ID,
			"error", err,
		)
	}
	if err := q.client.XAck(ctx, q.stream, q.group, msg.ID).Err(); err != nil {
		q.logger.ErrorContext(ctx, "ack intent notification", "message_id", msg.ID, "error", err)
	}
}

// claimAbandoned re-reads messages a crashed consumer read but never acked.
func (q *RedisQueue) claimAbandoned(ctx context.Context, handler Handler) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  time.Minute,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			q.logger.WarnContext(ctx, "claim abandoned notifications", "error", err)
		}
		return
	}
	for _, msg := range msgs {
		q.dispatch(ctx, handler, msg)
	}
}

func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}
