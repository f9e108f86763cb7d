//go:build integration

package queue_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lethe/internal/deletion/queue"
	"lethe/pkg/testutil/containers"
)

const testStream = "deletion_intents_test"

type RedisQueueSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisQueueSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisQueueSuite))
}

func (s *RedisQueueSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisQueueSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisQueueSuite) consume(ctx context.Context, q *queue.RedisQueue, handler queue.Handler) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Consume(ctx, handler)
	}()
	return done
}

func (s *RedisQueueSuite) waitFor(ch <-chan string, timeout time.Duration) string {
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		s.FailNow("timed out waiting for delivery")
		return ""
	}
}

func (s *RedisQueueSuite) TestPublishAndConsumeRoundTrip() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := queue.NewRedis(s.redis.Client, testStream, slog.New(slog.DiscardHandler))

	received := make(chan string, 4)
	done := s.consume(ctx, q, func(_ context.Context, userID string) error {
		received <- userID
		return nil
	})

	s.Require().NoError(q.Publish(ctx, "u1"))
	s.Require().NoError(q.Publish(ctx, "u2"))

	s.Equal("u1", s.waitFor(received, 10*time.Second))
	s.Equal("u2", s.waitFor(received, 10*time.Second))
	cancel()
	<-done
}

func (s *RedisQueueSuite) TestHandlerFailureStillAcks() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := queue.NewRedis(s.redis.Client, testStream, slog.New(slog.DiscardHandler))

	received := make(chan string, 4)
	done := s.consume(ctx, q, func(_ context.Context, userID string) error {
		received <- userID
		return errors.New("worker failed")
	})

	s.Require().NoError(q.Publish(ctx, "u1"))
	s.Equal("u1", s.waitFor(received, 10*time.Second))

	// A failed handler must not leave the message pending: the worker has
	// already recorded the failure and the retry sweep owns further attempts.
	s.Eventually(func() bool {
		pending, err := s.redis.Client.XPending(context.Background(), testStream, "deletion-worker").Result()
		return err == nil && pending.Count == 0
	}, 10*time.Second, 100*time.Millisecond, "message should be acknowledged despite handler failure")
	cancel()
	<-done
}

func (s *RedisQueueSuite) TestMessagesPublishedBeforeConsumerStartAreDelivered() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := queue.NewRedis(s.redis.Client, testStream, slog.New(slog.DiscardHandler))

	s.Require().NoError(q.Publish(ctx, "early"))

	received := make(chan string, 1)
	done := s.consume(ctx, q, func(_ context.Context, userID string) error {
		received <- userID
		return nil
	})

	s.Equal("early", s.waitFor(received, 10*time.Second))
	cancel()
	<-done
}
