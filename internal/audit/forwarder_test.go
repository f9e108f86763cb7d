package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lethe/internal/audit"
)

type capturingProducer struct {
	mu       sync.Mutex
	records  []producedRecord
	failWith error
	notify   chan struct{}
}

type producedRecord struct {
	key     string
	payload []byte
}

func newCapturingProducer() *capturingProducer {
	return &capturingProducer{notify: make(chan struct{}, 16)}
}

func (p *capturingProducer) Produce(_ context.Context, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() { p.notify <- struct{}{} }()
	if p.failWith != nil {
		return p.failWith
	}
	p.records = append(p.records, producedRecord{key: key, payload: payload})
	return nil
}

func (p *capturingProducer) Records() []producedRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]producedRecord(nil), p.records...)
}

type ForwarderSuite struct {
	suite.Suite
}

func TestForwarderSuite(t *testing.T) {
	suite.Run(t, new(ForwarderSuite))
}

func (s *ForwarderSuite) TestForwardsEntriesAsKeyedJSON() {
	producer := newCapturingProducer()
	inbox := make(chan audit.Entry, 1)
	forwarder := audit.NewForwarder(producer, inbox, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = forwarder.Run(ctx)
	}()

	stamp := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	inbox <- audit.Entry{
		ID:        "e1",
		Action:    audit.ActionUserDeleted,
		UserID:    "u1",
		UserEmail: "u1@example.com",
		DeletedBy: "ops@example.com",
		Success:   true,
		Timestamp: stamp,
	}

	select {
	case <-producer.notify:
	case <-time.After(time.Second):
		s.FailNow("forwarder never produced the entry")
	}
	cancel()
	<-done

	records := producer.Records()
	s.Require().Len(records, 1)
	s.Equal("u1", records[0].key, "records are keyed by user ID")

	var payload map[string]any
	s.Require().NoError(json.Unmarshal(records[0].payload, &payload))
	s.Equal("e1", payload["id"])
	s.Equal("user_deleted", payload["action"])
	s.Equal("u1@example.com", payload["user_email"])
	s.Equal(true, payload["success"])
}

func (s *ForwarderSuite) TestProducerFailureDoesNotStopTheLoop() {
	producer := newCapturingProducer()
	producer.failWith = errors.New("broker down")
	inbox := make(chan audit.Entry, 2)
	forwarder := audit.NewForwarder(producer, inbox, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = forwarder.Run(ctx)
	}()

	inbox <- audit.Entry{ID: "e1", Action: audit.ActionUserDeleted}
	select {
	case <-producer.notify:
	case <-time.After(time.Second):
		s.FailNow("forwarder never attempted the first entry")
	}

	producer.mu.Lock()
	producer.failWith = nil
	producer.mu.Unlock()

	inbox <- audit.Entry{ID: "e2", Action: audit.ActionUserDeleted}
	select {
	case <-producer.notify:
	case <-time.After(time.Second):
		s.FailNow("forwarder stopped after a producer failure")
	}
	cancel()
	<-done

	records := producer.Records()
	s.Require().Len(records, 1)
	var payload map[string]any
	s.Require().NoError(json.Unmarshal(records[0].payload, &payload))
	s.Equal("e2", payload["id"])
}
