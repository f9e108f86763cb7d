// Package service implements the deletion reconciliation pipeline: the
// trigger-driven worker, the hourly retry sweep, the daily retention sweep,
// and the manual intake operation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lethe/internal/deletion/metrics"
	"lethe/internal/deletion/models"
	"lethe/internal/deletion/ports"
)

// Policy bundles the pipeline's tunables. Defaults mirror the reference
// deployment.
type Policy struct {
	// RetryBudget is the maximum number of retry attempts before an intent
	// is marked permanently failed.
	RetryBudget int

	// RetryBatchSize caps intents per retry sweep to avoid thundering-herd
	// load on the identity store.
	RetryBatchSize int

	// RetentionWindow is the maximum age of an intent record before the
	// retention sweep purges it regardless of status.
	RetentionWindow time.Duration

	// RetentionBatchSize is the store's per-commit operation ceiling.
	RetentionBatchSize int
}

func DefaultPolicy() Policy {
	return Policy{
		RetryBudget:        3,
		RetryBatchSize:     10,
		RetentionWindow:    30 * 24 * time.Hour,
		RetentionBatchSize: 500,
	}
}

// Service coordinates the intent queue, the identity store, and the audit
// log. All collaborators are passed in so tests can use in-memory doubles.
type Service struct {
	intents   ports.IntentStore
	directory ports.PrincipalDirectory
	operators ports.OperatorRegistry
	queue     ports.IntentQueue
	audit     ports.AuditPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	policy    Policy
	now       func() time.Time
}

type Option func(*Service)

func WithOperators(registry ports.OperatorRegistry) Option {
	return func(s *Service) {
		s.operators = registry
	}
}

func WithQueue(queue ports.IntentQueue) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPolicy(policy Policy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithClock overrides the service clock. Test helper.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(intents ports.IntentStore, directory ports.PrincipalDirectory, opts ...Option) (*Service, error) {
	if intents == nil {
		return nil, fmt.Errorf("intent store is required")
	}
	if directory == nil {
		return nil, fmt.Errorf("principal directory is required")
	}

	svc := &Service{
		intents:   intents,
		directory: directory,
		logger:    slog.Default(),
		policy:    DefaultPolicy(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// escalate moves an intent to permanent_error with a summary citing the
// total failed attempts (the initiating attempt plus RetryCount retries).
// Both the worker and the retry sweep funnel through here so the terminal
// transition is defined in exactly one place.
func (s *Service) escalate(ctx context.Context, intent *models.DeletionIntent) error {
	attempts := intent.RetryCount + 1
	summary := fmt.Sprintf("failed after %d attempts: %s", attempts, intent.LastError)
	if err := s.intents.MarkPermanentError(ctx, intent.UserID, summary); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark intent permanently failed",
			"user_id", intent.UserID,
			"error", err,
		)
		return err
	}
	if s.metrics != nil {
		s.metrics.PermanentFailures.Inc()
	}
	s.logger.WarnContext(ctx, "deletion intent permanently failed",
		"user_id", intent.UserID,
		"attempts", attempts,
	)
	return nil
}
