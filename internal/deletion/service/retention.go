package service

import (
	"context"
	"fmt"

	"lethe/internal/audit"
	"lethe/internal/deletion/ports"
	dErrors "lethe/pkg/domain-errors"
	"lethe/pkg/platform/chunk"
)

// RetentionReport summarizes one retention sweep.
type RetentionReport struct {
	Deleted int
	Batches int
}

// SweepRetention purges intent records older than the retention window by
// requested-at time, irrespective of status, to bound queue growth. Deletes
// are committed in chunks no larger than the store's per-commit ceiling,
// with a final flush for the remainder. One summary audit entry is written
// per sweep, not one per record.
func (s *Service) SweepRetention(ctx context.Context) (*RetentionReport, error) {
	cutoff := s.now().Add(-s.policy.RetentionWindow)
	userIDs, err := s.intents.ListOlderThan(ctx, cutoff)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to select stale intents")
	}

	report := &RetentionReport{}
	if len(userIDs) == 0 {
		s.logger.InfoContext(ctx, "retention sweep found nothing to purge", "cutoff", cutoff)
		return report, nil
	}

	var sweepErr error
	for _, batch := range chunk.Slices(userIDs, s.policy.RetentionBatchSize) {
		if err := s.intents.RemoveBatch(ctx, batch); err != nil {
			sweepErr = dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge intent batch")
			break
		}
		report.Deleted += len(batch)
		report.Batches++
	}

	if s.metrics != nil {
		s.metrics.IntentsPurged.Add(float64(report.Deleted))
	}
	ports.LogAudit(ctx, s.logger, s.audit, audit.Entry{
		Action:       audit.ActionRetentionSweep,
		DeletedBy:    "retention_sweep",
		Success:      sweepErr == nil,
		DeletedCount: report.Deleted,
		Detail:       fmt.Sprintf("purged intents requested before %s", cutoff.Format("2006-01-02")),
	})
	s.logger.InfoContext(ctx, "retention sweep completed",
		"deleted", report.Deleted,
		"batches", report.Batches,
		"cutoff", cutoff,
	)
	return report, sweepErr
}
