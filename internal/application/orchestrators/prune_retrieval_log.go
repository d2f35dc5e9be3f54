package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetrievalRetention is how long retrieval attempts are kept.
const DefaultRetrievalRetention = 14 * 24 * time.Hour

// RetrievalLogPruner deletes attempts older than a cutoff.
type RetrievalLogPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneRetrievalLogInput carries input for the prune job.
type PruneRetrievalLogInput struct {
	Retention time.Duration
}

// PruneRetrievalLogDeps holds dependencies for PruneRetrievalLog.
type PruneRetrievalLogDeps struct {
	Store RetrievalLogPruner
	Now   func() time.Time
}

// ExecutePruneRetrievalLog deletes retrieval attempts older than the retention.
// PRE: Retention > 0
// POST: No attempt with started_at before now-Retention remains; returns rows deleted
func ExecutePruneRetrievalLog(ctx context.Context, input PruneRetrievalLogInput, deps PruneRetrievalLogDeps) (int64, error) {
	if input.Retention <= 0 {
		return 0, errors.New("retention must be positive")
	}
	cutoff := deps.Now().Add(-input.Retention)
	n, err := deps.Store.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune retrieval log: %w", err)
	}
	slog.Info("diagnostics_event", "event", "retrieval_log_pruned", "deleted", n, "cutoff", cutoff)
	return n, nil
}
