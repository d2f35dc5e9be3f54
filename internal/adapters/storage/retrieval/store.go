package retrieval

import (
	"context"
	"time"

	domain "helphub/internal/domain/retrieval"
)

// Store persists retrieval attempts for diagnostics.
type Store interface {
	Save(ctx context.Context, a domain.Attempt) error
	ListRecent(ctx context.Context, filter ListFilter) ([]domain.Attempt, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ListFilter carries filtering parameters for ListRecent.
type ListFilter struct {
	Section string
	Since   time.Time
	Limit   int
}
