package projections

import (
	"context"

	"helphub/internal/adapters/storage/retrieval"
	domainRetrieval "helphub/internal/domain/retrieval"
)

// RetrievalAttemptStore interface for retrieval attempt queries.
type RetrievalAttemptStore interface {
	ListRecent(ctx context.Context, filter retrieval.ListFilter) ([]domainRetrieval.Attempt, error)
}
