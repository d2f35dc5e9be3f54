package retrieval

import (
	"context"
	"fmt"
	"time"

	"helphub/internal/adapters/storage"
	domain "helphub/internal/domain/retrieval"
)

// timeLayout is fixed width so started_at compares correctly as text.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// DefaultListLimit caps ListRecent when the filter sets no limit.
const DefaultListLimit = 50

// MaxListLimit is the largest page ListRecent will return.
const MaxListLimit = 500

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const attemptColumns = `id, section, locator, outcome, status_code, error, item_count, duration_ms, started_at`

// Save inserts an attempt. Attempts are immutable; saving an existing ID is an error.
// PRE: attempt passes Validate
// POST: Attempt is persisted
func (s *SQLiteStore) Save(ctx context.Context, a domain.Attempt) error {
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO retrieval_attempt (`+attemptColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Section, a.Locator, a.Outcome, a.StatusCode, a.Error,
		a.ItemCount, a.DurationMs, a.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert retrieval attempt: %w", err)
	}
	return nil
}

// ListRecent returns attempts newest first.
// PRE: filter.Limit >= 0
// POST: At most min(Limit, MaxListLimit) attempts, ordered by started_at DESC
func (s *SQLiteStore) ListRecent(ctx context.Context, filter ListFilter) ([]domain.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM retrieval_attempt WHERE 1=1`
	args := []any{}

	if filter.Section != "" {
		query += ` AND section = ?`
		args = append(args, filter.Section)
	}
	if !filter.Since.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list retrieval attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		var startedAt string
		if err := rows.Scan(&a.ID, &a.Section, &a.Locator, &a.Outcome, &a.StatusCode,
			&a.Error, &a.ItemCount, &a.DurationMs, &startedAt); err != nil {
			return nil, fmt.Errorf("scan retrieval attempt: %w", err)
		}
		a.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// PruneBefore deletes attempts that started before cutoff.
// PRE: cutoff is non-zero
// POST: Returns the number of rows deleted
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM retrieval_attempt WHERE started_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune retrieval attempts: %w", err)
	}
	return res.RowsAffected()
}
