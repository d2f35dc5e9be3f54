package projections

import (
	"context"
	"fmt"
	"sort"
	"time"

	"helphub/internal/adapters/storage/retrieval"
	domain "helphub/internal/domain/retrieval"
)

// DefaultDiagnosticsWindow is the period the per-section summary covers.
const DefaultDiagnosticsWindow = 24 * time.Hour

// GetRetrievalDiagnosticsQuery carries input for the diagnostics projection.
type GetRetrievalDiagnosticsQuery struct {
	Limit  int           // recent attempts to list; 0 uses the store default
	Window time.Duration // summary period; 0 uses DefaultDiagnosticsWindow
}

// GetRetrievalDiagnosticsDeps holds dependencies for the diagnostics projection.
type GetRetrievalDiagnosticsDeps struct {
	Store RetrievalAttemptStore
	Now   func() time.Time
}

// AttemptView is one attempt as shown on the diagnostics endpoint.
type AttemptView struct {
	ID         string    `json:"id"`
	Section    string    `json:"section"`
	Locator    string    `json:"locator"`
	Outcome    string    `json:"outcome"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	ItemCount  int       `json:"item_count"`
	DurationMs float64   `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
}

// SectionSummary aggregates one section's attempts inside the window.
type SectionSummary struct {
	Section       string       `json:"section"`
	Succeeded     int          `json:"succeeded"`
	Failed        int          `json:"failed"`
	FailureRate   float64      `json:"failure_rate"`
	LastSuccessAt *time.Time   `json:"last_success_at,omitempty"`
	LastFailure   *AttemptView `json:"last_failure,omitempty"`
}

// RetrievalDiagnostics is the result of the diagnostics projection.
type RetrievalDiagnostics struct {
	GeneratedAt time.Time        `json:"generated_at"`
	WindowStart time.Time        `json:"window_start"`
	Sections    []SectionSummary `json:"sections"`
	Recent      []AttemptView    `json:"recent"`
}

// QueryGetRetrievalDiagnostics returns recent attempts and a per-section summary.
// PRE: deps.Store is set
// POST: Sections are sorted by name; summary counts cover at most retrieval.MaxListLimit attempts
func QueryGetRetrievalDiagnostics(ctx context.Context, query GetRetrievalDiagnosticsQuery, deps GetRetrievalDiagnosticsDeps) (RetrievalDiagnostics, error) {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	window := query.Window
	if window <= 0 {
		window = DefaultDiagnosticsWindow
	}
	generated := now().UTC()
	since := generated.Add(-window)

	recent, err := deps.Store.ListRecent(ctx, retrieval.ListFilter{Limit: query.Limit})
	if err != nil {
		return RetrievalDiagnostics{}, fmt.Errorf("list recent attempts: %w", err)
	}
	inWindow, err := deps.Store.ListRecent(ctx, retrieval.ListFilter{Since: since, Limit: retrieval.MaxListLimit})
	if err != nil {
		return RetrievalDiagnostics{}, fmt.Errorf("list attempts in window: %w", err)
	}

	result := RetrievalDiagnostics{
		GeneratedAt: generated,
		WindowStart: since,
		Sections:    summarize(inWindow),
		Recent:      make([]AttemptView, 0, len(recent)),
	}
	for _, a := range recent {
		result.Recent = append(result.Recent, viewOf(a))
	}
	return result, nil
}

// summarize expects attempts newest first, as ListRecent returns them.
func summarize(attempts []domain.Attempt) []SectionSummary {
	bySection := make(map[string]*SectionSummary)
	for _, a := range attempts {
		s, ok := bySection[a.Section]
		if !ok {
			s = &SectionSummary{Section: a.Section}
			bySection[a.Section] = s
		}
		if a.Succeeded() {
			s.Succeeded++
			if s.LastSuccessAt == nil {
				at := a.StartedAt
				s.LastSuccessAt = &at
			}
			continue
		}
		s.Failed++
		if s.LastFailure == nil {
			v := viewOf(a)
			s.LastFailure = &v
		}
	}

	out := make([]SectionSummary, 0, len(bySection))
	for _, s := range bySection {
		if total := s.Succeeded + s.Failed; total > 0 {
			s.FailureRate = float64(s.Failed) / float64(total)
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Section < out[j].Section })
	return out
}

func viewOf(a domain.Attempt) AttemptView {
	return AttemptView{
		ID:         a.ID,
		Section:    a.Section,
		Locator:    a.Locator,
		Outcome:    a.Outcome,
		StatusCode: a.StatusCode,
		Error:      a.Error,
		ItemCount:  a.ItemCount,
		DurationMs: a.DurationMs,
		StartedAt:  a.StartedAt,
	}
}
