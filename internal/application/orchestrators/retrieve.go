package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"helphub/internal/adapters/sheets"
	"helphub/internal/domain/retrieval"
)

// Section names used in attempts, alerts and logs.
const (
	SectionNotices = "notices"
	SectionLinks   = "links"
)

// AttemptRecorder stores remote attempts for diagnostics.
type AttemptRecorder interface {
	Save(ctx context.Context, a retrieval.Attempt) error
}

// FallbackEvent describes a section reverting to its fixtures.
type FallbackEvent struct {
	Section string
	Locator string // redacted
	Err     error
	At      time.Time
}

// FallbackNotifier is told about every fallback. Implementations decide
// whether to act on it.
type FallbackNotifier interface {
	NotifyFallback(ctx context.Context, ev FallbackEvent)
}

// RetrieveInput carries input for a single-locator retrieval.
type RetrieveInput struct {
	UseRemote bool
	Locator   string
}

// fetchGuarded runs fn and turns a panic into an error so a broken fetcher
// cannot take the page down.
func fetchGuarded[T any](fn func() ([]T, error)) (items []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panicked: %v", r)
		}
	}()
	return fn()
}

// attemptLog collects what a remote retrieval needs to record afterwards.
type attemptLog struct {
	recorder   AttemptRecorder
	notifier   FallbackNotifier
	generateID func() string
	now        func() time.Time
	section    string
}

func (l attemptLog) record(ctx context.Context, locator string, started time.Time, count int, err error) {
	if l.recorder == nil {
		return
	}
	a := retrieval.Attempt{
		ID:         l.generateID(),
		Section:    l.section,
		Locator:    retrieval.RedactLocator(locator),
		Outcome:    retrieval.AttemptSucceeded,
		ItemCount:  count,
		DurationMs: float64(l.now().Sub(started).Microseconds()) / 1000.0,
		StartedAt:  started,
	}
	if err != nil {
		a.Outcome = retrieval.AttemptFailed
		a.Error = err.Error()
		a.StatusCode = sheets.StatusCode(err)
		a.ItemCount = 0
	}
	// A page render must not fail because diagnostics could not be written.
	if saveErr := l.recorder.Save(ctx, a); saveErr != nil {
		slog.Error("retrieval_event", "event", "attempt_save_failed", "section", l.section, "error", saveErr)
	}
}

func (l attemptLog) fallback(ctx context.Context, locator string, err error) {
	slog.Warn("retrieval_event",
		"event", "fallback",
		"section", l.section,
		"target", retrieval.RedactLocator(locator),
		"status", sheets.StatusCode(err),
		"error", err,
	)
	if l.notifier != nil {
		l.notifier.NotifyFallback(ctx, FallbackEvent{
			Section: l.section,
			Locator: retrieval.RedactLocator(locator),
			Err:     err,
			At:      l.now(),
		})
	}
}
