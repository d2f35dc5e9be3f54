package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"helphub/internal/domain/notice"
	"helphub/internal/domain/retrieval"
)

// NoticeFetcher retrieves notices from a remote locator.
type NoticeFetcher interface {
	FetchNotices(ctx context.Context, locator string) ([]notice.Notice, error)
}

// NoticeFixtures supplies the bundled notices.
type NoticeFixtures interface {
	Notices() []notice.Notice
}

// RetrieveNoticesDeps holds dependencies for RetrieveNotices.
// Attempts and Notifier are optional.
type RetrieveNoticesDeps struct {
	Fetcher    NoticeFetcher
	Fixtures   NoticeFixtures
	Attempts   AttemptRecorder
	Notifier   FallbackNotifier
	GenerateID func() string
	Now        func() time.Time
}

// ExecuteRetrieveNotices decides which notices a render shows.
// PRE: Fetcher, Fixtures and Now are set; GenerateID is set when Attempts is
// POST: Items is either exactly what the fetcher returned (RemoteActive) or
// the fixtures (Local). A failed fetch sets an error banner; it is never
// returned to the caller.
func ExecuteRetrieveNotices(ctx context.Context, input RetrieveInput, deps RetrieveNoticesDeps) retrieval.Outcome[notice.Notice] {
	m := retrieval.NewMachine(SectionNotices)
	if !input.UseRemote {
		return retrieval.Settle(m, deps.Fixtures.Notices())
	}

	log := attemptLog{
		recorder:   deps.Attempts,
		notifier:   deps.Notifier,
		generateID: deps.GenerateID,
		now:        deps.Now,
		section:    SectionNotices,
	}

	m.Begin()
	started := deps.Now()
	items, err := fetchGuarded(func() ([]notice.Notice, error) {
		return deps.Fetcher.FetchNotices(ctx, input.Locator)
	})
	log.record(ctx, input.Locator, started, len(items), err)

	if err != nil {
		m.Fail()
		log.fallback(ctx, input.Locator, err)
		return retrieval.Settle(m, deps.Fixtures.Notices())
	}

	m.Succeed()
	slog.Info("retrieval_event", "event", "remote_loaded", "section", SectionNotices, "count", len(items))
	return retrieval.Settle(m, items)
}
