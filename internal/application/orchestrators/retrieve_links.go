package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"helphub/internal/domain/link"
	"helphub/internal/domain/retrieval"
)

// LinkFetcher retrieves links from a remote locator.
type LinkFetcher interface {
	FetchLinks(ctx context.Context, locator string) ([]link.CategorizedLink, error)
}

// LinkFixtures supplies the bundled links per section.
type LinkFixtures interface {
	Links(section link.Section) []link.CategorizedLink
}

// RetrieveLinksInput carries input for RetrieveLinks. Locators has one
// entry per section; a section without one fails the remote attempt.
type RetrieveLinksInput struct {
	UseRemote bool
	Locators  map[link.Section]string
}

// RetrieveLinksDeps holds dependencies for RetrieveLinks.
// Attempts and Notifier are optional.
type RetrieveLinksDeps struct {
	Fetcher    LinkFetcher
	Fixtures   LinkFixtures
	Attempts   AttemptRecorder
	Notifier   FallbackNotifier
	GenerateID func() string
	Now        func() time.Time
}

// ExecuteRetrieveLinks decides which links a render shows, for all sections
// at once. Sections are fetched in display order and the first failure
// stops the attempt.
// PRE: Fetcher, Fixtures and Now are set; GenerateID is set when Attempts is
// POST: Either every section holds its fetched links (RemoteActive) or every
// section holds its fixtures (Local). Never a mix.
func ExecuteRetrieveLinks(ctx context.Context, input RetrieveLinksInput, deps RetrieveLinksDeps) retrieval.Outcome[link.SectionLinks] {
	m := retrieval.NewMachine(SectionLinks)
	if !input.UseRemote {
		return retrieval.Settle(m, fixtureSections(deps.Fixtures))
	}

	log := attemptLog{
		recorder:   deps.Attempts,
		notifier:   deps.Notifier,
		generateID: deps.GenerateID,
		now:        deps.Now,
		section:    SectionLinks,
	}

	m.Begin()
	fetched := make([]link.SectionLinks, 0, len(link.Sections()))
	for _, section := range link.Sections() {
		locator := input.Locators[section]
		started := deps.Now()
		var items []link.CategorizedLink
		var err error
		if locator == "" {
			err = fmt.Errorf("no locator for section %s", section)
		} else {
			items, err = fetchGuarded(func() ([]link.CategorizedLink, error) {
				return deps.Fetcher.FetchLinks(ctx, locator)
			})
		}
		log.record(ctx, locator, started, len(items), err)

		if err != nil {
			m.Fail()
			log.fallback(ctx, locator, fmt.Errorf("section %s: %w", section, err))
			return retrieval.Settle(m, fixtureSections(deps.Fixtures))
		}
		fetched = append(fetched, link.SectionLinks{Section: section, Links: items})
	}

	m.Succeed()
	slog.Info("retrieval_event", "event", "remote_loaded", "section", SectionLinks, "sections", len(fetched))
	return retrieval.Settle(m, fetched)
}

func fixtureSections(f LinkFixtures) []link.SectionLinks {
	sections := link.Sections()
	out := make([]link.SectionLinks, 0, len(sections))
	for _, s := range sections {
		out = append(out, link.SectionLinks{Section: s, Links: f.Links(s)})
	}
	return out
}
