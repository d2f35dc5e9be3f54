package web

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"helphub/internal/adapters/http/middleware"
	"helphub/internal/application/orchestrators"
	"helphub/internal/domain/link"
	"helphub/internal/domain/notice"
	"helphub/internal/domain/retrieval"
)

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set), preventing XSS.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func isJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// wantsRemote applies the section's mode to the viewer's toggle.
func wantsRemote(mode SourceMode, toggled bool) bool {
	switch mode {
	case ModeAuto:
		return true
	case ModeLocal:
		return false
	default:
		return toggled
	}
}

func (a *App) modeFor(section string) SourceMode {
	if section == orchestrators.SectionLinks {
		return a.deps.LinksMode
	}
	return a.deps.NoticesMode
}

// requested reports whether the viewer asked for remote data for section.
func requested(v middleware.Viewer, section string) bool {
	if section == orchestrators.SectionLinks {
		return v.LinksRemote
	}
	return v.NoticesRemote
}

// notices runs one retrieval for the notices section. The fetch is bound to
// ctx, so a client that goes away cancels its own attempt.
func (a *App) notices(ctx context.Context, remote bool) retrieval.Outcome[notice.Notice] {
	return orchestrators.ExecuteRetrieveNotices(ctx,
		orchestrators.RetrieveInput{UseRemote: remote, Locator: a.deps.NoticesLocator},
		orchestrators.RetrieveNoticesDeps{
			Fetcher:    a.deps.Fetcher,
			Fixtures:   a.deps.Fixtures,
			Attempts:   a.deps.Attempts,
			Notifier:   a.deps.Notifier,
			GenerateID: a.deps.GenerateID,
			Now:        a.deps.Now,
		})
}

// links runs one all-or-nothing retrieval for every link section.
func (a *App) links(ctx context.Context, remote bool) retrieval.Outcome[link.SectionLinks] {
	return orchestrators.ExecuteRetrieveLinks(ctx,
		orchestrators.RetrieveLinksInput{UseRemote: remote, Locators: a.deps.LinkLocators},
		orchestrators.RetrieveLinksDeps{
			Fetcher:    a.deps.Fetcher,
			Fixtures:   a.deps.Fixtures,
			Attempts:   a.deps.Attempts,
			Notifier:   a.deps.Notifier,
			GenerateID: a.deps.GenerateID,
			Now:        a.deps.Now,
		})
}
