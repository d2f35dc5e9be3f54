package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"helphub/internal/adapters/http/middleware"
	"helphub/internal/application/orchestrators"
	"helphub/internal/application/projections"
	"helphub/internal/domain/contact"
	"helphub/internal/domain/export"
	"helphub/internal/domain/link"
	"helphub/internal/domain/notice"
	"helphub/internal/domain/retrieval"
)

// defaultPerfWindow is the span the perf endpoint summarises by default.
const defaultPerfWindow = 15 * time.Minute

var (
	errBadSource = errors.New("source must be remote or local")
	errBadRemote = errors.New("remote must be true or false")
)

type bannerJSON struct {
	Kind        retrieval.BannerKind `json:"kind"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Inline      string               `json:"inline,omitempty"`
	DurationMs  int64                `json:"duration_ms"`
}

func bannerOf(b *retrieval.Banner) *bannerJSON {
	if b == nil {
		return nil
	}
	return &bannerJSON{
		Kind:        b.Kind,
		Title:       b.Title,
		Description: b.Description,
		Inline:      b.Inline,
		DurationMs:  b.DurationMs(),
	}
}

type noticesResponse struct {
	State   retrieval.State  `json:"state"`
	Source  retrieval.Source `json:"source"`
	Banner  *bannerJSON      `json:"banner"`
	Notices []notice.Notice  `json:"notices"`
}

type linkJSON struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	Icon        string     `json:"icon"`
	Glyph       link.Glyph `json:"glyph"`
}

type linkSectionJSON struct {
	Key   link.Section `json:"key"`
	Title string       `json:"title"`
	Links []linkJSON   `json:"links"`
}

type linksResponse struct {
	State    retrieval.State   `json:"state"`
	Source   retrieval.Source  `json:"source"`
	Banner   *bannerJSON       `json:"banner"`
	Sections []linkSectionJSON `json:"sections"`
}

// writeJSON marshals v and sends it through writeCached.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		internalError(w, fmt.Errorf("encode response: %w", err))
		return
	}
	writeCached(w, r, "application/json", append(body, '\n'))
}

// remoteFor resolves whether this request fetches remotely: the section's
// mode first, then ?source=, then the viewer's toggle.
func (a *App) remoteFor(r *http.Request, section string) (bool, error) {
	toggled := requested(middleware.ViewerFrom(r.Context()), section)
	switch r.URL.Query().Get("source") {
	case "":
	case "remote":
		toggled = true
	case "local":
		toggled = false
	default:
		return false, errBadSource
	}
	return wantsRemote(a.modeFor(section), toggled), nil
}

func (a *App) handleAPINotices(w http.ResponseWriter, r *http.Request) {
	remote, err := a.remoteFor(r, orchestrators.SectionNotices)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.writeNotices(w, r, remote)
}

func (a *App) writeNotices(w http.ResponseWriter, r *http.Request, remote bool) {
	out := a.notices(r.Context(), remote)
	items := out.Items
	if items == nil {
		items = []notice.Notice{}
	}
	writeJSON(w, r, noticesResponse{
		State:   out.State,
		Source:  out.Source,
		Banner:  bannerOf(out.Banner),
		Notices: items,
	})
}

func (a *App) handleAPILinks(w http.ResponseWriter, r *http.Request) {
	remote, err := a.remoteFor(r, orchestrators.SectionLinks)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.writeLinks(w, r, remote)
}

func (a *App) writeLinks(w http.ResponseWriter, r *http.Request, remote bool) {
	out := a.links(r.Context(), remote)
	sections := make([]linkSectionJSON, 0, len(out.Items))
	for _, s := range out.Items {
		links := make([]linkJSON, 0, len(s.Links))
		for _, l := range s.Links {
			links = append(links, linkJSON{
				Title:       l.Title,
				Description: l.Description,
				URL:         l.URL,
				Icon:        l.Icon,
				Glyph:       l.Glyph(),
			})
		}
		sections = append(sections, linkSectionJSON{Key: s.Section, Title: s.Title(), Links: links})
	}
	writeJSON(w, r, linksResponse{
		State:    out.State,
		Source:   out.Source,
		Banner:   bannerOf(out.Banner),
		Sections: sections,
	})
}

// handleNoticesCSV exports the notices the viewer currently sees.
func (a *App) handleNoticesCSV(w http.ResponseWriter, r *http.Request) {
	remote, err := a.remoteFor(r, orchestrators.SectionNotices)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out := a.notices(r.Context(), remote)

	var buf bytes.Buffer
	if err := export.NoticesCSV(&buf, out.Items); err != nil {
		internalError(w, fmt.Errorf("export notices: %w", err))
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.NoticesFilename+`"`)
	writeCached(w, r, "text/csv; charset=utf-8", buf.Bytes())
}

// parseRemote reads the requested setting from a JSON body or a form.
func parseRemote(r *http.Request) (bool, error) {
	if isJSONRequest(r) {
		var body struct {
			Remote *bool `json:"remote"`
		}
		if err := strictDecode(r, &body); err != nil || body.Remote == nil {
			return false, errBadRemote
		}
		return *body.Remote, nil
	}
	switch strings.ToLower(r.PostFormValue("remote")) {
	case "true", "1", "on":
		return true, nil
	case "false", "0", "off":
		return false, nil
	default:
		return false, errBadRemote
	}
}

// handleSetSource stores the viewer's toggle for section. Forms are sent back
// to the section; JSON callers get the section as it now renders.
func (a *App) handleSetSource(section string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.modeFor(section) != ModeToggle {
			http.Error(w, "source is fixed by configuration", http.StatusConflict)
			return
		}
		remote, err := parseRemote(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		v := middleware.ViewerFrom(r.Context())
		if section == orchestrators.SectionLinks {
			v.LinksRemote = remote
		} else {
			v.NoticesRemote = remote
		}
		if err := a.viewers.Write(w, v); err != nil {
			internalError(w, fmt.Errorf("write viewer cookie: %w", err))
			return
		}
		slog.Info("source_event", "event", "toggled", "section", section, "remote", remote)

		if !isJSONRequest(r) {
			http.Redirect(w, r, "/#"+section, http.StatusSeeOther)
			return
		}
		r = r.WithContext(middleware.ContextWithViewer(r.Context(), v))
		if section == orchestrators.SectionLinks {
			a.writeLinks(w, r, remote)
			return
		}
		a.writeNotices(w, r, remote)
	}
}

// handleContact is the one place a messaging link is opened from.
func (a *App) handleContact(w http.ResponseWriter, r *http.Request) {
	t, err := a.deps.Contacts.Lookup(r.PathValue("template"))
	if errors.Is(err, contact.ErrTemplateNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	target, err := t.URL()
	if err != nil {
		internalError(w, fmt.Errorf("contact %s: %w", t.Name, err))
		return
	}
	slog.Info("contact_event", "event", "opened", "template", t.Name)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.deps.DB.PingContext(ctx); err != nil {
			slog.Error("health_check_failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte("ok\n"))
}

func (a *App) handleRetrievalDiagnostics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var query projections.GetRetrievalDiagnosticsQuery
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		query.Limit = n
	}
	if v := q.Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			http.Error(w, "window must be a positive duration", http.StatusBadRequest)
			return
		}
		query.Window = d
	}

	result, err := projections.QueryGetRetrievalDiagnostics(r.Context(), query, projections.GetRetrievalDiagnosticsDeps{
		Store: a.deps.AttemptLog,
		Now:   a.deps.Now,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, r, result)
}

func (a *App) handlePerfSnapshot(w http.ResponseWriter, r *http.Request) {
	window := defaultPerfWindow
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			http.Error(w, "window must be a positive duration", http.StatusBadRequest)
			return
		}
		window = d
	}
	top := 10
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			http.Error(w, "top must be between 1 and 100", http.StatusBadRequest)
			return
		}
		top = n
	}
	writeJSON(w, r, a.deps.Perf.Snapshot(a.deps.Now().Add(-window), top))
}
