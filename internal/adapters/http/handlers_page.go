package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/csrf"

	"helphub/internal/adapters/http/middleware"
	"helphub/internal/application/orchestrators"
	"helphub/internal/domain/content"
	"helphub/internal/domain/link"
	"helphub/internal/domain/notice"
	"helphub/internal/domain/retrieval"
)

// sectionView is what the page needs to draw a section's toggle and banner.
type sectionView struct {
	ID         string
	Toggleable bool // mode is toggle
	Requested  bool // remote asked for, by the viewer or by auto mode
	State      retrieval.State
	Source     retrieval.Source
	Banner     *retrieval.Banner
	CSRFField  template.HTML
}

// ToggleLabel follows the viewer's request, not the outcome: a failed
// remote attempt still reads "Using Google Sheet Data".
func (s sectionView) ToggleLabel() string {
	if s.Requested {
		return "Using Google Sheet Data"
	}
	return "Using Local Data"
}

// ShowFormatHelp is true while remote data is actually on screen.
func (s sectionView) ShowFormatHelp() bool {
	return s.Source == retrieval.SourceRemote
}

type noticesView struct {
	View  sectionView
	Items []notice.Notice
}

type linksView struct {
	View     sectionView
	Sections []link.SectionLinks
}

type pageData struct {
	Site    content.Site
	Notices noticesView
	Links   linksView
	Year    int
}

func parsePage() (*template.Template, error) {
	funcs := template.FuncMap{
		"renderMarkdown": renderMarkdown,
		"glyph":          func(icon string) link.Glyph { return link.GlyphFor(icon) },
		"contactHref":    func(name string) string { return "/contact/" + name },
		"summary":        func(n notice.Notice) string { return n.Summary(notice.DefaultSummaryRunes) },
	}
	tpl, err := template.New("layout.html").Funcs(funcs).ParseFS(assets, "templates/layout.html", "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}
	return tpl, nil
}

func viewOf[T any](r *http.Request, id string, mode SourceMode, remote bool, out retrieval.Outcome[T]) sectionView {
	return sectionView{
		ID:         id,
		Toggleable: mode == ModeToggle,
		Requested:  remote,
		State:      out.State,
		Source:     out.Source,
		Banner:     out.Banner,
		CSRFField:  csrf.TemplateField(r),
	}
}

// handleIndex renders the whole page. Each section runs its own retrieval;
// a failure in one never affects the other.
func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer := middleware.ViewerFrom(ctx)

	noticesRemote := wantsRemote(a.deps.NoticesMode, viewer.NoticesRemote)
	linksRemote := wantsRemote(a.deps.LinksMode, viewer.LinksRemote)
	notices := a.notices(ctx, noticesRemote)
	links := a.links(ctx, linksRemote)

	data := pageData{
		Site: a.deps.Fixtures.Site(),
		Notices: noticesView{
			View:  viewOf(r, orchestrators.SectionNotices, a.deps.NoticesMode, noticesRemote, notices),
			Items: notices.Items,
		},
		Links: linksView{
			View:     viewOf(r, orchestrators.SectionLinks, a.deps.LinksMode, linksRemote, links),
			Sections: links.Items,
		},
		Year: a.deps.Now().Year(),
	}

	var buf bytes.Buffer
	if err := a.page.Execute(&buf, data); err != nil {
		internalError(w, fmt.Errorf("render index: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	buf.WriteTo(w)
}
