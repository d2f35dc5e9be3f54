package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/google/uuid"

	"helphub/internal/adapters/http/middleware"
	"helphub/internal/adapters/http/perf"
	"helphub/internal/application/orchestrators"
	"helphub/internal/application/projections"
	"helphub/internal/domain/contact"
	"helphub/internal/domain/content"
	"helphub/internal/domain/link"
)

//go:embed templates/*.html static
var assets embed.FS

// SourceMode decides who picks a section's data source.
type SourceMode string

const (
	ModeToggle SourceMode = "toggle" // viewer decides, default
	ModeAuto   SourceMode = "auto"   // always fetch
	ModeLocal  SourceMode = "local"  // never fetch
)

// Fetcher retrieves both remote datasets. *sheets.Client implements it.
type Fetcher interface {
	orchestrators.NoticeFetcher
	orchestrators.LinkFetcher
}

// Fixtures is the bundled data. *fixtures.Store implements it.
type Fixtures interface {
	orchestrators.NoticeFixtures
	orchestrators.LinkFixtures
	Site() content.Site
}

// Pinger reports database health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options are the settings NewMux needs from configuration.
type Options struct {
	NoticesMode    SourceMode
	LinksMode      SourceMode
	NoticesLocator string
	LinkLocators   map[link.Section]string
	Diagnostics    bool
	Production     bool
	CookieKey      []byte // 32 bytes, signs the viewer cookie
	CSRFKey        []byte // 32 bytes
	TrustedOrigins []string
	RateLimit      int // per second per client; 0 disables
	SlowRequest    time.Duration
}

// Deps holds everything the handlers use. Attempts, Notifier, AttemptLog,
// Perf and DB are optional.
type Deps struct {
	Fixtures   Fixtures
	Fetcher    Fetcher
	Contacts   *contact.Directory
	Attempts   orchestrators.AttemptRecorder
	Notifier   orchestrators.FallbackNotifier
	AttemptLog projections.RetrievalAttemptStore
	Perf       *perf.Collector
	DB         Pinger
	Now        func() time.Time
	GenerateID func() string
	Options
}

// App is the site's HTTP handler.
type App struct {
	deps    Deps
	viewers *middleware.ViewerCookies
	page    *template.Template
	limiter *middleware.RateLimiter
	handler http.Handler
}

// NewMux wires HTTP handlers for the site.
// PRE: deps.Fixtures, deps.Fetcher and deps.Contacts are set
// POST: Returns a ready handler; Close releases its background sweeper
func NewMux(deps Deps) (*App, error) {
	if deps.Fixtures == nil || deps.Fetcher == nil || deps.Contacts == nil {
		return nil, errors.New("web: fixtures, fetcher and contacts are required")
	}
	if len(deps.CookieKey) != 32 || len(deps.CSRFKey) != 32 {
		return nil, errors.New("web: cookie and csrf keys must be 32 bytes")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.GenerateID == nil {
		deps.GenerateID = func() string { return uuid.New().String() }
	}
	if deps.NoticesMode == "" {
		deps.NoticesMode = ModeToggle
	}
	if deps.LinksMode == "" {
		deps.LinksMode = ModeToggle
	}

	page, err := parsePage()
	if err != nil {
		return nil, err
	}

	a := &App{
		deps:    deps,
		viewers: middleware.NewViewerCookies(deps.CookieKey, deps.Production),
		page:    page,
	}

	mux := http.NewServeMux()
	static, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, fmt.Errorf("web: static assets: %w", err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	a.registerRoutes(mux)

	// Listed inner to outer: Timing sees every request, including rejected ones.
	mws := []func(http.Handler) http.Handler{
		a.viewers.Middleware,
		middleware.CSRF(deps.CSRFKey, deps.Production, deps.TrustedOrigins),
		middleware.SecurityHeaders,
	}
	if deps.RateLimit > 0 {
		a.limiter = middleware.NewRateLimiter(deps.RateLimit, time.Second)
		mws = append(mws, middleware.RateLimit(a.limiter))
	}
	var rec perf.Recorder
	if deps.Perf != nil {
		rec = deps.Perf
	}
	mws = append(mws, middleware.Recover, middleware.Timing(rec, deps.SlowRequest))
	a.handler = middleware.Chain(mux, mws...)
	return a, nil
}

func (a *App) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", a.handleIndex)
	mux.HandleFunc("POST /notices/source", a.handleSetSource(orchestrators.SectionNotices))
	mux.HandleFunc("POST /links/source", a.handleSetSource(orchestrators.SectionLinks))
	mux.HandleFunc("GET /api/notices", a.handleAPINotices)
	mux.HandleFunc("GET /api/links", a.handleAPILinks)
	mux.HandleFunc("GET /notices.csv", a.handleNoticesCSV)
	mux.HandleFunc("GET /contact/{template}", a.handleContact)
	mux.HandleFunc("GET /healthz", a.handleHealth)

	if a.deps.Diagnostics {
		if a.deps.AttemptLog != nil {
			mux.HandleFunc("GET /api/diagnostics/retrievals", a.handleRetrievalDiagnostics)
		}
		if a.deps.Perf != nil {
			mux.HandleFunc("GET /api/diagnostics/perf", a.handlePerfSnapshot)
		}
	}
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Close stops the rate limiter's sweeper.
func (a *App) Close() {
	if a.limiter != nil {
		a.limiter.Stop()
	}
}
