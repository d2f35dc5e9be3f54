//go:build browser

package web_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/playwright-community/playwright-go"

	"helphub/internal/adapters/fixtures"
	web "helphub/internal/adapters/http"
	"helphub/internal/adapters/sheets"
	"helphub/internal/domain/contact"
	"helphub/internal/domain/link"
)

// browserApp is the site running on a real listener with a headless browser
// pointed at it. failing makes the fake sheet endpoint answer 500.
type browserApp struct {
	BaseURL string
	Browser playwright.Browser
	failing atomic.Bool
}

func newBrowserApp(t *testing.T) *browserApp {
	t.Helper()
	b := &browserApp{}

	sheet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.failing.Load() {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch name := r.URL.Query().Get("sheet"); name {
		case "Notices":
			fmt.Fprint(w, `{"data":[{"category":"Examination","title":"Hall tickets are out","date":"June 10, 2025","description":"Download yours now.","link":"https://ignou.ac.in"}]}`)
		default:
			fmt.Fprintf(w, `{"data":[{"title":"%s from sheet","description":"d","url":"https://example.org","icon":"link"}]}`, name)
		}
	}))
	t.Cleanup(sheet.Close)

	store, err := fixtures.Load()
	if err != nil {
		t.Fatalf("fixtures: %v", err)
	}
	contacts, err := contact.NewDirectory(contact.DefaultTemplates())
	if err != nil {
		t.Fatalf("contacts: %v", err)
	}
	noticesLocator, _ := sheets.SheetLocator(sheet.URL, "Notices")
	linkLocators := make(map[link.Section]string)
	for _, s := range link.Sections() {
		linkLocators[s], _ = sheets.SheetLocator(sheet.URL, s.SheetName())
	}

	// The listener is created first so its origin can be trusted.
	srv := httptest.NewUnstartedServer(nil)
	host := srv.Listener.Addr().String()
	app, err := web.NewMux(web.Deps{
		Fixtures: store,
		Fetcher:  sheets.NewClient(),
		Contacts: contacts,
		Options: web.Options{
			NoticesLocator: noticesLocator,
			LinkLocators:   linkLocators,
			CookieKey:      []byte("0123456789abcdef0123456789abcdef"),
			CSRFKey:        []byte("fedcba9876543210fedcba9876543210"),
			TrustedOrigins: []string{host},
		},
	})
	if err != nil {
		t.Fatalf("NewMux: %v", err)
	}
	srv.Config.Handler = app
	srv.Start()
	t.Cleanup(func() {
		srv.Close()
		app.Close()
	})
	b.BaseURL = srv.URL

	pw, err := playwright.Run()
	if err != nil {
		t.Fatalf("failed to start Playwright: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("failed to launch browser: %v", err)
	}
	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
	})
	b.Browser = browser
	return b
}

func (b *browserApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := b.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	if _, err := page.Goto(b.BaseURL + "/"); err != nil {
		t.Fatalf("failed to open page: %v", err)
	}
	return page
}

func waitVisible(t *testing.T, page playwright.Page, selector string) playwright.Locator {
	t.Helper()
	loc := page.Locator(selector)
	if err := loc.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	}); err != nil {
		t.Fatalf("%s never became visible: %v", selector, err)
	}
	return loc
}

func TestBrowser_ToggleNoticesToSheet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	b := newBrowserApp(t)
	page := b.newPage(t)

	before, err := page.Locator("#notices article.notice-card").Count()
	if err != nil || before < 2 {
		t.Fatalf("expected the bundled notices, got %d (%v)", before, err)
	}

	if err := page.Locator("#notices form.source-toggle button").Click(); err != nil {
		t.Fatalf("click toggle: %v", err)
	}

	waitVisible(t, page, "#notices .toast--success")
	cards := page.Locator("#notices article.notice-card")
	if n, _ := cards.Count(); n != 1 {
		t.Fatalf("cards after toggle = %d, want 1", n)
	}
	badge, _ := cards.Locator(".badge").TextContent()
	if strings.TrimSpace(badge) != "Examination" {
		t.Errorf("badge = %q", badge)
	}
	label, _ := page.Locator("#notices .toggle-label").TextContent()
	if strings.TrimSpace(label) != "Using Google Sheet Data" {
		t.Errorf("toggle label = %q", label)
	}
	if u, _ := url.Parse(page.URL()); u.Fragment != "notices" {
		t.Errorf("landed on %s, want #notices", page.URL())
	}

	// The success toast dismisses itself.
	if err := page.Locator("#notices .toast").WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateDetached,
		Timeout: playwright.Float(6000),
	}); err != nil {
		t.Errorf("success toast did not dismiss: %v", err)
	}
}

func TestBrowser_SheetDownShowsWarning(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	b := newBrowserApp(t)
	b.failing.Store(true)
	page := b.newPage(t)

	if err := page.Locator("#links form.source-toggle button").Click(); err != nil {
		t.Fatalf("click toggle: %v", err)
	}

	waitVisible(t, page, "#links .toast--error")
	warning, _ := waitVisible(t, page, "#links .source-warning").TextContent()
	if !strings.Contains(warning, "Failed to load links") {
		t.Errorf("inline warning = %q", warning)
	}
	if n, _ := page.Locator("#links .link-section").Count(); n != len(link.Sections()) {
		t.Errorf("link sections = %d", n)
	}
	if n, _ := page.Locator("#links .link-title", playwright.PageLocatorOptions{HasText: "from sheet"}).Count(); n != 0 {
		t.Error("a failed attempt must not show any sheet links")
	}
}

func TestBrowser_ContactOpensMessaging(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	b := newBrowserApp(t)
	page := b.newPage(t)

	href, err := page.Locator(".sticky-whatsapp").GetAttribute("href")
	if err != nil {
		t.Fatalf("sticky link: %v", err)
	}
	resp, err := (&http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}).Get(b.BaseURL + href)
	if err != nil {
		t.Fatalf("follow contact link: %v", err)
	}
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, "https://wa.me/919876543210?text=") {
		t.Errorf("contact redirect = %q", loc)
	}
}
