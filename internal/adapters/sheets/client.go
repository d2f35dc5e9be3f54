package sheets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"helphub/internal/adapters/http/perf"
	"helphub/internal/domain/link"
	"helphub/internal/domain/notice"
	"helphub/internal/domain/retrieval"
)

// Defaults for NewClient.
const (
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBodyBytes = 1 << 20
)

// ErrEmptyLocator is returned without issuing a request.
var ErrEmptyLocator = errors.New("locator cannot be empty")

// RetrievalError reports a response outside the 2xx range.
type RetrievalError struct {
	Status  int
	Locator string
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("failed to fetch data: %d", e.Status)
}

// Client fetches collections from a SheetDB-style JSON endpoint.
// A Client is safe for concurrent use.
type Client struct {
	http     *http.Client
	maxBody  int64
	recorder perf.Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each fetch. Zero disables the client-side bound and
// leaves only the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithRecorder records a perf.KindFetch entry for every fetch.
func WithRecorder(r perf.Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// NewClient creates a Client with DefaultTimeout and DefaultMaxBodyBytes.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchNotices retrieves notices from locator.
func (c *Client) FetchNotices(ctx context.Context, locator string) ([]notice.Notice, error) {
	return fetch[notice.Notice](ctx, c, locator)
}

// FetchLinks retrieves links from locator.
func (c *Client) FetchLinks(ctx context.Context, locator string) ([]link.CategorizedLink, error) {
	return fetch[link.CategorizedLink](ctx, c, locator)
}

// fetch issues exactly one GET and decodes the envelope.
// PRE: locator is non-empty
// POST: Returns the records in the order received, or one of ErrEmptyLocator,
// *RetrievalError, *DecodeError or a wrapped transport error
func fetch[T any](ctx context.Context, c *Client, locator string) ([]T, error) {
	if locator == "" {
		return nil, ErrEmptyLocator
	}

	start := time.Now()
	status := 0
	items, err := func() ([]T, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", redactURLError(err))
		}
		defer resp.Body.Close()
		status = resp.StatusCode

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			// Drain a little so the connection can be reused.
			io.CopyN(io.Discard, resp.Body, 4<<10)
			return nil, &RetrievalError{Status: resp.StatusCode, Locator: locator}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
		if err != nil {
			return nil, fmt.Errorf("read body from %s: %w", retrieval.RedactLocator(locator), redactURLError(err))
		}
		if int64(len(body)) > c.maxBody {
			return nil, &DecodeError{Reason: fmt.Sprintf("body exceeds %d bytes", c.maxBody)}
		}
		return Decode[T](body)
	}()

	c.observe(locator, status, start, err)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// redactURLError rewrites the URL a *url.Error prints, which otherwise carries
// the full locator with its query credentials.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = retrieval.RedactLocator(ue.URL)
	}
	return err
}

func (c *Client) observe(locator string, status int, start time.Time, err error) {
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	target := retrieval.RedactLocator(locator)
	if err != nil {
		slog.Warn("sheet_fetch_failed",
			"target", target,
			"status", status,
			"duration_ms", durationMs,
			"error", err,
		)
	} else {
		slog.Debug("sheet_fetch",
			"target", target,
			"status", status,
			"duration_ms", durationMs,
		)
	}
	if c.recorder != nil {
		c.recorder.Record(perf.Entry{
			Kind:       perf.KindFetch,
			Path:       target,
			StatusCode: status,
			Failed:     err != nil,
			DurationMs: durationMs,
			Timestamp:  start,
		})
	}
}

// SheetLocator returns the locator for a named sheet of the endpoint at base
// by setting its sheet query parameter. An empty sheet returns base as is.
func SheetLocator(base, sheet string) (string, error) {
	if sheet == "" {
		return base, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("sheet", sheet)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// StatusCode extracts the HTTP status from a RetrievalError, or 0.
func StatusCode(err error) int {
	var re *RetrievalError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}
