package retrieval

import (
	"errors"
	"net/url"
	"time"
)

// State is the retrieval state of one display section.
type State string

const (
	StateLocal        State = "local"         // fixtures shown
	StateLoading      State = "loading"       // remote fetch in flight
	StateRemoteActive State = "remote_active" // fetched collection shown
)

// Source names the dataset a section is currently showing.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// BannerKind selects the banner colour.
type BannerKind string

const (
	BannerSuccess BannerKind = "success"
	BannerError   BannerKind = "error"
)

// Banner display durations.
const (
	SuccessBannerDuration = 3 * time.Second
	ErrorBannerDuration   = 5 * time.Second
)

// Banner is the transient status shown after a remote attempt.
type Banner struct {
	Kind        BannerKind    `json:"kind"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Duration    time.Duration `json:"-"`
	// Inline is the persistent warning text shown under the toggle on failure.
	Inline string `json:"inline,omitempty"`
}

// DurationMs is the banner lifetime in milliseconds, for templates and JSON.
func (b Banner) DurationMs() int64 {
	return b.Duration.Milliseconds()
}

// Domain errors
var (
	ErrInvalidTransition = errors.New("invalid retrieval state transition")
)

// Machine tracks the state of one section through a single retrieval.
// The zero value is in StateLocal.
type Machine struct {
	subject string
	state   State
	banner  *Banner
}

// NewMachine creates a machine in StateLocal. subject is the plural noun used
// in banner text, e.g. "notices" or "links".
func NewMachine(subject string) *Machine {
	return &Machine{subject: subject, state: StateLocal}
}

// State returns the current state.
func (m *Machine) State() State {
	if m.state == "" {
		return StateLocal
	}
	return m.state
}

// Banner returns the banner to show, or nil.
func (m *Machine) Banner() *Banner {
	return m.banner
}

// Source returns which dataset the section shows in its current state.
// Loading keeps showing whatever was there before, which is always the
// fixtures on a fresh render.
func (m *Machine) Source() Source {
	if m.State() == StateRemoteActive {
		return SourceRemote
	}
	return SourceLocal
}

// Begin starts a remote attempt.
// PRE: state is Local or RemoteActive
// POST: state is Loading, banner cleared
func (m *Machine) Begin() error {
	switch m.State() {
	case StateLocal, StateRemoteActive:
		m.state = StateLoading
		m.banner = nil
		return nil
	default:
		return ErrInvalidTransition
	}
}

// Succeed completes a remote attempt with a fetched collection.
// PRE: state is Loading
// POST: state is RemoteActive, success banner set
func (m *Machine) Succeed() error {
	if m.State() != StateLoading {
		return ErrInvalidTransition
	}
	m.state = StateRemoteActive
	m.banner = &Banner{
		Kind:        BannerSuccess,
		Title:       "Success!",
		Description: "Latest " + m.subject + " loaded from Google Sheets",
		Duration:    SuccessBannerDuration,
	}
	return nil
}

// Fail completes a remote attempt that could not be used.
// PRE: state is Loading
// POST: state is Local, error banner set
func (m *Machine) Fail() error {
	if m.State() != StateLoading {
		return ErrInvalidTransition
	}
	m.state = StateLocal
	m.banner = &Banner{
		Kind:        BannerError,
		Title:       "Error loading " + m.bannerNoun(),
		Description: "Failed to load from Google Sheets. Using local data instead.",
		Duration:    ErrorBannerDuration,
		Inline:      "Failed to load " + m.subject + " from Google Sheets. Using local data instead.",
	}
	return nil
}

// UseLocal switches the section back to fixtures without a banner.
// POST: state is Local, banner cleared
func (m *Machine) UseLocal() {
	m.state = StateLocal
	m.banner = nil
}

func (m *Machine) bannerNoun() string {
	if m.subject == "notices" || m.subject == "" {
		return "data"
	}
	return m.subject
}

// Outcome is what a display section renders after retrieval: the collection,
// the state it ended in and the banner to show.
type Outcome[T any] struct {
	State  State
	Source Source
	Items  []T
	Banner *Banner
}

// Settle captures the machine's final state together with the collection.
func Settle[T any](m *Machine, items []T) Outcome[T] {
	return Outcome[T]{
		State:  m.State(),
		Source: m.Source(),
		Items:  items,
		Banner: m.Banner(),
	}
}

// Attempt outcomes recorded in the diagnostics log.
const (
	AttemptSucceeded = "succeeded"
	AttemptFailed    = "failed"
)

// Attempt is one remote retrieval recorded for diagnostics.
type Attempt struct {
	ID         string
	Section    string // "notices" or "links"
	Locator    string
	Outcome    string // succeeded, failed
	StatusCode int    // HTTP status when known, 0 otherwise
	Error      string
	ItemCount  int
	DurationMs float64
	StartedAt  time.Time
}

// Validate checks an attempt before it is stored.
// PRE: Attempt struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Attempt) Validate() error {
	if a.ID == "" {
		return errors.New("attempt ID is required")
	}
	if a.Section == "" {
		return errors.New("attempt section is required")
	}
	if a.Outcome != AttemptSucceeded && a.Outcome != AttemptFailed {
		return errors.New("attempt outcome must be one of: succeeded, failed")
	}
	if a.StartedAt.IsZero() {
		return errors.New("attempt started_at must be set")
	}
	return nil
}

// Succeeded reports whether the attempt produced a usable collection.
func (a Attempt) Succeeded() bool {
	return a.Outcome == AttemptSucceeded
}

// RedactLocator names a locator by host, path and sheet so it can be logged
// and stored. Other query parameters may carry API keys and are dropped.
func RedactLocator(locator string) string {
	u, err := url.Parse(locator)
	if err != nil || u.Host == "" {
		return "invalid-locator"
	}
	t := u.Host + u.Path
	if sheet := u.Query().Get("sheet"); sheet != "" {
		t += "?sheet=" + sheet
	}
	return t
}
