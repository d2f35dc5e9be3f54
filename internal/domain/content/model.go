package content

import (
	"errors"
	"strconv"
	"strings"
)

// Tone names the colour pair used by a tile.
type Tone string

const (
	ToneBlue   Tone = "blue"
	ToneGreen  Tone = "green"
	ToneYellow Tone = "yellow"
	TonePurple Tone = "purple"
)

// Channel kinds shown on the contact cards.
const (
	ChannelMessaging = "messaging"
	ChannelEmail     = "email"
	ChannelPhone     = "phone"
)

// Domain errors
var (
	ErrEmptyQuestion    = errors.New("faq question cannot be empty")
	ErrEmptyAnswer      = errors.New("faq answer cannot be empty")
	ErrEmptyText        = errors.New("quick access text cannot be empty")
	ErrNoTarget         = errors.New("quick access item needs an href or a contact template")
	ErrBothTargets      = errors.New("quick access item cannot have both an href and a contact template")
	ErrEmptyTitle       = errors.New("title cannot be empty")
	ErrInvalidStep      = errors.New("steps must be numbered consecutively from 1")
	ErrInvalidChannel   = errors.New("channel kind must be one of: messaging, email, phone")
	ErrEmptyChannelHref = errors.New("channel href or contact template is required")
)

// FAQItem is a question with a Markdown answer.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Validate checks that the FAQItem has valid data.
func (f FAQItem) Validate() error {
	if strings.TrimSpace(f.Question) == "" {
		return ErrEmptyQuestion
	}
	if strings.TrimSpace(f.Answer) == "" {
		return ErrEmptyAnswer
	}
	return nil
}

// QuickAccessItem is one tile in the quick access strip. A tile either opens
// an external page (Href) or a messaging link (Contact names a template).
type QuickAccessItem struct {
	Text    string `json:"text"`
	Href    string `json:"href,omitempty"`
	Contact string `json:"contact,omitempty"`
	Icon    string `json:"icon"`
	Tone    Tone   `json:"tone"`
}

// Validate checks that the QuickAccessItem has exactly one target.
func (q QuickAccessItem) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return ErrEmptyText
	}
	if q.Href == "" && q.Contact == "" {
		return ErrNoTarget
	}
	if q.Href != "" && q.Contact != "" {
		return ErrBothTargets
	}
	return nil
}

// Feature is a selling point on the assignment help section.
type Feature struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Step is one numbered step of the assignment help process.
type Step struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Channel is a contact card.
type Channel struct {
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Label       string `json:"label"`
	Href        string `json:"href,omitempty"`
	Contact     string `json:"contact,omitempty"`
}

// Validate checks that the Channel has valid data.
func (c Channel) Validate() error {
	switch c.Kind {
	case ChannelMessaging, ChannelEmail, ChannelPhone:
	default:
		return ErrInvalidChannel
	}
	if strings.TrimSpace(c.Title) == "" {
		return ErrEmptyTitle
	}
	if c.Href == "" && c.Contact == "" {
		return ErrEmptyChannelHref
	}
	return nil
}

// Site is the static content around the two retrieved sections.
type Site struct {
	FAQ         []FAQItem         `json:"faq"`
	QuickAccess []QuickAccessItem `json:"quick_access"`
	Features    []Feature         `json:"features"`
	Steps       []Step            `json:"steps"`
	Channels    []Channel         `json:"channels"`
}

// Validate checks every entry. Steps must be numbered from 1 in order.
// PRE: Site is populated from bundled data
// POST: Returns the first problem found, wrapped with its location
func (s Site) Validate() error {
	for i, f := range s.FAQ {
		if err := f.Validate(); err != nil {
			return indexed("faq", i, err)
		}
	}
	for i, q := range s.QuickAccess {
		if err := q.Validate(); err != nil {
			return indexed("quick_access", i, err)
		}
	}
	for i, f := range s.Features {
		if strings.TrimSpace(f.Title) == "" {
			return indexed("features", i, ErrEmptyTitle)
		}
	}
	for i, st := range s.Steps {
		if st.Number != i+1 {
			return indexed("steps", i, ErrInvalidStep)
		}
		if strings.TrimSpace(st.Title) == "" {
			return indexed("steps", i, ErrEmptyTitle)
		}
	}
	for i, c := range s.Channels {
		if err := c.Validate(); err != nil {
			return indexed("channels", i, err)
		}
	}
	return nil
}

// ContactTemplates returns every contact template name the content refers to.
func (s Site) ContactTemplates() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, q := range s.QuickAccess {
		add(q.Contact)
	}
	for _, c := range s.Channels {
		add(c.Contact)
	}
	return names
}

// IndexError locates a validation failure inside a content list.
type IndexError struct {
	List  string
	Index int
	Err   error
}

func (e *IndexError) Error() string {
	return e.List + "[" + strconv.Itoa(e.Index) + "]: " + e.Err.Error()
}

func (e *IndexError) Unwrap() error { return e.Err }

func indexed(list string, i int, err error) error {
	return &IndexError{List: list, Index: i, Err: err}
}
