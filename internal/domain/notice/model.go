package notice

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Notice categories recognised by the notices board.
const (
	CategoryAdmission   = "Admission"
	CategoryExamination = "Examination"
	CategoryAssignment  = "Assignment"
	CategoryResults     = "Results"
)

// ValidCategories lists the categories that carry their own badge style.
var ValidCategories = []string{CategoryAdmission, CategoryExamination, CategoryAssignment, CategoryResults}

// Style is the visual treatment of a category badge.
type Style struct {
	Key        string // stable key used as a CSS modifier (badge--<Key>)
	Background string // hex
	Foreground string // hex
}

// Badge styles. StyleDefault covers Results and every unrecognised category.
var (
	StyleAdmission   = Style{Key: "admission", Background: "#DBEAFE", Foreground: "#1D4ED8"}
	StyleExamination = Style{Key: "examination", Background: "#FEF9C3", Foreground: "#A16207"}
	StyleAssignment  = Style{Key: "assignment", Background: "#DCFCE7", Foreground: "#15803D"}
	StyleDefault     = Style{Key: "default", Background: "#F3E8FF", Foreground: "#7E22CE"}
)

var categoryStyles = map[string]Style{
	strings.ToLower(CategoryAdmission):   StyleAdmission,
	strings.ToLower(CategoryExamination): StyleExamination,
	strings.ToLower(CategoryAssignment):  StyleAssignment,
}

// DefaultSummaryRunes is the card description length before truncation.
const DefaultSummaryRunes = 140

// Domain errors
var (
	ErrEmptyTitle       = errors.New("notice title cannot be empty")
	ErrEmptyDescription = errors.New("notice description cannot be empty")
)

// Notice is a single announcement shown on the notices board.
// Field names follow the sheet column headers so remote rows decode directly.
type Notice struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Date        string `json:"date"` // free text, e.g. "June 1, 2025"
	Description string `json:"description"`
	Link        string `json:"link"`
}

// Validate checks the fields a bundled notice must carry.
// Remote notices are displayed as received and are not validated.
// PRE: Notice struct is populated
// POST: Returns nil if valid, error otherwise
func (n Notice) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(n.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

// StyleFor returns the badge style for a category. Matching ignores case
// and surrounding space; anything unrecognised gets StyleDefault.
func StyleFor(category string) Style {
	if s, ok := categoryStyles[strings.ToLower(strings.TrimSpace(category))]; ok {
		return s
	}
	return StyleDefault
}

// Style returns the badge style for this notice's category.
// INVARIANT: n is not mutated
func (n Notice) Style() Style {
	return StyleFor(n.Category)
}

// Summary returns the description cut to at most max runes, with an
// ellipsis when it was shortened. max <= 0 returns the description unchanged.
func (n Notice) Summary(max int) string {
	return Truncate(n.Description, max)
}

// Truncate shortens s to at most max runes on a word boundary where one is
// close enough, appending "…" when anything was removed.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:max])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
