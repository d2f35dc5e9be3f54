package link

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
)

// Glyph names rendered by the icon sprite. Keys match the icon column of the
// link sheets; GlyphDefault is used for anything unrecognised.
type Glyph string

const (
	GlyphGlobe         Glyph = "globe"
	GlyphUsers         Glyph = "users"
	GlyphFile          Glyph = "file"
	GlyphFileText      Glyph = "file-text"
	GlyphAward         Glyph = "award"
	GlyphMapPin        Glyph = "map-pin"
	GlyphBookOpen      Glyph = "book-open"
	GlyphGraduationCap Glyph = "graduation-cap"
	GlyphBell          Glyph = "bell"
	GlyphCalendar      Glyph = "calendar"
	GlyphClock         Glyph = "clock"
	GlyphHelpCircle    Glyph = "help-circle"
	GlyphInfo          Glyph = "info"
	GlyphLink          Glyph = "link"
	GlyphMail          Glyph = "mail"
	GlyphMessageSquare Glyph = "message-square"
	GlyphPhone         Glyph = "phone"
	GlyphSettings      Glyph = "settings"
	GlyphUser          Glyph = "user"

	GlyphDefault = GlyphGlobe
)

// KnownGlyphs lists every glyph the sprite provides.
var KnownGlyphs = []Glyph{
	GlyphGlobe, GlyphUsers, GlyphFile, GlyphFileText, GlyphAward, GlyphMapPin,
	GlyphBookOpen, GlyphGraduationCap, GlyphBell, GlyphCalendar, GlyphClock,
	GlyphHelpCircle, GlyphInfo, GlyphLink, GlyphMail, GlyphMessageSquare,
	GlyphPhone, GlyphSettings, GlyphUser,
}

// glyphIndex is keyed by the folded, separator-free glyph name so that
// "fileText", "file-text" and "FILE_TEXT" resolve to the same glyph.
var glyphIndex = func() map[string]Glyph {
	m := make(map[string]Glyph, len(KnownGlyphs))
	for _, g := range KnownGlyphs {
		m[normalizeIcon(string(g))] = g
	}
	return m
}()

func normalizeIcon(name string) string {
	// A Caser carries state, so each call gets its own.
	name = cases.Fold().String(strings.TrimSpace(name))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(name)
}

// GlyphFor maps an icon name to a glyph. Never returns an empty glyph.
func GlyphFor(icon string) Glyph {
	if g, ok := glyphIndex[normalizeIcon(icon)]; ok {
		return g
	}
	return GlyphDefault
}

// Section identifies one of the link directories on the page.
type Section string

const (
	SectionOfficialPortals   Section = "official_portals"
	SectionAcademicResources Section = "academic_resources"
	SectionExaminations      Section = "examinations"
	SectionSupport           Section = "support"
)

type sectionInfo struct {
	title string
	sheet string
}

var sectionInfos = map[Section]sectionInfo{
	SectionOfficialPortals:   {title: "Official Portals", sheet: "OfficialPortals"},
	SectionAcademicResources: {title: "Academic Resources", sheet: "AcademicResources"},
	SectionExaminations:      {title: "Examinations", sheet: "Examinations"},
	SectionSupport:           {title: "Support", sheet: "Support"},
}

// Sections returns every section in display order.
func Sections() []Section {
	return []Section{SectionOfficialPortals, SectionAcademicResources, SectionExaminations, SectionSupport}
}

// Title is the heading shown above the section.
func (s Section) Title() string {
	return sectionInfos[s].title
}

// SheetName is the default remote sheet the section is read from.
func (s Section) SheetName() string {
	return sectionInfos[s].sheet
}

// Valid reports whether s is one of the known sections.
func (s Section) Valid() bool {
	_, ok := sectionInfos[s]
	return ok
}

// Domain errors
var (
	ErrEmptyTitle       = errors.New("link title cannot be empty")
	ErrEmptyDescription = errors.New("link description cannot be empty")
	ErrEmptyURL         = errors.New("link url cannot be empty")
)

// CategorizedLink is one entry in a link directory section.
type CategorizedLink struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Icon        string `json:"icon"`
}

// Validate checks a bundled link. Remote links are displayed as received.
// PRE: CategorizedLink struct is populated
// POST: Returns nil if valid, error otherwise
func (l CategorizedLink) Validate() error {
	if strings.TrimSpace(l.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(l.Description) == "" {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(l.URL) == "" {
		return ErrEmptyURL
	}
	return nil
}

// Glyph returns the glyph for this link's icon.
// INVARIANT: l is not mutated
func (l CategorizedLink) Glyph() Glyph {
	return GlyphFor(l.Icon)
}

// SectionLinks is the collection shown under one section heading.
type SectionLinks struct {
	Section Section           `json:"key"`
	Links   []CategorizedLink `json:"links"`
}

// Title is the section heading.
func (s SectionLinks) Title() string {
	return s.Section.Title()
}
