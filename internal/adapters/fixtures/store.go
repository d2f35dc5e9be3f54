package fixtures

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"slices"

	"helphub/internal/domain/content"
	"helphub/internal/domain/link"
	"helphub/internal/domain/notice"
)

//go:embed data/*.json
var bundled embed.FS

// Dataset file names under data/.
const (
	NoticesFile = "notices.json"
	SiteFile    = "site.json"
)

var sectionFiles = map[link.Section]string{
	link.SectionOfficialPortals:   "official_portals.json",
	link.SectionAcademicResources: "academic_resources.json",
	link.SectionExaminations:      "examinations.json",
	link.SectionSupport:           "support.json",
}

// Store holds the bundled default datasets. Reads return copies, so the
// defaults cannot be changed by a caller.
type Store struct {
	notices []notice.Notice
	links   map[link.Section][]link.CategorizedLink
	site    content.Site
}

// Load reads and validates the datasets compiled into the binary.
func Load() (*Store, error) {
	sub, err := fs.Sub(bundled, "data")
	if err != nil {
		return nil, fmt.Errorf("open bundled fixtures: %w", err)
	}
	return LoadFS(sub)
}

// LoadFS reads and validates the datasets from fsys.
// PRE: fsys holds notices.json, site.json and one file per link section
// POST: Returns a Store whose every record passed validation, or the first error
func LoadFS(fsys fs.FS) (*Store, error) {
	s := &Store{links: make(map[link.Section][]link.CategorizedLink, len(sectionFiles))}

	if err := decodeFile(fsys, NoticesFile, &s.notices); err != nil {
		return nil, err
	}
	for i, n := range s.notices {
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", NoticesFile, i, err)
		}
	}

	for _, section := range link.Sections() {
		name := sectionFiles[section]
		var links []link.CategorizedLink
		if err := decodeFile(fsys, name, &links); err != nil {
			return nil, err
		}
		for i, l := range links {
			if err := l.Validate(); err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
			}
		}
		s.links[section] = links
	}

	if err := decodeFile(fsys, SiteFile, &s.site); err != nil {
		return nil, err
	}
	if err := s.site.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", SiteFile, err)
	}
	return s, nil
}

// decodeFile rejects unknown fields and trailing data.
func decodeFile(fsys fs.FS, name string, v any) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read fixture %s: %w", name, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode fixture %s: %w", name, err)
	}
	if dec.More() {
		return fmt.Errorf("decode fixture %s: trailing data", name)
	}
	return nil
}

// Notices returns a copy of the default notices.
func (s *Store) Notices() []notice.Notice {
	return slices.Clone(s.notices)
}

// Links returns a copy of the default links for section.
// An unknown section returns nil.
func (s *Store) Links(section link.Section) []link.CategorizedLink {
	return slices.Clone(s.links[section])
}

// Site returns a copy of the static page content.
func (s *Store) Site() content.Site {
	return content.Site{
		FAQ:         slices.Clone(s.site.FAQ),
		QuickAccess: slices.Clone(s.site.QuickAccess),
		Features:    slices.Clone(s.site.Features),
		Steps:       slices.Clone(s.site.Steps),
		Channels:    slices.Clone(s.site.Channels),
	}
}
