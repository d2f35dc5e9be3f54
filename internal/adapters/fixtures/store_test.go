package fixtures

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"helphub/internal/domain/content"
	"helphub/internal/domain/link"
	"helphub/internal/domain/notice"
)

// TestLoad_Bundled verifies the shipped datasets pass validation.
func TestLoad_Bundled(t *testing.T) {
	s, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if len(s.Notices()) == 0 {
		t.Error("expected bundled notices")
	}
	for _, section := range link.Sections() {
		if len(s.Links(section)) == 0 {
			t.Errorf("expected bundled links for %s", section)
		}
	}
	site := s.Site()
	if len(site.FAQ) == 0 || len(site.Steps) == 0 || len(site.Channels) == 0 {
		t.Errorf("site content incomplete: %+v", site)
	}
}

// TestStore_ReturnsCopies verifies a caller cannot change the defaults.
func TestStore_ReturnsCopies(t *testing.T) {
	s, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	n := s.Notices()
	original := n[0].Title
	n[0].Title = "mutated"
	if got := s.Notices()[0].Title; got != original {
		t.Errorf("notice fixture mutated: got %q, want %q", got, original)
	}

	l := s.Links(link.SectionSupport)
	l[0].URL = "mutated"
	if s.Links(link.SectionSupport)[0].URL == "mutated" {
		t.Error("link fixture mutated through returned slice")
	}

	site := s.Site()
	site.FAQ[0].Answer = "mutated"
	if s.Site().FAQ[0].Answer == "mutated" {
		t.Error("site fixture mutated through returned slice")
	}
}

func TestStore_UnknownSection(t *testing.T) {
	s, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if got := s.Links("bogus"); got != nil {
		t.Errorf("Links(bogus) = %v, want nil", got)
	}
}

func testFS() fstest.MapFS {
	linkJSON := `[{"title":"t","description":"d","url":"https://x","icon":"globe"}]`
	return fstest.MapFS{
		NoticesFile:               {Data: []byte(`[{"category":"Admission","title":"t","date":"d","description":"d","link":"l"}]`)},
		"official_portals.json":   {Data: []byte(linkJSON)},
		"academic_resources.json": {Data: []byte(linkJSON)},
		"examinations.json":       {Data: []byte(linkJSON)},
		"support.json":            {Data: []byte(linkJSON)},
		SiteFile:                  {Data: []byte(`{"faq":[{"question":"q","answer":"a"}]}`)},
	}
}

func TestLoadFS_Errors(t *testing.T) {
	if _, err := LoadFS(testFS()); err != nil {
		t.Fatalf("LoadFS(valid) unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		file    string
		data    string
		wantErr error
		wantMsg string
	}{
		{name: "invalid notice", file: NoticesFile, data: `[{"category":"Admission","title":"","description":"d"}]`, wantErr: notice.ErrEmptyTitle},
		{name: "invalid link", file: "support.json", data: `[{"title":"t","description":"d","url":""}]`, wantErr: link.ErrEmptyURL},
		{name: "invalid site", file: SiteFile, data: `{"steps":[{"number":2,"title":"t"}]}`, wantErr: content.ErrInvalidStep},
		{name: "unknown field", file: NoticesFile, data: `[{"headline":"x"}]`, wantMsg: "unknown field"},
		{name: "not json", file: "examinations.json", data: `nope`, wantMsg: "decode fixture examinations.json"},
		{name: "trailing data", file: SiteFile, data: `{} {}`, wantMsg: "trailing data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := testFS()
			fsys[tt.file] = &fstest.MapFile{Data: []byte(tt.data)}
			_, err := LoadFS(fsys)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadFS() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("LoadFS() error = %v, want it to contain %q", err, tt.wantMsg)
			}
		})
	}

	missing := testFS()
	delete(missing, "support.json")
	if _, err := LoadFS(missing); err == nil {
		t.Error("expected error for missing section file")
	}
}
