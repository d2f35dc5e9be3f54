package contact

import (
	"errors"
	"sort"
	"strings"
)

// MessagingBase is the click-to-chat endpoint messaging links point at.
const MessagingBase = "https://wa.me/"

// Default template names.
const (
	TemplateAssignment = "assignment"
	TemplateInquiry    = "inquiry"
	TemplateQuick      = "quick"
)

// Domain errors
var (
	ErrEmptyPhone       = errors.New("phone number must contain digits")
	ErrEmptyName        = errors.New("template name cannot be empty")
	ErrTemplateNotFound = errors.New("contact template not found")
)

// Template is a named pre-filled message sent to a phone number.
type Template struct {
	Name  string `yaml:"-" json:"name"`
	Phone string `yaml:"phone" json:"phone" validate:"required"`
	Text  string `yaml:"text" json:"text"`
}

// Validate checks that the Template can produce a link.
// PRE: Template fields may be empty
// POST: Returns nil if valid, error otherwise
func (t Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if digits(t.Phone) == "" {
		return ErrEmptyPhone
	}
	return nil
}

// URL returns the messaging link for this template.
func (t Template) URL() (string, error) {
	return MessagingURL(t.Phone, t.Text)
}

// MessagingURL builds a click-to-chat link for phone with text pre-filled.
// Anything that is not a digit is dropped from phone, so "+91 98765 43210"
// and "919876543210" give the same link. An empty text gives a bare link.
// PRE: phone contains at least one digit
// POST: Returns https://wa.me/<digits>?text=<escaped text>
func MessagingURL(phone, text string) (string, error) {
	number := digits(phone)
	if number == "" {
		return "", ErrEmptyPhone
	}
	u := MessagingBase + number
	if text != "" {
		u += "?text=" + EscapeComponent(text)
	}
	return u, nil
}

// EscapeComponent percent-encodes s the way browsers' encodeURIComponent
// does: letters, digits and -_.!~*'() are kept, every other byte of the
// UTF-8 encoding becomes %XX. Spaces become %20, never '+'.
func EscapeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if keepInComponent(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func keepInComponent(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Directory holds the named templates.
type Directory struct {
	templates map[string]Template
}

// NewDirectory validates and indexes templates by name. Names are case-insensitive.
func NewDirectory(templates []Template) (*Directory, error) {
	d := &Directory{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return nil, errors.Join(errors.New("template "+t.Name), err)
		}
		d.templates[strings.ToLower(t.Name)] = t
	}
	return d, nil
}

// Lookup finds a template by name.
func (d *Directory) Lookup(name string) (Template, error) {
	t, ok := d.templates[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Template{}, ErrTemplateNotFound
	}
	return t, nil
}

// Names returns every template name, sorted.
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.templates))
	for n := range d.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultTemplates are the messages the site has always offered.
func DefaultTemplates() []Template {
	return []Template{
		{Name: TemplateAssignment, Phone: "919876543210", Text: "Hi, I need help with my IGNOU assignment for [Subject]"},
		{Name: TemplateInquiry, Phone: "919145855703", Text: "Hi, I'd like to inquire about IGNOU services"},
		{Name: TemplateQuick, Phone: "919145855703", Text: "Hi, I need help with my IGNOU assignment"},
	}
}
