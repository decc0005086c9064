package persist

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nainya/applydesk/pkg/latex"
	"github.com/nainya/applydesk/pkg/localstore"
	"github.com/rs/zerolog"
)

const (
	letterheadKey = "prefs:letterhead"
	templatesKey  = "prefs:templates"
)

// Template is a reusable set of cover-letter framing fields
type Template struct {
	Name      string `json:"name"`
	Greeting  string `json:"greeting"`
	Closing   string `json:"closing"`
	Signature string `json:"signature"`
}

// Preferences stores user settings that apply to every document
type Preferences struct {
	slots  localstore.Slots
	logger zerolog.Logger
}

// NewPreferences creates a preferences store over slots
func NewPreferences(slots localstore.Slots, logger zerolog.Logger) *Preferences {
	return &Preferences{slots: slots, logger: logger}
}

// Letterhead returns the saved letterhead, or the zero value
func (p *Preferences) Letterhead() latex.Letterhead {
	var lh latex.Letterhead
	if !p.read(letterheadKey, &lh) {
		return latex.Letterhead{}
	}
	return lh
}

// SetLetterhead saves lh
func (p *Preferences) SetLetterhead(lh latex.Letterhead) error {
	return p.write(letterheadKey, lh)
}

// Templates returns the saved templates in insertion order
func (p *Preferences) Templates() []Template {
	var ts []Template
	if !p.read(templatesKey, &ts) {
		return nil
	}
	return ts
}

// Template looks up a saved template by name, ignoring case
func (p *Preferences) Template(name string) (Template, bool) {
	for _, t := range p.Templates() {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Template{}, false
}

// SaveTemplate adds t or replaces the template with the same name
func (p *Preferences) SaveTemplate(t Template) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("save template: name is required")
	}
	ts := p.Templates()
	for i := range ts {
		if strings.EqualFold(ts[i].Name, t.Name) {
			ts[i] = t
			return p.write(templatesKey, ts)
		}
	}
	return p.write(templatesKey, append(ts, t))
}

// DeleteTemplate removes the named template. Unknown names are ignored.
func (p *Preferences) DeleteTemplate(name string) error {
	ts := p.Templates()
	out := ts[:0]
	for _, t := range ts {
		if !strings.EqualFold(t.Name, name) {
			out = append(out, t)
		}
	}
	if len(out) == len(ts) {
		return nil
	}
	return p.write(templatesKey, out)
}

// read decodes key into v and reports success. Corrupt slots read as absent.
func (p *Preferences) read(key string, v any) bool {
	data, ok := p.slots.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		p.logger.Warn().Err(err).Str("slot", key).Msg("Ignoring unreadable preferences")
		return false
	}
	return true
}

func (p *Preferences) write(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := p.slots.Set(key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
