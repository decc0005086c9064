// ABOUTME: Live editable document owned by an editor session
// ABOUTME: Single-field atomic mutation plus ordered body paragraph operations

package content

import (
	"fmt"
	"strconv"
	"strings"
)

// Document is the mutable content model of one open editor. It is not safe
// for concurrent use; the owning session serializes access.
type Document struct {
	schema Schema
	fields map[string]string
	body   []string
}

// NewDocument creates a blank document of the given kind
func NewDocument(kind Kind) (*Document, error) {
	c, err := Empty(kind)
	if err != nil {
		return nil, err
	}
	return FromContent(c)
}

// FromContent creates a document initialised from a content value
func FromContent(c Content) (*Document, error) {
	s, err := SchemaFor(c.Kind)
	if err != nil {
		return nil, err
	}
	d := &Document{schema: s}
	d.load(c)
	return d, nil
}

// Kind returns the document kind
func (d *Document) Kind() Kind {
	return d.schema.Kind
}

// Schema returns the document schema
func (d *Document) Schema() Schema {
	return d.schema
}

// Field returns a scalar field value
func (d *Document) Field(name string) (string, bool) {
	v, ok := d.fields[name]
	return v, ok
}

// Body returns a copy of the body paragraphs
func (d *Document) Body() []string {
	out := make([]string, len(d.body))
	copy(out, d.body)
	return out
}

// SetField replaces one scalar field value
func (d *Document) SetField(name, value string) error {
	if !d.schema.Has(name) {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	d.fields[name] = value
	return nil
}

// SetBody replaces all body paragraphs
func (d *Document) SetBody(paragraphs []string) {
	d.body = make([]string, len(paragraphs))
	copy(d.body, paragraphs)
}

// SetParagraph replaces the text of one body paragraph
func (d *Document) SetParagraph(at int, text string) error {
	if at < 0 || at >= len(d.body) {
		return ErrParagraphIndex
	}
	d.body[at] = text
	return nil
}

// InsertParagraph inserts a paragraph before position at (at == len appends)
func (d *Document) InsertParagraph(at int, text string) error {
	if at < 0 || at > len(d.body) {
		return ErrParagraphIndex
	}
	d.body = append(d.body, "")
	copy(d.body[at+1:], d.body[at:])
	d.body[at] = text
	return nil
}

// RemoveParagraph deletes the paragraph at position at
func (d *Document) RemoveParagraph(at int) error {
	if at < 0 || at >= len(d.body) {
		return ErrParagraphIndex
	}
	d.body = append(d.body[:at], d.body[at+1:]...)
	return nil
}

// MoveParagraph moves the paragraph at from so that it ends up at index to
func (d *Document) MoveParagraph(from, to int) error {
	if from < 0 || from >= len(d.body) || to < 0 || to >= len(d.body) {
		return ErrParagraphIndex
	}
	if from == to {
		return nil
	}
	p := d.body[from]
	if from < to {
		copy(d.body[from:to], d.body[from+1:to+1])
	} else {
		copy(d.body[to+1:from+1], d.body[to:from])
	}
	d.body[to] = p
	return nil
}

// Text returns the text addressed by ref: either a scalar field name or
// "<body>.N" for a paragraph (the generic "body.N" form is always accepted).
func (d *Document) Text(ref string) (string, error) {
	if idx, ok := d.paragraphRef(ref); ok {
		if idx < 0 || idx >= len(d.body) {
			return "", ErrParagraphIndex
		}
		return d.body[idx], nil
	}
	v, ok := d.fields[ref]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, ref)
	}
	return v, nil
}

// SetText replaces the text addressed by ref
func (d *Document) SetText(ref, value string) error {
	if idx, ok := d.paragraphRef(ref); ok {
		return d.SetParagraph(idx, value)
	}
	return d.SetField(ref, value)
}

// Snapshot returns a deep copy of the current state
func (d *Document) Snapshot() Content {
	c := Content{Kind: d.schema.Kind, Fields: make(map[string]string, len(d.fields))}
	for k, v := range d.fields {
		c.Fields[k] = v
	}
	c.Body = d.Body()
	return c
}

// Replace republishes c into the document. Fields missing from c are
// cleared and fields outside the schema are ignored.
func (d *Document) Replace(c Content) error {
	if c.Kind != d.schema.Kind {
		return fmt.Errorf("%w: have %s, got %s", ErrKindMismatch, d.schema.Kind, c.Kind)
	}
	d.load(c)
	return nil
}

func (d *Document) load(c Content) {
	d.fields = make(map[string]string, len(d.schema.Fields))
	for _, f := range d.schema.Fields {
		d.fields[f] = c.Fields[f]
	}
	d.SetBody(c.Body)
}

func (d *Document) paragraphRef(ref string) (int, bool) {
	name, num, ok := strings.Cut(ref, ".")
	if !ok || (name != "body" && name != d.schema.BodyLabel) {
		return 0, false
	}
	idx, err := strconv.Atoi(num)
	if err != nil {
		return -1, true
	}
	return idx, true
}
