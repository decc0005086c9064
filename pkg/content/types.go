// ABOUTME: Content model data types for editable application documents
// ABOUTME: Defines document kinds, their fixed field schemas and the Content value

package content

import (
	"errors"
	"sort"
	"strings"
)

// Kind identifies a document type. The field set is fixed per kind.
type Kind string

const (
	KindCoverLetter Kind = "cover_letter"
	KindResume      Kind = "resume"
)

var (
	ErrUnknownKind    = errors.New("content: unknown document kind")
	ErrUnknownField   = errors.New("content: unknown field")
	ErrKindMismatch   = errors.New("content: document kind mismatch")
	ErrParagraphIndex = errors.New("content: paragraph index out of range")
)

// Schema describes the fixed set of scalar fields of a kind and the
// label used for its ordered body paragraphs.
type Schema struct {
	Kind      Kind
	Fields    []string
	BodyLabel string
	BodyAfter string // field the body paragraphs follow in reading order
}

var schemas = map[Kind]Schema{
	KindCoverLetter: {
		Kind:      KindCoverLetter,
		Fields:    []string{"greeting", "opening", "closing", "signature"},
		BodyLabel: "body",
		BodyAfter: "opening",
	},
	KindResume: {
		Kind:      KindResume,
		Fields:    []string{"headline", "summary", "skills", "education"},
		BodyLabel: "experience",
		BodyAfter: "summary",
	},
}

// SchemaFor returns the schema registered for kind
func SchemaFor(kind Kind) (Schema, error) {
	s, ok := schemas[kind]
	if !ok {
		return Schema{}, ErrUnknownKind
	}
	return s, nil
}

// ParseKind converts a user-supplied string into a known kind
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case "cover-letter", "coverletter":
		k = KindCoverLetter
	}
	if _, err := SchemaFor(k); err != nil {
		return "", err
	}
	return k, nil
}

// Has reports whether name is one of the schema's scalar fields
func (s Schema) Has(name string) bool {
	for _, f := range s.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Content is a value copy of a document's state. Snapshots hold Content
// values, never references to a live Document.
type Content struct {
	Kind   Kind              `json:"kind"`
	Fields map[string]string `json:"fields"`
	Body   []string          `json:"body"`
}

// Empty returns blank content for kind with every schema field present
func Empty(kind Kind) (Content, error) {
	s, err := SchemaFor(kind)
	if err != nil {
		return Content{}, err
	}
	c := Content{Kind: kind, Fields: make(map[string]string, len(s.Fields)), Body: []string{}}
	for _, f := range s.Fields {
		c.Fields[f] = ""
	}
	return c, nil
}

// Clone returns a deep copy
func (c Content) Clone() Content {
	out := Content{Kind: c.Kind, Fields: make(map[string]string, len(c.Fields))}
	for k, v := range c.Fields {
		out.Fields[k] = v
	}
	out.Body = make([]string, len(c.Body))
	copy(out.Body, c.Body)
	return out
}

// Field returns the value of a scalar field or "" when unset
func (c Content) Field(name string) string {
	return c.Fields[name]
}

// FieldNames returns the field names in c, sorted
func (c Content) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Canonical renders c as a stable string. Equal content always produces
// the same output regardless of map iteration order.
func (c Content) Canonical() string {
	var b strings.Builder
	b.WriteString(string(c.Kind))
	for _, name := range c.FieldNames() {
		b.WriteString("\x1f")
		b.WriteString(name)
		b.WriteString("\x1e")
		b.WriteString(c.Fields[name])
	}
	for _, p := range c.Body {
		b.WriteString("\x1d")
		b.WriteString(p)
	}
	return b.String()
}

// Text joins every non-empty field and paragraph in reading order,
// separated by blank lines.
func (c Content) Text() string {
	parts := make([]string, 0, len(c.Fields)+len(c.Body))
	body := func() {
		for _, p := range c.Body {
			if p != "" {
				parts = append(parts, p)
			}
		}
	}

	s, err := SchemaFor(c.Kind)
	if err != nil {
		body()
		return strings.Join(parts, "\n\n")
	}
	for _, f := range s.Fields {
		if v := c.Fields[f]; v != "" {
			parts = append(parts, v)
		}
		if f == s.BodyAfter {
			body()
		}
	}
	return strings.Join(parts, "\n\n")
}
