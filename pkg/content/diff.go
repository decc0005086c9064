// ABOUTME: Change measurement between two content values
// ABOUTME: Character edit distance and per-field diffs backed by diffmatchpatch

package content

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Change summarises how far apart two content values are
type Change struct {
	Structural bool // kind or paragraph count differ
	Distance   int  // summed character edit distance over fields and paragraphs
}

// Significant reports whether the change warrants a new snapshot given a
// minimum character distance.
func (c Change) Significant(minDistance int) bool {
	return c.Structural || c.Distance >= minDistance
}

// Segment is one run of a character diff
type Segment struct {
	Op   string `json:"op"` // equal, insert or delete
	Text string `json:"text"`
}

// FieldDiff is the diff of one field or paragraph
type FieldDiff struct {
	Ref      string    `json:"ref"`
	Distance int       `json:"distance"`
	Segments []Segment `json:"segments"`
}

// Compare measures the change from a to b
func Compare(a, b Content) Change {
	var ch Change
	if a.Kind != b.Kind || len(a.Body) != len(b.Body) {
		ch.Structural = true
	}

	dmp := diffmatchpatch.New()
	for _, name := range unionFields(a, b) {
		ch.Distance += distance(dmp, a.Fields[name], b.Fields[name])
	}

	n := len(a.Body)
	if len(b.Body) < n {
		n = len(b.Body)
	}
	for i := 0; i < n; i++ {
		ch.Distance += distance(dmp, a.Body[i], b.Body[i])
	}
	for _, p := range a.Body[n:] {
		ch.Distance += len([]rune(p))
	}
	for _, p := range b.Body[n:] {
		ch.Distance += len([]rune(p))
	}
	return ch
}

// Diff returns the per-field diffs from a to b, skipping unchanged refs
func Diff(a, b Content) []FieldDiff {
	dmp := diffmatchpatch.New()
	var out []FieldDiff

	add := func(ref, from, to string) {
		if from == to {
			return
		}
		diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(from, to, false))
		fd := FieldDiff{Ref: ref, Distance: dmp.DiffLevenshtein(diffs)}
		for _, d := range diffs {
			fd.Segments = append(fd.Segments, Segment{Op: opName(d.Type), Text: d.Text})
		}
		out = append(out, fd)
	}

	for _, name := range unionFields(a, b) {
		add(name, a.Fields[name], b.Fields[name])
	}

	n := len(a.Body)
	if len(b.Body) > n {
		n = len(b.Body)
	}
	for i := 0; i < n; i++ {
		var from, to string
		if i < len(a.Body) {
			from = a.Body[i]
		}
		if i < len(b.Body) {
			to = b.Body[i]
		}
		add(fmt.Sprintf("body.%d", i), from, to)
	}
	return out
}

func distance(dmp *diffmatchpatch.DiffMatchPatch, a, b string) int {
	if a == b {
		return 0
	}
	return dmp.DiffLevenshtein(dmp.DiffMain(a, b, false))
}

func unionFields(a, b Content) []string {
	seen := make(map[string]bool, len(a.Fields)+len(b.Fields))
	names := a.FieldNames()
	for _, n := range names {
		seen[n] = true
	}
	for _, n := range b.FieldNames() {
		if !seen[n] {
			names = append(names, n)
		}
	}
	return names
}

func opName(op diffmatchpatch.Operation) string {
	switch op {
	case diffmatchpatch.DiffInsert:
		return "insert"
	case diffmatchpatch.DiffDelete:
		return "delete"
	default:
		return "equal"
	}
}
