// ABOUTME: Grammar issue model, latest-wins checker and auto-fix application
// ABOUTME: Analysis itself runs on the backend; this package only tracks and applies

package grammar

import (
	"context"
	"sort"

	"github.com/nainya/applydesk/pkg/inflight"
)

// Issue is one problem reported by the backend grammar service. Offset and
// Length count runes in the checked text.
type Issue struct {
	ID           string   `json:"id"`
	RuleID       string   `json:"rule_id"`
	Message      string   `json:"message"`
	Replacements []string `json:"replacements"`
	Offset       int      `json:"offset"`
	Length       int      `json:"length"`
	Text         string   `json:"text"`
	CanAutoFix   bool     `json:"can_auto_fix"`
	Category     string   `json:"category"`
}

// Fixable reports whether Apply would change the text for this issue
func (i Issue) Fixable() bool {
	return i.CanAutoFix && len(i.Replacements) > 0 && i.Offset >= 0 && i.Length >= 0
}

// Client performs a remote grammar check
type Client interface {
	CheckGrammar(ctx context.Context, text string) ([]Issue, error)
}

// Checker runs checks so that only the newest call's results are applied.
// An older call still in flight is aborted.
type Checker struct {
	client  Client
	tracker inflight.Tracker
}

// NewChecker creates a checker over client
func NewChecker(client Client) *Checker {
	return &Checker{client: client}
}

// Check sends text for checking. If the call completes while still the
// newest, apply receives the issues before Check returns. A superseded
// call returns inflight.ErrSuperseded and apply is not called.
func (c *Checker) Check(ctx context.Context, text string, apply func([]Issue)) error {
	ticket := c.tracker.Begin(ctx)
	issues, err := c.client.CheckGrammar(ticket.Context(), text)
	return ticket.Complete(err, func() {
		if apply != nil {
			apply(issues)
		}
	})
}

// Cancel aborts the in-flight check, if any
func (c *Checker) Cancel() {
	c.tracker.Cancel()
}

// Apply replaces the text of every fixable issue with its first
// replacement. Issues are applied from the end of the text backwards so
// earlier offsets stay valid; an issue overlapping one already applied, or
// whose span lies outside text, is skipped. It returns the new text and the
// issues that were applied.
func Apply(text string, issues []Issue) (string, []Issue) {
	fixable := make([]Issue, 0, len(issues))
	for _, is := range issues {
		if is.Fixable() {
			fixable = append(fixable, is)
		}
	}
	sort.SliceStable(fixable, func(i, j int) bool {
		return fixable[i].Offset > fixable[j].Offset
	})

	runes := []rune(text)
	limit := len(runes)
	var applied []Issue
	for _, is := range fixable {
		end := is.Offset + is.Length
		if end > limit {
			continue
		}
		repl := []rune(is.Replacements[0])
		out := make([]rune, 0, len(runes)-is.Length+len(repl))
		out = append(out, runes[:is.Offset]...)
		out = append(out, repl...)
		out = append(out, runes[end:]...)
		runes = out
		limit = is.Offset
		applied = append(applied, is)
	}
	return string(runes), applied
}
