// Package editor hosts live editing sessions: the document being edited, its
// version history, debounced auto-snapshots, grammar checks, generation and
// preview, all serialized behind one lock per session.
package editor

import (
	"context"
	"errors"
	"time"

	"github.com/nainya/applydesk/internal/logger"
	"github.com/nainya/applydesk/internal/metrics"
	"github.com/nainya/applydesk/pkg/backend"
	"github.com/nainya/applydesk/pkg/debounce"
	"github.com/nainya/applydesk/pkg/grammar"
	"github.com/nainya/applydesk/pkg/persist"
)

const (
	// DefaultQuietPeriod is the idle time before an auto-snapshot is considered
	DefaultQuietPeriod = 5 * time.Second

	// DefaultMinDistance is the character distance that makes a change worth a snapshot
	DefaultMinDistance = 10

	// DefaultPreviewQuietPeriod is the idle time before the preview recompiles
	DefaultPreviewQuietPeriod = 1500 * time.Millisecond
)

// Snapshot labels
const (
	LabelAutoSave     = "Auto-save"
	LabelManual       = "Manual save"
	LabelGrammarFixes = "Grammar fixes"
	LabelGenerated    = "Generated"
)

var (
	ErrSessionNotFound = errors.New("editor: session not found")
	ErrSessionClosed   = errors.New("editor: session closed")
	ErrNoBackend       = errors.New("editor: no backend configured")
	ErrStaleIssues     = errors.New("editor: text changed since the grammar check")
	ErrInvalidIdentity = errors.New("editor: document identity is required")
)

// Backend is the remote work an editor session delegates
type Backend interface {
	grammar.Client
	Generate(ctx context.Context, req backend.GenerateRequest) (*backend.GenerateResult, error)
	Compile(ctx context.Context, latex string) ([]byte, error)
}

// Config tunes session timing
type Config struct {
	QuietPeriod        time.Duration
	MinDistance        int
	PreviewQuietPeriod time.Duration

	// Clock drives both debouncers; tests pass a debounce.ManualClock
	Clock debounce.Clock
	Now   func() time.Time
}

func (c Config) withDefaults() Config {
	if c.QuietPeriod <= 0 {
		c.QuietPeriod = DefaultQuietPeriod
	}
	if c.MinDistance <= 0 {
		c.MinDistance = DefaultMinDistance
	}
	if c.PreviewQuietPeriod <= 0 {
		c.PreviewQuietPeriod = DefaultPreviewQuietPeriod
	}
	if c.Clock == nil {
		c.Clock = debounce.SystemClock
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Deps are the collaborators shared by every session of a Manager. Only
// History is required.
type Deps struct {
	History     *persist.HistoryAdapter
	Generations *persist.GenerationCache
	Preferences *persist.Preferences
	Backend     Backend
	Metrics     *metrics.Metrics
	Logger      *logger.Logger
}
