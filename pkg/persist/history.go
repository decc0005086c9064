// ABOUTME: Persists version histories, generation results and preferences into local slots
// ABOUTME: Every read fails soft: absent or unreadable slots load as empty values

package persist

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nainya/applydesk/pkg/content"
	"github.com/nainya/applydesk/pkg/history"
	"github.com/nainya/applydesk/pkg/localstore"
	"github.com/rs/zerolog"
)

const (
	versionsPrefix = "versions:"

	// historyFormat is written into every saved history
	historyFormat = 1
)

// Identity names one document: its kind and the job or draft it belongs to
type Identity struct {
	Kind content.Kind `json:"kind"`
	ID   string       `json:"id"`
}

// Key returns the slot that holds the history of i
func (i Identity) Key() string {
	return versionsPrefix + string(i.Kind) + ":" + i.ID
}

func (i Identity) String() string {
	return string(i.Kind) + "/" + i.ID
}

// ParseIdentityKey reverses Identity.Key
func ParseIdentityKey(key string) (Identity, bool) {
	rest, ok := strings.CutPrefix(key, versionsPrefix)
	if !ok {
		return Identity{}, false
	}
	kind, id, ok := strings.Cut(rest, ":")
	if !ok || kind == "" || id == "" {
		return Identity{}, false
	}
	return Identity{Kind: content.Kind(kind), ID: id}, true
}

// savedHistory is the slot payload
type savedHistory struct {
	Version   int                `json:"version"`
	Snapshots []history.Snapshot `json:"snapshots"`
	Cursor    int                `json:"cursor"`
	Max       int                `json:"max"`
}

// HistoryAdapter saves and loads version stores by identity
type HistoryAdapter struct {
	slots  localstore.Slots
	logger zerolog.Logger
	max    int
}

// HistoryOption configures a HistoryAdapter
type HistoryOption func(*HistoryAdapter)

// WithLogger sets the logger used for fail-soft warnings
func WithLogger(l zerolog.Logger) HistoryOption {
	return func(a *HistoryAdapter) { a.logger = l }
}

// WithMaxSnapshots sets the retention cap applied to loaded stores
func WithMaxSnapshots(max int) HistoryOption {
	return func(a *HistoryAdapter) { a.max = max }
}

// NewHistoryAdapter creates an adapter over slots
func NewHistoryAdapter(slots localstore.Slots, opts ...HistoryOption) *HistoryAdapter {
	a := &HistoryAdapter{slots: slots, logger: zerolog.Nop(), max: history.DefaultMaxSnapshots}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Max returns the retention cap for new and loaded stores
func (a *HistoryAdapter) Max() int {
	return a.max
}

// Save writes the store state under the identity's slot
func (a *HistoryAdapter) Save(id Identity, s *history.Store) error {
	st := s.State()
	data, err := json.Marshal(savedHistory{
		Version:   historyFormat,
		Snapshots: st.Snapshots,
		Cursor:    st.Cursor,
		Max:       st.Max,
	})
	if err != nil {
		return fmt.Errorf("encode history %s: %w", id, err)
	}
	if err := a.slots.Set(id.Key(), data); err != nil {
		return fmt.Errorf("save history %s: %w", id, err)
	}
	return nil
}

// Load returns the saved store for id. A missing or unreadable slot yields
// an empty store; Load never fails.
func (a *HistoryAdapter) Load(id Identity) *history.Store {
	data, ok := a.slots.Get(id.Key())
	if !ok {
		return history.NewStore(a.max)
	}

	var saved savedHistory
	if err := json.Unmarshal(data, &saved); err != nil {
		a.logger.Warn().Err(err).Str("identity", id.String()).Msg("Discarding unreadable version history")
		return history.NewStore(a.max)
	}

	snaps := saved.Snapshots[:0]
	for _, snap := range saved.Snapshots {
		if snap.Content.Kind != id.Kind {
			a.logger.Warn().
				Str("identity", id.String()).
				Str("snapshot", snap.ID).
				Str("kind", string(snap.Content.Kind)).
				Msg("Dropping snapshot of another document kind")
			continue
		}
		snaps = append(snaps, snap)
	}
	if len(snaps) != len(saved.Snapshots) {
		saved.Cursor = -1
	}

	return history.NewStoreFromState(history.State{
		Snapshots: snaps,
		Cursor:    saved.Cursor,
		Max:       a.max,
	})
}

// Exists reports whether a history slot is stored for id
func (a *HistoryAdapter) Exists(id Identity) bool {
	_, ok := a.slots.Get(id.Key())
	return ok
}

// Delete removes the saved history for id
func (a *HistoryAdapter) Delete(id Identity) error {
	if err := a.slots.Delete(id.Key()); err != nil {
		return fmt.Errorf("delete history %s: %w", id, err)
	}
	return nil
}

// List returns every identity with a saved history
func (a *HistoryAdapter) List() []Identity {
	var out []Identity
	for _, key := range a.slots.Keys(versionsPrefix) {
		if id, ok := ParseIdentityKey(key); ok {
			out = append(out, id)
		}
	}
	return out
}
