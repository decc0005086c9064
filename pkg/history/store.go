// ABOUTME: Bounded linear version store with a cursor
// ABOUTME: Commit prunes forward history and evicts the oldest snapshot past the cap

package history

import (
	"time"

	"github.com/nainya/applydesk/pkg/content"
	"github.com/segmentio/ksuid"
)

// Store holds an ordered list of snapshots and a cursor into it. It is not
// safe for concurrent use.
type Store struct {
	snapshots []Snapshot
	cursor    int
	max       int

	now func() time.Time
}

// NewStore creates an empty store retaining at most max snapshots
func NewStore(max int) *Store {
	if max <= 0 {
		max = DefaultMaxSnapshots
	}
	return &Store{cursor: -1, max: max, now: time.Now}
}

// NewStoreFromState rebuilds a store from persisted state. An invalid
// cursor is moved to the last snapshot and excess snapshots are dropped
// oldest first.
func NewStoreFromState(st State) *Store {
	s := NewStore(st.Max)
	for _, snap := range st.Snapshots {
		s.snapshots = append(s.snapshots, snap.clone())
	}

	s.cursor = st.Cursor
	if s.cursor < 0 || s.cursor >= len(s.snapshots) {
		s.cursor = len(s.snapshots) - 1
	}
	if excess := len(s.snapshots) - s.max; excess > 0 {
		s.snapshots = s.snapshots[excess:]
		s.cursor -= excess
		if s.cursor < 0 {
			s.cursor = 0
		}
	}
	return s
}

// Commit records c as a new snapshot after the cursor, discarding any
// snapshots that were ahead of it, and returns the new cursor.
func (s *Store) Commit(c content.Content, label string) int {
	snap := Snapshot{
		ID:        ksuid.New().String(),
		Timestamp: s.now(),
		Label:     label,
		Content:   c.Clone(),
		Hash:      Fingerprint(c),
	}

	// Branch pruning
	s.snapshots = append(s.snapshots[:s.cursor+1], snap)
	s.cursor = len(s.snapshots) - 1

	for len(s.snapshots) > s.max {
		s.snapshots[0] = Snapshot{}
		s.snapshots = s.snapshots[1:]
		s.cursor--
	}
	return s.cursor
}

// Current returns the snapshot at the cursor. The boolean is false when
// the store is empty.
func (s *Store) Current() (Snapshot, bool) {
	if s.cursor < 0 {
		return Snapshot{}, false
	}
	return s.snapshots[s.cursor].clone(), true
}

// At returns the snapshot at index without moving the cursor
func (s *Store) At(index int) (Snapshot, error) {
	if index < 0 || index >= len(s.snapshots) {
		return Snapshot{}, ErrIndexOutOfRange
	}
	return s.snapshots[index].clone(), nil
}

// CanUndo reports whether there is an older snapshot before the cursor
func (s *Store) CanUndo() bool {
	return s.cursor > 0
}

// CanRedo reports whether there is a newer snapshot after the cursor
func (s *Store) CanRedo() bool {
	return s.cursor >= 0 && s.cursor < len(s.snapshots)-1
}

// MoveTo sets the cursor to index and returns the snapshot there.
// Out-of-range requests are rejected with no side effects.
func (s *Store) MoveTo(index int) (Snapshot, error) {
	if index < 0 || index >= len(s.snapshots) {
		return Snapshot{}, ErrIndexOutOfRange
	}
	s.cursor = index
	return s.snapshots[index].clone(), nil
}

// Restore moves the cursor to index and discards every newer snapshot
func (s *Store) Restore(index int) (Snapshot, error) {
	snap, err := s.MoveTo(index)
	if err != nil {
		return Snapshot{}, err
	}
	for i := index + 1; i < len(s.snapshots); i++ {
		s.snapshots[i] = Snapshot{}
	}
	s.snapshots = s.snapshots[:index+1]
	return snap, nil
}

// Position classifies the cursor. A single snapshot is reported at-end.
func (s *Store) Position() Position {
	switch {
	case s.cursor < 0:
		return PositionEmpty
	case s.cursor == len(s.snapshots)-1:
		return PositionAtEnd
	case s.cursor == 0:
		return PositionAtStart
	default:
		return PositionMidHistory
	}
}

// Snapshots returns copies of all snapshots, oldest first
func (s *Store) Snapshots() []Snapshot {
	out := make([]Snapshot, len(s.snapshots))
	for i, snap := range s.snapshots {
		out[i] = snap.clone()
	}
	return out
}

// Cursor returns the cursor index, -1 when empty
func (s *Store) Cursor() int {
	return s.cursor
}

// Len returns the number of retained snapshots
func (s *Store) Len() int {
	return len(s.snapshots)
}

// Max returns the retention cap
func (s *Store) Max() int {
	return s.max
}

// State exports the store for persistence
func (s *Store) State() State {
	return State{Snapshots: s.Snapshots(), Cursor: s.cursor, Max: s.max}
}
