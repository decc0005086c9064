// ABOUTME: Version history data model
// ABOUTME: Immutable snapshots, cursor positions and the persisted store state

package history

import (
	"errors"
	"time"

	"github.com/nainya/applydesk/pkg/content"
	"github.com/zeebo/xxh3"
)

// DefaultMaxSnapshots bounds a store when no explicit maximum is given
const DefaultMaxSnapshots = 20

var ErrIndexOutOfRange = errors.New("history: index out of range")

// Snapshot is an immutable, timestamped copy of document content
type Snapshot struct {
	ID        string          `json:"id"`        // KSUID, time ordered
	Timestamp time.Time       `json:"timestamp"` // Capture time
	Label     string          `json:"label"`     // Human readable, e.g. "Auto-save"
	Content   content.Content `json:"content"`   // Deep copy at capture time
	Hash      uint64          `json:"hash"`      // Fingerprint of Content
}

// IsZero reports whether s is the empty sentinel
func (s Snapshot) IsZero() bool {
	return s.ID == "" && s.Timestamp.IsZero()
}

func (s Snapshot) clone() Snapshot {
	s.Content = s.Content.Clone()
	return s
}

// Position describes where the cursor sits in the history
type Position int

const (
	PositionEmpty Position = iota
	PositionAtStart
	PositionMidHistory
	PositionAtEnd
)

func (p Position) String() string {
	switch p {
	case PositionAtStart:
		return "at-start"
	case PositionMidHistory:
		return "mid-history"
	case PositionAtEnd:
		return "at-end"
	default:
		return "empty"
	}
}

// State is the serializable form of a Store
type State struct {
	Snapshots []Snapshot `json:"snapshots"`
	Cursor    int        `json:"cursor"`
	Max       int        `json:"max"`
}

// Fingerprint hashes the canonical form of c
func Fingerprint(c content.Content) uint64 {
	return xxh3.HashString(c.Canonical())
}
