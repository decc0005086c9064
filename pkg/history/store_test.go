// ABOUTME: Tests for the version store
// ABOUTME: Verifies branch pruning, eviction, bounds checks and restore

package history

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nainya/applydesk/pkg/content"
)

func contentWith(opening string) content.Content {
	c, _ := content.Empty(content.KindCoverLetter)
	c.Fields["opening"] = opening
	return c
}

func opening(s Snapshot) string {
	return s.Content.Fields["opening"]
}

func TestEmptyStore(t *testing.T) {
	s := NewStore(0)

	if s.Cursor() != -1 {
		t.Errorf("Expected cursor -1, got %d", s.Cursor())
	}
	if s.Max() != DefaultMaxSnapshots {
		t.Errorf("Expected default max %d, got %d", DefaultMaxSnapshots, s.Max())
	}
	if snap, ok := s.Current(); ok || !snap.IsZero() {
		t.Errorf("Expected empty sentinel, got %+v", snap)
	}
	if s.CanUndo() || s.CanRedo() {
		t.Errorf("Empty store should not allow undo or redo")
	}
	if s.Position() != PositionEmpty {
		t.Errorf("Expected empty position, got %s", s.Position())
	}
}

func TestCommitAdvancesCursor(t *testing.T) {
	s := NewStore(5)

	if idx := s.Commit(contentWith("S1"), "first"); idx != 0 {
		t.Errorf("Expected cursor 0, got %d", idx)
	}
	if s.CanUndo() {
		t.Errorf("Cursor at 0 must not allow undo")
	}

	if idx := s.Commit(contentWith("S2"), "second"); idx != 1 {
		t.Errorf("Expected cursor 1, got %d", idx)
	}
	if !s.CanUndo() {
		t.Errorf("Expected undo after second commit")
	}
	if s.CanRedo() {
		t.Errorf("Cursor at end must not allow redo")
	}

	cur, ok := s.Current()
	if !ok || opening(cur) != "S2" || cur.Label != "second" {
		t.Errorf("Unexpected current snapshot: %+v", cur)
	}
	if cur.ID == "" || cur.Hash != Fingerprint(contentWith("S2")) {
		t.Errorf("Snapshot missing id or hash: %+v", cur)
	}
}

func TestBranchPruning(t *testing.T) {
	s := NewStore(20)
	s.Commit(contentWith("S1"), "")
	s.Commit(contentWith("S2"), "")

	snap, err := s.MoveTo(0)
	if err != nil {
		t.Fatalf("MoveTo failed: %v", err)
	}
	if opening(snap) != "S1" {
		t.Errorf("Expected S1 after moving back, got %s", opening(snap))
	}
	if !s.CanRedo() {
		t.Errorf("Expected redo before new commit")
	}

	s.Commit(contentWith("S3"), "")

	if s.Len() != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", s.Len())
	}
	snaps := s.Snapshots()
	if opening(snaps[0]) != "S1" || opening(snaps[1]) != "S3" {
		t.Errorf("Expected [S1 S3], got [%s %s]", opening(snaps[0]), opening(snaps[1]))
	}
	if s.CanRedo() {
		t.Errorf("Redo must be unavailable after committing on a branch")
	}
}

func TestEvictionAtCap(t *testing.T) {
	s := NewStore(20)
	for i := 0; i < 20; i++ {
		s.Commit(contentWith(fmt.Sprintf("S%d", i)), "")
	}
	if s.Len() != 20 {
		t.Fatalf("Expected 20 snapshots, got %d", s.Len())
	}

	s.Commit(contentWith("S20"), "")

	if s.Len() != 20 {
		t.Errorf("Expected length to stay 20, got %d", s.Len())
	}
	if s.Cursor() != 19 {
		t.Errorf("Expected cursor 19, got %d", s.Cursor())
	}
	for _, snap := range s.Snapshots() {
		if opening(snap) == "S0" {
			t.Errorf("Oldest snapshot should have been evicted")
		}
	}
	first, _ := s.At(0)
	if opening(first) != "S1" {
		t.Errorf("Expected S1 to be oldest, got %s", opening(first))
	}
}

func TestEvictionNeverExceedsMax(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 50; i++ {
		s.Commit(contentWith(fmt.Sprintf("S%d", i)), "")
		if s.Len() > 3 {
			t.Fatalf("Store grew past max: %d", s.Len())
		}
		if i%7 == 0 && s.CanUndo() {
			s.MoveTo(s.Cursor() - 1)
		}
	}
}

func TestMoveToOutOfRange(t *testing.T) {
	s := NewStore(5)
	s.Commit(contentWith("S1"), "")
	s.Commit(contentWith("S2"), "")

	for _, idx := range []int{-1, 2, 99} {
		if _, err := s.MoveTo(idx); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("MoveTo(%d): expected ErrIndexOutOfRange, got %v", idx, err)
		}
	}

	if s.Cursor() != 1 || s.Len() != 2 {
		t.Errorf("Out-of-range move changed the store: cursor %d len %d", s.Cursor(), s.Len())
	}
}

func TestRestoreTruncates(t *testing.T) {
	s := NewStore(10)
	for _, o := range []string{"S1", "S2", "S3", "S4"} {
		s.Commit(contentWith(o), "")
	}

	snap, err := s.Restore(1)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if opening(snap) != "S2" {
		t.Errorf("Expected S2, got %s", opening(snap))
	}
	if s.Len() != 2 || s.CanRedo() {
		t.Errorf("Expected newer snapshots dropped, len=%d canRedo=%v", s.Len(), s.CanRedo())
	}
	if s.Position() != PositionAtEnd {
		t.Errorf("Expected at-end after restore, got %s", s.Position())
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := NewStore(5)
	c := contentWith("S1")
	s.Commit(c, "")

	c.Fields["opening"] = "mutated"
	cur, _ := s.Current()
	cur.Content.Fields["opening"] = "mutated too"

	again, _ := s.Current()
	if opening(again) != "S1" {
		t.Errorf("Stored snapshot was mutated: %s", opening(again))
	}
}

func TestPositions(t *testing.T) {
	s := NewStore(5)
	s.Commit(contentWith("S1"), "")
	if s.Position() != PositionAtEnd {
		t.Errorf("Single snapshot should be at-end, got %s", s.Position())
	}

	s.Commit(contentWith("S2"), "")
	s.Commit(contentWith("S3"), "")
	s.MoveTo(1)
	if s.Position() != PositionMidHistory {
		t.Errorf("Expected mid-history, got %s", s.Position())
	}
	s.MoveTo(0)
	if s.Position() != PositionAtStart {
		t.Errorf("Expected at-start, got %s", s.Position())
	}
}

func TestStateRoundTrip(t *testing.T) {
	s := NewStore(4)
	s.Commit(contentWith("S1"), "a")
	s.Commit(contentWith("S2"), "b")
	s.Commit(contentWith("S3"), "c")
	s.MoveTo(1)

	restored := NewStoreFromState(s.State())

	if restored.Cursor() != 1 || restored.Len() != 3 || restored.Max() != 4 {
		t.Errorf("Unexpected restored store: cursor %d len %d max %d",
			restored.Cursor(), restored.Len(), restored.Max())
	}
	if !restored.CanRedo() {
		t.Errorf("Redo should survive a round trip")
	}
}

func TestStateSanitized(t *testing.T) {
	st := State{Max: 2, Cursor: 17}
	for _, o := range []string{"S1", "S2", "S3"} {
		st.Snapshots = append(st.Snapshots, Snapshot{ID: o, Content: contentWith(o)})
	}

	s := NewStoreFromState(st)

	if s.Len() != 2 {
		t.Errorf("Expected excess snapshots dropped, got %d", s.Len())
	}
	if s.Cursor() != 1 {
		t.Errorf("Expected invalid cursor moved to last index, got %d", s.Cursor())
	}
	first, _ := s.At(0)
	if opening(first) != "S2" {
		t.Errorf("Expected oldest dropped first, got %s", opening(first))
	}
}
