package persist

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nainya/applydesk/pkg/content"
	"github.com/nainya/applydesk/pkg/history"
	"github.com/nainya/applydesk/pkg/localstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func letter(opening string) content.Content {
	c, _ := content.Empty(content.KindCoverLetter)
	c.Fields["opening"] = opening
	return c
}

func TestIdentityKey(t *testing.T) {
	id := Identity{Kind: content.KindResume, ID: "job-42"}
	assert.Equal(t, "versions:resume:job-42", id.Key())

	back, ok := ParseIdentityKey(id.Key())
	require.True(t, ok)
	assert.Equal(t, id, back)

	_, ok = ParseIdentityKey("prefs:letterhead")
	assert.False(t, ok)
	_, ok = ParseIdentityKey("versions:resume")
	assert.False(t, ok)
}

func TestHistoryAdapter_SaveLoadRoundTrip(t *testing.T) {
	slots := localstore.NewMemory()
	a := NewHistoryAdapter(slots)
	id := Identity{Kind: content.KindCoverLetter, ID: "job-1"}

	s := history.NewStore(a.Max())
	s.Commit(letter("one"), "Auto-save")
	s.Commit(letter("two"), "Auto-save")
	s.Commit(letter("three"), "Manual")
	_, err := s.MoveTo(1)
	require.NoError(t, err)

	require.NoError(t, a.Save(id, s))

	loaded := a.Load(id)
	assert.Equal(t, s.Cursor(), loaded.Cursor())
	require.Equal(t, s.Len(), loaded.Len())
	for i, snap := range s.Snapshots() {
		got := loaded.Snapshots()[i]
		assert.Equal(t, snap.ID, got.ID)
		assert.Equal(t, snap.Label, got.Label)
		assert.Equal(t, snap.Hash, got.Hash)
		assert.True(t, snap.Timestamp.Equal(got.Timestamp))
		assert.Equal(t, snap.Content.Canonical(), got.Content.Canonical())
	}
	assert.True(t, loaded.CanRedo())
}

func TestHistoryAdapter_LoadMissingIsEmpty(t *testing.T) {
	a := NewHistoryAdapter(localstore.NewMemory())

	s := a.Load(Identity{Kind: content.KindResume, ID: "nothing"})
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, -1, s.Cursor())
}

func TestHistoryAdapter_InvalidJSONFailsSoft(t *testing.T) {
	slots := localstore.NewMemory()
	var logs bytes.Buffer
	a := NewHistoryAdapter(slots, WithLogger(zerolog.New(&logs)))
	id := Identity{Kind: content.KindCoverLetter, ID: "broken"}
	require.NoError(t, slots.Set(id.Key(), []byte("{not json")))

	s := a.Load(id)

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, -1, s.Cursor())
	assert.Contains(t, logs.String(), "Discarding unreadable version history")
}

func TestHistoryAdapter_DropsForeignKindSnapshots(t *testing.T) {
	slots := localstore.NewMemory()
	a := NewHistoryAdapter(slots)
	id := Identity{Kind: content.KindCoverLetter, ID: "mixed"}

	s := history.NewStore(0)
	s.Commit(letter("keep"), "a")
	resume, _ := content.Empty(content.KindResume)
	s.Commit(resume, "b")
	require.NoError(t, a.Save(id, s))

	loaded := a.Load(id)
	require.Equal(t, 1, loaded.Len())
	assert.Equal(t, 0, loaded.Cursor())
}

func TestHistoryAdapter_AppliesConfiguredMax(t *testing.T) {
	slots := localstore.NewMemory()
	id := Identity{Kind: content.KindCoverLetter, ID: "cap"}

	s := history.NewStore(10)
	for i := 0; i < 10; i++ {
		s.Commit(letter(string(rune('a'+i))), "Auto-save")
	}
	require.NoError(t, NewHistoryAdapter(slots).Save(id, s))

	loaded := NewHistoryAdapter(slots, WithMaxSnapshots(4)).Load(id)
	assert.Equal(t, 4, loaded.Len())
	assert.Equal(t, 4, loaded.Max())
	cur, ok := loaded.Current()
	require.True(t, ok)
	assert.Equal(t, "j", cur.Content.Field("opening"))
}

func TestHistoryAdapter_ListAndDelete(t *testing.T) {
	slots := localstore.NewMemory()
	a := NewHistoryAdapter(slots)
	ids := []Identity{
		{Kind: content.KindResume, ID: "b"},
		{Kind: content.KindCoverLetter, ID: "a"},
	}
	for _, id := range ids {
		require.NoError(t, a.Save(id, history.NewStore(0)))
	}
	slots.Set("prefs:letterhead", []byte("{}"))

	list := a.List()
	assert.Equal(t, []Identity{
		{Kind: content.KindCoverLetter, ID: "a"},
		{Kind: content.KindResume, ID: "b"},
	}, list)

	require.NoError(t, a.Delete(ids[0]))
	assert.Len(t, a.List(), 1)
	assert.False(t, a.Exists(ids[0]))
	assert.True(t, a.Exists(ids[1]))
}

func TestHistoryAdapter_SaveErrorSurfaces(t *testing.T) {
	slots := localstore.NewMemory()
	slots.FailWrites = errors.New("disk full")
	a := NewHistoryAdapter(slots)

	err := a.Save(Identity{Kind: content.KindResume, ID: "x"}, history.NewStore(0))
	assert.ErrorContains(t, err, "disk full")
}
