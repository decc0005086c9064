package persist

import (
	"testing"
	"time"

	"github.com/nainya/applydesk/pkg/backend"
	"github.com/nainya/applydesk/pkg/content"
	"github.com/nainya/applydesk/pkg/latex"
	"github.com/nainya/applydesk/pkg/localstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationCache_HitAndStale(t *testing.T) {
	slots := localstore.NewMemory()
	g := NewGenerationCache(slots, 0, zerolog.Nop())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	id := Identity{Kind: content.KindCoverLetter, ID: "job-7"}

	res := backend.GenerateResult{Content: letter("Hello"), Latex: `\documentclass{article}`}
	require.NoError(t, g.Put(id, res))

	got, ok := g.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Hello", got.Content.Field("opening"))
	assert.Equal(t, res.Latex, got.Latex)

	now = now.Add(25 * time.Hour)
	_, ok = g.Get(id)
	assert.False(t, ok, "entries older than 24h are stale")
	_, present := slots.Get(generationKey(id))
	assert.False(t, present, "stale entry should be evicted")
}

func TestGenerationCache_SchemaMismatchAndCorrupt(t *testing.T) {
	slots := localstore.NewMemory()
	g := NewGenerationCache(slots, time.Hour, zerolog.Nop())
	id := Identity{Kind: content.KindResume, ID: "r"}

	slots.Set(generationKey(id), []byte(`{"schema_version":1,"saved_at":"`+time.Now().UTC().Format(time.RFC3339)+`","result":{}}`))
	_, ok := g.Get(id)
	assert.False(t, ok)

	slots.Set(generationKey(id), []byte(`garbage`))
	_, ok = g.Get(id)
	assert.False(t, ok)
	assert.Empty(t, slots.Keys("generation:"))
}

func TestPreferences_Letterhead(t *testing.T) {
	slots := localstore.NewMemory()
	p := NewPreferences(slots, zerolog.Nop())

	assert.Equal(t, latex.Letterhead{}, p.Letterhead())

	lh := latex.Letterhead{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, p.SetLetterhead(lh))
	assert.Equal(t, lh, p.Letterhead())

	slots.Set(letterheadKey, []byte(`{"name": 5}`))
	assert.Equal(t, latex.Letterhead{}, p.Letterhead(), "corrupt slot reads as default")
}

func TestPreferences_Templates(t *testing.T) {
	p := NewPreferences(localstore.NewMemory(), zerolog.Nop())

	require.NoError(t, p.SaveTemplate(Template{Name: "Formal", Greeting: "Dear Hiring Manager,"}))
	require.NoError(t, p.SaveTemplate(Template{Name: "Casual", Greeting: "Hi team,"}))
	require.NoError(t, p.SaveTemplate(Template{Name: "formal", Greeting: "To whom it may concern,"}))
	assert.Error(t, p.SaveTemplate(Template{Name: "  "}))

	ts := p.Templates()
	require.Len(t, ts, 2)
	assert.Equal(t, "To whom it may concern,", ts[0].Greeting)

	got, ok := p.Template("CASUAL")
	require.True(t, ok)
	assert.Equal(t, "Hi team,", got.Greeting)

	require.NoError(t, p.DeleteTemplate("casual"))
	require.NoError(t, p.DeleteTemplate("missing"))
	assert.Len(t, p.Templates(), 1)
}
