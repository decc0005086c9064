package persist

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nainya/applydesk/pkg/backend"
	"github.com/nainya/applydesk/pkg/localstore"
	"github.com/rs/zerolog"
)

const (
	generationPrefix = "generation:"

	// GenerationSchemaVersion marks the current cache entry layout
	GenerationSchemaVersion = 2

	// DefaultGenerationTTL is how long a cached generation stays usable
	DefaultGenerationTTL = 24 * time.Hour
)

type cachedGeneration struct {
	SchemaVersion int                    `json:"schema_version"`
	SavedAt       time.Time              `json:"saved_at"`
	Result        backend.GenerateResult `json:"result"`
}

// GenerationCache keeps the last generation result per document so a
// reopened editor can show it without calling the backend again
type GenerationCache struct {
	slots  localstore.Slots
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewGenerationCache creates a cache. A non-positive ttl selects
// DefaultGenerationTTL.
func NewGenerationCache(slots localstore.Slots, ttl time.Duration, logger zerolog.Logger) *GenerationCache {
	if ttl <= 0 {
		ttl = DefaultGenerationTTL
	}
	return &GenerationCache{slots: slots, ttl: ttl, now: time.Now, logger: logger}
}

func generationKey(id Identity) string {
	return generationPrefix + string(id.Kind) + ":" + id.ID
}

// Put stores res for id
func (g *GenerationCache) Put(id Identity, res backend.GenerateResult) error {
	data, err := json.Marshal(cachedGeneration{
		SchemaVersion: GenerationSchemaVersion,
		SavedAt:       g.now().UTC(),
		Result:        res,
	})
	if err != nil {
		return fmt.Errorf("encode generation %s: %w", id, err)
	}
	if err := g.slots.Set(generationKey(id), data); err != nil {
		return fmt.Errorf("save generation %s: %w", id, err)
	}
	return nil
}

// Get returns the cached result for id. Entries that are unreadable, from
// another schema version or older than the TTL are removed and reported as
// a miss.
func (g *GenerationCache) Get(id Identity) (backend.GenerateResult, bool) {
	key := generationKey(id)
	data, ok := g.slots.Get(key)
	if !ok {
		return backend.GenerateResult{}, false
	}

	var entry cachedGeneration
	reason := ""
	switch err := json.Unmarshal(data, &entry); {
	case err != nil:
		reason = "unreadable"
	case entry.SchemaVersion != GenerationSchemaVersion:
		reason = "schema version mismatch"
	case g.now().Sub(entry.SavedAt) > g.ttl:
		reason = "stale"
	}
	if reason != "" {
		g.logger.Debug().Str("identity", id.String()).Str("reason", reason).Msg("Evicting cached generation")
		if err := g.slots.Delete(key); err != nil {
			g.logger.Warn().Err(err).Str("identity", id.String()).Msg("Failed to evict cached generation")
		}
		return backend.GenerateResult{}, false
	}
	return entry.Result, true
}

// Clear removes the cached result for id
func (g *GenerationCache) Clear(id Identity) error {
	return g.slots.Delete(generationKey(id))
}
