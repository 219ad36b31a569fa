package geocache

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_NegativeTTL(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "geocache.json")
	cache := Open(path, time.Hour, slog.Default())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }

	key := Key("NOMINATIM", "nowhere")
	cache.StoreMiss(key)

	// Fresh marker is still honored.
	_, ok := cache.Lookup(key)
	require.True(t, ok)

	// Past the TTL the marker reads as absent, forcing revalidation.
	cache.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, ok = cache.Lookup(key)
	assert.False(t, ok)
}

func TestLookup_PositiveEntriesNeverExpire(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "geocache.json")
	cache := Open(path, time.Hour, slog.Default())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }

	lat, lon := -12.9714, -38.5014
	key := Key("BRASILAPI", "41820021")
	cache.Store(key, Entry{Latitude: &lat, Longitude: &lon})

	cache.now = func() time.Time { return base.Add(48 * time.Hour) }
	entry, ok := cache.Lookup(key)
	require.True(t, ok)
	assert.True(t, entry.Found())
}

func TestLookup_ZeroTTLKeepsNegatives(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "geocache.json")
	cache := Open(path, 0, slog.Default())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }

	key := Key("NOMINATIM", "nowhere")
	cache.StoreMiss(key)

	cache.now = func() time.Time { return base.Add(1000 * time.Hour) }
	_, ok := cache.Lookup(key)
	assert.True(t, ok)
}
