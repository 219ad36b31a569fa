// Package geocache implements the persistent lookup cache shared by all
// geocoding clients. The cache is a flat key/value JSON file that operators
// inspect and edit by hand, so flushes always rewrite it fully and indented.
package geocache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one cached lookup result. Nil coordinates mark a query that was
// tried and returned nothing; keeping these avoids repeating remote calls
// for known-failing queries.
type Entry struct {
	Latitude    *float64 `json:"lat"`
	Longitude   *float64 `json:"lon"`
	DisplayName string   `json:"display_name,omitempty"`
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
	CheckedAt   string   `json:"checked_at,omitempty"` // RFC3339, set on store.
}

// Found reports whether the entry carries coordinates, as opposed to being
// a negative marker.
func (e Entry) Found() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// Cache is an in-memory key/value map backed by a JSON file. It is not safe
// for concurrent use; the engine processes records on a single goroutine.
type Cache struct {
	path        string
	entries     map[string]Entry
	negativeTTL time.Duration
	log         *slog.Logger
	now         func() time.Time
}

// Open loads the cache file at path, returning an empty cache when the file
// does not exist or cannot be parsed. negativeTTL bounds how long "not found"
// markers are honored; zero means they never expire.
func Open(path string, negativeTTL time.Duration, log *slog.Logger) *Cache {
	cache := &Cache{
		path:        path,
		entries:     make(map[string]Entry),
		negativeTTL: negativeTTL,
		log:         log,
		now:         time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("Failed to read cache file, starting empty", "path", path, "error", err)
		}
		return cache
	}

	if err = json.Unmarshal(data, &cache.entries); err != nil {
		log.Warn("Failed to parse cache file, starting empty", "path", path, "error", err)
		cache.entries = make(map[string]Entry)
		return cache
	}

	log.Info("Geocache loaded", "path", path, "entries", len(cache.entries))
	return cache
}

// Key builds the canonical cache key for a plain-text query:
// kind and value joined by "::", trimmed and uppercased so equivalent
// queries collapse to one entry regardless of input casing.
func Key(kind, value string) string {
	return kind + "::" + strings.ToUpper(strings.TrimSpace(value))
}

// StructuredKey builds the canonical key for a multi-field query. Fields are
// serialized as JSON with sorted keys, so equivalent structured queries hash
// identically no matter how the caller assembled them. Empty fields are
// dropped before serialization.
func StructuredKey(kind string, fields map[string]string) string {
	compact := make(map[string]string, len(fields))
	for k, v := range fields {
		if v != "" {
			compact[k] = v
		}
	}

	// json.Marshal sorts map keys, which makes the serialization
	// order-independent.
	data, err := json.Marshal(compact)
	if err != nil {
		// Marshaling map[string]string cannot fail; keep a deterministic
		// fallback anyway.
		return Key(kind, fmt.Sprint(compact))
	}

	return Key(kind, string(data))
}

// Lookup returns the entry for key. Negative markers older than the
// configured TTL are reported as absent so they get revalidated remotely.
func (c *Cache) Lookup(key string) (Entry, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}

	if !entry.Found() && c.negativeTTL > 0 && entry.CheckedAt != "" {
		checked, err := time.Parse(time.RFC3339, entry.CheckedAt)
		if err == nil && c.now().Sub(checked) > c.negativeTTL {
			c.log.Debug("Negative cache entry expired", "key", key, "checked_at", entry.CheckedAt)
			return Entry{}, false
		}
	}

	return entry, true
}

// Store records a successful lookup under key, stamping the check time.
func (c *Cache) Store(key string, entry Entry) {
	entry.CheckedAt = c.now().UTC().Format(time.RFC3339)
	c.entries[key] = entry
}

// StoreMiss records an explicit "tried, not found" marker under key.
func (c *Cache) StoreMiss(key string) {
	c.entries[key] = Entry{CheckedAt: c.now().UTC().Format(time.RFC3339)}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Flush rewrites the whole cache file from memory, creating parent
// directories as needed. It performs synchronous file I/O; callers invoke it
// at commit boundaries and must tolerate the pause.
func (c *Cache) Flush() error {
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize cache: %w", err)
	}

	if err = os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	c.log.Debug("Geocache flushed", "path", c.path, "entries", len(c.entries))
	return nil
}
