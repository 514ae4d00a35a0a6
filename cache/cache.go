// Package cache provides the on-disk result cache for pulse.
//
// Caching here is a pure optimization: reads that fail for any reason look
// like misses, and writes that fail are dropped. Nothing in this package
// returns an error to the caller. The cache directory is shared mutable
// state with no locking; concurrent writers to the same key interleave with
// last-writer-wins semantics.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// DefaultTTL applies when no window-derived TTL is available.
const DefaultTTL = 24 * time.Hour

// Store is a disk-backed TTL cache rooted at a single directory. Entry
// freshness is judged purely on file modification time against whatever TTL
// the reader supplies; nothing is stored in the file besides the payload.
type Store struct {
	dir string
}

// New returns a Store rooted at the default per-user cache directory.
func New() *Store {
	return NewAt(filepath.Join(xdg.CacheHome, "pulse", "results"))
}

// NewAt returns a Store rooted at dir. The directory is created lazily on
// the first save.
func NewAt(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// Key derives a deterministic cache key from the query parameters. The tuple
// is hashed so keys are filesystem-safe; 16 hex chars (64 bits) is plenty
// for collision avoidance in a local cache. Not security-critical.
func Key(topic, from, to, sources string) string {
	sum := sha256.Sum256([]byte(topic + "|" + from + "|" + to + "|" + sources))
	return hex.EncodeToString(sum[:])[:16]
}

// Path returns the file path for a cache key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// IsValid reports whether the file at path exists and is younger than ttl.
// A file whose age exactly equals the TTL is expired.
func (s *Store) IsValid(path string, ttl time.Duration) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	age := time.Now().UTC().Sub(fi.ModTime().UTC())
	return age < ttl
}

// Load reads the cached payload for key into v if the entry is fresh.
// Missing, stale, unreadable, or malformed entries all report a miss.
func (s *Store) Load(key string, ttl time.Duration, v any) bool {
	path := s.Path(key)
	if !s.IsValid(path, ttl) {
		return false
	}
	return s.decode(path, v)
}

// LoadWithAge is Load plus the entry's age, for caller-side staleness
// reporting ("cached 40m ago").
func (s *Store) LoadWithAge(key string, ttl time.Duration, v any) (age time.Duration, ok bool) {
	path := s.Path(key)
	if !s.IsValid(path, ttl) {
		return 0, false
	}

	fi, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	age = time.Now().UTC().Sub(fi.ModTime().UTC())

	if !s.decode(path, v) {
		return 0, false
	}
	return age, true
}

func (s *Store) decode(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// Save writes the payload for key, overwriting any previous entry. It
// reports whether the entry was written; a false return means the write was
// silently skipped, never that the caller's operation should fail.
func (s *Store) Save(key string, v any) bool {
	if err := s.ensureDir(); err != nil {
		return false
	}

	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return os.WriteFile(s.Path(key), data, 0o600) == nil
}

// ClearAll removes every cache file in the directory and returns how many
// were deleted. A missing directory is a no-op.
func (s *Store) ClearAll() int {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return 0
	}

	removed := 0
	for _, path := range matches {
		if os.Remove(path) == nil {
			removed++
		}
	}
	return removed
}

// ensureDir creates the cache directory with owner-only permissions. Cached
// results may contain arbitrary query output and must not be group or world
// readable.
func (s *Store) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return nil
}
