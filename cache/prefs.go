package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// PreferenceTTL bounds how long a remembered per-source choice stays valid.
const PreferenceTTL = 7 * 24 * time.Hour

const preferencesFile = "preferences.json"

// preferencesPath returns the single well-known preferences file.
func (s *Store) preferencesPath() string {
	return filepath.Join(s.dir, preferencesFile)
}

// Preference returns the remembered value for id, if the preferences file is
// fresh and holds one.
func (s *Store) Preference(id string) (string, bool) {
	prefs := s.loadPreferences(true)
	v, ok := prefs[id]
	return v, ok
}

// SetPreference remembers value for id and stamps updated_at. The current
// map is always re-read from disk first, even past its TTL, so one write
// never clobbers another id's entry. Like Save, the result is best-effort.
func (s *Store) SetPreference(id, value string) bool {
	if s.ensureDir() != nil {
		return false
	}

	prefs := s.loadPreferences(false)
	prefs[id] = value
	prefs["updated_at"] = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(prefs)
	if err != nil {
		return false
	}
	return os.WriteFile(s.preferencesPath(), data, 0o600) == nil
}

// loadPreferences reads the whole preference map. With honorTTL a stale or
// unreadable file yields an empty map.
func (s *Store) loadPreferences(honorTTL bool) map[string]string {
	path := s.preferencesPath()
	if honorTTL && !s.IsValid(path, PreferenceTTL) {
		return map[string]string{}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]string{}
	}

	var prefs map[string]string
	if json.Unmarshal(data, &prefs) != nil || prefs == nil {
		return map[string]string{}
	}
	return prefs
}
