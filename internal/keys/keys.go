package keys

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/imgstudio/imgstudio/internal/config"
)

// Store handles API key storage and retrieval.
type Store struct {
	configDir string
}

// KeyEntry represents a stored API key.
type KeyEntry struct {
	Key string `json:"key"`
}

// Keys represents the keys.json structure, keyed by service name.
type Keys map[string]KeyEntry

// NewStore creates a key store rooted at the platform config directory.
func NewStore() (*Store, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return &Store{configDir: dir}, nil
}

func NewStoreWithDir(dir string) *Store {
	return &Store{configDir: dir}
}

// Path returns the path to the keys.json file.
func (s *Store) Path() string {
	return filepath.Join(s.configDir, "keys.json")
}

func (s *Store) load() (Keys, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(Keys), nil
		}
		return nil, err
	}

	var keys Keys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse keys.json: %w", err)
	}
	return keys, nil
}

func (s *Store) save(keys Keys) error {
	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}

	// Owner read/write only
	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write keys.json: %w", err)
	}
	return nil
}

// Set stores a key for the given service.
func (s *Store) Set(service, key string) error {
	keys, err := s.load()
	if err != nil {
		return err
	}

	keys[service] = KeyEntry{Key: key}
	return s.save(keys)
}

// Get retrieves a key for the given service. A missing key is not an error.
func (s *Store) Get(service string) (string, error) {
	keys, err := s.load()
	if err != nil {
		return "", err
	}

	entry, ok := keys[service]
	if !ok {
		return "", nil
	}
	return entry.Key, nil
}

// Delete removes a key for the given service.
func (s *Store) Delete(service string) error {
	keys, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := keys[service]; !ok {
		return fmt.Errorf("no key found for %s", service)
	}

	delete(keys, service)
	return s.save(keys)
}

// Exists checks if a key exists for the given service.
func (s *Store) Exists(service string) (bool, error) {
	keys, err := s.load()
	if err != nil {
		return false, err
	}
	_, ok := keys[service]
	return ok, nil
}

// MaskKey returns a masked version of the key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// GetAPIKey resolves the API key using the priority order:
// explicit flag, then stored key, then environment variable.
// The second return value names the source for diagnostics.
func GetAPIKey(explicitKey, service, envVar string) (string, string, error) {
	if explicitKey != "" {
		return explicitKey, "command-line flag", nil
	}

	store, err := NewStore()
	if err == nil {
		storedKey, err := store.Get(service)
		if err == nil && storedKey != "" {
			return storedKey, "stored key (keys.json)", nil
		}
	}

	if envKey := os.Getenv(envVar); envKey != "" {
		return envKey, fmt.Sprintf("environment variable (%s)", envVar), nil
	}

	return "", "", fmt.Errorf("API key required: run 'imgstudio keys set' or set %s", envVar)
}

// InstructionalMessage is shown when no key selector is available from
// the host environment.
func InstructionalMessage(envVar string) string {
	return fmt.Sprintf("No API key configured. Run 'imgstudio keys set' or set %s, then retry.", envVar)
}
