package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/imgstudio/imgstudio/internal/config"
)

// MaxEntries caps the stored prompt list.
const MaxEntries = 50

const historyFile = "history.json"

// Store persists an ordered, deduplicated list of prompts, newest first.
// All calls are serialized by the single UI goroutine that owns it.
type Store struct {
	path    string
	entries []string
}

func NewStore() (*Store, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return NewStoreWithPath(filepath.Join(dir, historyFile)), nil
}

func NewStoreWithPath(path string) *Store {
	s := &Store{path: path}
	s.entries = s.load()
	return s
}

// load reads the persisted list. A missing or corrupt file degrades to an
// empty history rather than blocking startup.
func (s *Store) load() []string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}

	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	return entries
}

// Load returns the current prompt list, newest first.
func (s *Store) Load() []string {
	return slices.Clone(s.entries)
}

// Record inserts prompt at the front, moving it there if already present,
// truncates to the most recent MaxEntries, and persists synchronously.
// Whitespace-only prompts are ignored.
func (s *Store) Record(prompt string) ([]string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return s.Load(), nil
	}

	updated := make([]string, 0, len(s.entries)+1)
	updated = append(updated, prompt)
	for _, e := range s.entries {
		if e != prompt {
			updated = append(updated, e)
		}
	}
	if len(updated) > MaxEntries {
		updated = updated[:MaxEntries]
	}

	s.entries = updated
	if err := s.save(); err != nil {
		return s.Load(), err
	}
	return s.Load(), nil
}

// Clear empties the history and removes the backing file.
func (s *Store) Clear() error {
	s.entries = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove history file: %w", err)
	}
	return nil
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.Marshal(s.entries)
	if err != nil {
		return err
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}
