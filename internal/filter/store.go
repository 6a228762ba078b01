package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrConfigNotFound is returned when a named config does not exist.
var ErrConfigNotFound = errors.New("filter config not found")

// Store persists named configs as a single JSON document, loaded at startup
// and written on every edit.
type Store struct {
	mu      sync.Mutex
	path    string
	configs map[string]*Config
}

// document is the on-disk shape: a named-record map under a "configs" key.
type document struct {
	Configs map[string]*Config `json:"configs"`
}

// OpenStore loads the store at path, creating it with the default config
// when it does not exist yet.
func OpenStore(path string) (*Store, error) {
	s := &Store{path: path, configs: make(map[string]*Config)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.configs[DefaultConfigName] = Default()
		if err := s.flushLocked(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("filter store: read %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("filter store: parse %s: %w", path, err)
	}
	for name, cfg := range doc.Configs {
		cfg.Name = name
		s.configs[name] = cfg
	}
	if _, ok := s.configs[DefaultConfigName]; !ok {
		s.configs[DefaultConfigName] = Default()
	}
	return s, nil
}

// Get returns a copy of the named config.
func (s *Store) Get(name string) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	return cfg.Clone(), nil
}

// Put validates and persists a config, overwriting any existing config of
// the same name.
func (s *Store) Put(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.Name] = cfg.Clone()
	return s.flushLocked()
}

// Delete removes a named config. The default config cannot be deleted, only
// reset.
func (s *Store) Delete(name string) error {
	if name == DefaultConfigName {
		return errors.New("filter store: the default config cannot be deleted")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[name]; !ok {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	delete(s.configs, name)
	return s.flushLocked()
}

// Reset restores the named config to the built-in defaults.
func (s *Store) Reset(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := Default()
	cfg.Name = name
	s.configs[name] = cfg
	return s.flushLocked()
}

// List returns all config names, sorted.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.configs))
	for name := range s.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RecordRoot records a walk root in the named config's MRU history.
func (s *Store) RecordRoot(name, root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	cfg.AddToHistory(root)
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	doc := document{Configs: s.configs}
	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("filter store: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("filter store: mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("filter store: write: %w", err)
	}
	return os.Rename(tmp, s.path)
}
