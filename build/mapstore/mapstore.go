// Package mapstore keeps track of the source maps of generated files across
// build passes and debugging sessions.
package mapstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/gopherjs/srcmap/build/cache"
	"github.com/gopherjs/srcmap/sourcemap"
)

// FileName is the base name of the default store file.
const FileName = "sourcemaps.json"

// DefaultPath is the well-known location of the store file used when no
// other path is configured.
var DefaultPath = func() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "srcmap", FileName)
}()

// Key returns the store key of a generated file: its absolute path, in the
// form returned by sourcemap.NormalizePath. Paths that are already absolute,
// including Windows paths with a drive letter, are only normalized.
func Key(path string) string {
	p := sourcemap.NormalizePath(path)
	if isAbs(p) {
		return p
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return p
	}
	return sourcemap.NormalizePath(abs)
}

func isAbs(p string) bool {
	return strings.HasPrefix(p, "/") || (len(p) >= 3 && p[1] == ':' && p[2] == '/')
}

// indent used when writing the store file.
const indent = "   "

// Store is a collection of raw source maps keyed by the normalized path of the
// generated file they describe, backed by a JSON file.
//
// The store is loaded lazily on first access. A missing or corrupted backing
// file results in an empty store. Changes are only persisted by an explicit
// Save, typically once per build pass.
//
// Store is not safe for concurrent use, and concurrent Save calls from
// different processes simply overwrite each other.
type Store struct {
	// TableCache, if not nil, persists decoded mapping tables between runs.
	TableCache *cache.TableCache

	path   string
	loaded bool
	maps   map[string]*sourcemap.Map
	tables map[string]sourcemap.Table
}

// New creates a store backed by the file at path. The file isn't read until
// the store is first accessed.
func New(path string) *Store {
	return &Store{
		path:   path,
		maps:   map[string]*sourcemap.Map{},
		tables: map[string]sourcemap.Table{},
	}
}

// Path returns the location of the backing file.
func (s *Store) Path() string { return s.path }

// Load (re)reads the backing file, replacing the store content. A missing
// file is not an error. If the file can't be parsed, the store is left empty
// and the error is returned for diagnostic purposes.
func (s *Store) Load() error {
	s.loaded = true
	s.maps = map[string]*sourcemap.Map{}
	s.tables = map[string]sourcemap.Table{}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Infof("No source map store at %q, starting empty.", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read source map store %q: %w", s.path, err)
	}

	maps := map[string]*sourcemap.Map{}
	if err := json.Unmarshal(data, &maps); err != nil {
		return fmt.Errorf("failed to parse source map store %q: %w", s.path, err)
	}
	for path, m := range maps {
		if m == nil {
			continue
		}
		s.maps[Key(path)] = m
	}
	log.Infof("Loaded %d source maps from %q.", len(s.maps), s.path)
	return nil
}

func (s *Store) ensureLoaded() {
	if s.loaded {
		return
	}
	if err := s.Load(); err != nil {
		log.Warningf("Ignoring source map store: %v", err)
	}
}

// Have reports whether the store has a source map for the generated file.
func (s *Store) Have(path string) bool {
	s.ensureLoaded()
	_, ok := s.maps[Key(path)]
	return ok
}

// Add inserts or replaces the source map of the generated file.
func (s *Store) Add(path string, m *sourcemap.Map) {
	s.ensureLoaded()
	key := Key(path)
	s.maps[key] = m
	delete(s.tables, key)
}

// Get returns the source map of the generated file, or an error wrapping
// sourcemap.ErrLookupMiss.
func (s *Store) Get(path string) (*sourcemap.Map, error) {
	s.ensureLoaded()
	m, ok := s.maps[Key(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sourcemap.ErrLookupMiss, path)
	}
	return m, nil
}

// Table returns the decoded mapping table of the generated file's source map.
// Tables are cached until the map is replaced.
func (s *Store) Table(path string) (sourcemap.Table, error) {
	m, err := s.Get(path)
	if err != nil {
		return nil, err
	}
	key := Key(path)
	if t, ok := s.tables[key]; ok {
		return t, nil
	}
	if t, ok := s.TableCache.Load(m.Mappings); ok {
		s.tables[key] = t
		return t, nil
	}
	t, err := m.Table()
	if err != nil {
		return nil, err
	}
	s.TableCache.Store(m.Mappings, t)
	s.tables[key] = t
	return t, nil
}

// Paths returns the sorted keys of all stored source maps.
func (s *Store) Paths() []string {
	s.ensureLoaded()
	paths := make([]string, 0, len(s.maps))
	for path := range s.maps {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of stored source maps.
func (s *Store) Len() int {
	s.ensureLoaded()
	return len(s.maps)
}

// Save writes the whole store to the backing file, replacing its content.
func (s *Store) Save() error {
	s.ensureLoaded()
	data, err := json.MarshalIndent(s.maps, "", indent)
	if err != nil {
		return fmt.Errorf("failed to encode source map store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("failed to create source map store directory: %w", err)
	}
	// Write to a temporary file first to never leave a half-written store.
	f, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path))
	if err != nil {
		return fmt.Errorf("failed to create temporary source map store: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to write source map store: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to write source map store: %w", err)
	}
	if err := os.Rename(f.Name(), s.path); err != nil {
		return fmt.Errorf("failed to rename source map store to %q: %w", s.path, err)
	}
	log.Infof("Saved %d source maps to %q.", len(s.maps), s.path)
	return nil
}
