// Package toolchaindb persists the set of installed toolchains in a yaml
// file at the project root.
package toolchaindb

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// FileName is the database file, relative to the project root.
const FileName = ".anubis-toolchains.yaml"

// Record describes one verified toolchain installation.
type Record struct {
	Name        string    `yaml:"name"`
	Target      string    `yaml:"target"`
	CppCompiler string    `yaml:"cpp_compiler,omitempty"`
	CppArchiver string    `yaml:"cpp_archiver,omitempty"`
	Assembler   string    `yaml:"assembler,omitempty"`
	VerifiedAt  time.Time `yaml:"verified_at"`
}

// Store is a file-backed toolchain database with an in-memory cache.
type Store struct {
	path  string
	mu    sync.RWMutex
	cache map[string]Record
}

// NewStore opens (or initializes) the database at the given project root.
func NewStore(root string) (*Store, error) {
	s := &Store{
		path:  filepath.Join(root, FileName),
		cache: make(map[string]Record),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.Wrap(err, "failed to read toolchain database")
	}
	if len(data) == 0 {
		return nil
	}

	var records []Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return zerr.Wrap(err, "failed to parse toolchain database")
	}
	for _, rec := range records {
		s.cache[rec.Target] = rec
	}
	return nil
}

func (s *Store) save() error {
	s.mu.RLock()
	records := make([]Record, 0, len(s.cache))
	for _, rec := range s.cache {
		records = append(records, rec)
	}
	s.mu.RUnlock()
	sort.Slice(records, func(i, j int) bool { return records[i].Target < records[j].Target })

	data, err := yaml.Marshal(records)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal toolchain database")
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil { //nolint:gosec // database is project metadata
		return zerr.Wrap(err, "failed to write toolchain database")
	}
	return nil
}

// Get returns the record for a toolchain target, if present.
func (s *Store) Get(target string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.cache[target]
	return rec, ok
}

// Put stores a record and persists the database.
func (s *Store) Put(rec Record) error {
	s.mu.Lock()
	s.cache[rec.Target] = rec
	s.mu.Unlock()
	return s.save()
}

// Records returns every record sorted by target.
func (s *Store) Records() []Record {
	s.mu.RLock()
	records := make([]Record, 0, len(s.cache))
	for _, rec := range s.cache {
		records = append(records, rec)
	}
	s.mu.RUnlock()
	sort.Slice(records, func(i, j int) bool { return records[i].Target < records[j].Target })
	return records
}
