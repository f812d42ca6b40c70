package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

var (
	ErrNotFound      = errors.New("project not found")
	ErrAlreadyExists = errors.New("project already exists")
	ErrInvalidName   = errors.New("invalid project name")
)

const storeFile = "projects.json"

// Store is the durable name -> Metadata mapping. The whole collection is
// rewritten to projects.json inside the projects root on every mutation;
// this is intentionally simple and fine for dozens to low hundreds of
// projects.
//
// mu serializes load/mutate/write across goroutines. The flock guards the
// on-disk rewrite against a second hostr instance pointed at the same root.
type Store struct {
	mu       sync.Mutex
	root     string
	path     string
	flk      *flock.Flock
	projects map[string]*Metadata
}

// Open loads (or initializes) the store under root. The root directory is
// created if missing; a missing projects.json means an empty store.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create projects root: %w", err)
	}
	s := &Store{
		root:     root,
		path:     filepath.Join(root, storeFile),
		flk:      flock.New(filepath.Join(root, storeFile+".lock")),
		projects: make(map[string]*Metadata),
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &s.projects); err != nil {
			return nil, fmt.Errorf("parse %s: %w", s.path, err)
		}
	}
	return s, nil
}

// Root returns the projects root directory.
func (s *Store) Root() string { return s.root }

// Create registers a new project: its directory is created under the root
// and the record is persisted before Create returns.
func (s *Store) Create(name, runCommand string) (Metadata, error) {
	if !ValidName(name) {
		return Metadata{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if runCommand == "" {
		runCommand = DefaultRunCommand
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[name]; ok {
		return Metadata{}, fmt.Errorf("%w: %q", ErrAlreadyExists, name)
	}
	dir := filepath.Join(s.root, name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Metadata{}, fmt.Errorf("create project dir: %w", err)
	}
	m := &Metadata{
		Name:       name,
		Path:       dir,
		RunCommand: runCommand,
		CreatedAt:  time.Now().UTC(),
		Status:     StatusStopped,
	}
	s.projects[name] = m
	if err := s.saveLocked(); err != nil {
		return *m, err
	}
	return *m, nil
}

// Exists reports whether a project with the given name is registered.
func (s *Store) Exists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.projects[name]
	return ok
}

// Get returns a copy of the metadata for name.
func (s *Store) Get(name string) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.projects[name]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return *m, nil
}

// List returns all project names in sorted order.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.projects))
	for n := range s.projects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Update applies mutate to the record and persists the collection before
// returning. The in-memory change is kept even when the write fails; the
// caller is expected to surface the persistence error loudly.
func (s *Store) Update(name string, mutate func(*Metadata)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.projects[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	mutate(m)
	return s.saveLocked()
}

// Delete removes the record and persists. It does not touch the project's
// directories; the supervisor owns filesystem removal.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(s.projects, name)
	return s.saveLocked()
}

// saveLocked rewrites projects.json wholesale. Callers hold s.mu. The write
// goes to a temp file first and is renamed into place so a crash mid-write
// leaves the previous document intact.
func (s *Store) saveLocked() error {
	b, err := json.MarshalIndent(s.projects, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := s.flk.Lock(); err != nil {
		return fmt.Errorf("lock store file: %w", err)
	}
	defer func() { _ = s.flk.Unlock() }()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
