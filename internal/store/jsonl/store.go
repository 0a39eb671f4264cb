// Package jsonl keeps archived bags in a single JSON Lines file, one bag per
// line. The file is loaded on open and rewritten atomically on every change,
// so it stays diff friendly and can be committed alongside code.
package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/propbag/internal/logging"
	"github.com/mesh-intelligence/propbag/internal/store"
	"github.com/mesh-intelligence/propbag/pkg/propbag"
	"github.com/mesh-intelligence/propbag/pkg/propbag/archive"
)

// FileName is the bag file inside the data directory.
const FileName = "bags.jsonl"

// bagJSON is one line of the bag file.
type bagJSON struct {
	Name      string          `json:"name"`
	Revision  string          `json:"revision"`
	UpdatedAt string          `json:"updated_at"`
	Archive   json.RawMessage `json:"archive"`
}

var _ store.Store = (*Store)(nil)

// Store implements store.Store on a JSONL file.
type Store struct {
	mu       sync.RWMutex
	closed   bool
	path     string
	bags     map[string]bagJSON
	registry *archive.Registry
	logger   *zap.Logger
}

// Open loads the bag file in dataDir, creating the directory if needed.
// Malformed lines are skipped and logged.
func Open(dataDir string, reg *archive.Registry, logger *zap.Logger) (*Store, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	if reg == nil {
		reg = archive.DefaultRegistry()
	}

	s := &Store{
		path:     filepath.Join(dataDir, FileName),
		bags:     map[string]bagJSON{},
		registry: reg,
		logger:   logging.OrNop(logger).With(zap.String("backend", store.BackendJSONL)),
	}

	lines, skipped, err := readLines(s.path)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		var rec bagJSON
		if err := json.Unmarshal(line, &rec); err != nil || store.ValidateName(rec.Name) != nil {
			skipped++
			continue
		}
		s.bags[rec.Name] = rec
	}

	if skipped > 0 {
		s.logger.Warn("skipped malformed lines", zap.String("path", s.path), zap.Int("lines", skipped))
	}
	s.logger.Debug("store opened", zap.String("path", s.path), zap.Int("bags", len(s.bags)))
	return s, nil
}

// Path returns the location of the bag file.
func (s *Store) Path() string { return s.path }

// persistLocked writes bags to disk. The caller holds the write lock and
// commits bags to memory only after persistLocked succeeds.
func (s *Store) persistLocked(bags map[string]bagJSON) error {
	records := make([]json.RawMessage, 0, len(bags))
	for _, name := range slices.Sorted(maps.Keys(bags)) {
		data, err := json.Marshal(bags[name])
		if err != nil {
			return fmt.Errorf("encoding bag %s: %w", name, err)
		}
		records = append(records, data)
	}
	return writeLines(s.path, records)
}

func (s *Store) Save(_ context.Context, name string, bag *propbag.Bag) (string, error) {
	if err := store.ValidateName(name); err != nil {
		return "", err
	}

	payload, err := store.EncodeBag(s.registry, bag)
	if err != nil {
		return "", fmt.Errorf("encoding bag %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", store.ErrClosed
	}

	rec := bagJSON{
		Name:      name,
		Revision:  store.NewRevision(),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Archive:   payload,
	}

	next := maps.Clone(s.bags)
	next[name] = rec
	if err := s.persistLocked(next); err != nil {
		return "", fmt.Errorf("saving bag %s: %w", name, err)
	}
	s.bags = next

	s.logger.Debug("bag saved", zap.String("name", name), zap.String("revision", rec.Revision))
	return rec.Revision, nil
}

func (s *Store) lookup(name string) (bagJSON, error) {
	if err := store.ValidateName(name); err != nil {
		return bagJSON{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return bagJSON{}, store.ErrClosed
	}

	rec, ok := s.bags[name]
	if !ok {
		return bagJSON{}, fmt.Errorf("%w: %s", store.ErrBagNotFound, name)
	}
	return rec, nil
}

func (s *Store) Load(_ context.Context, name string) (*propbag.Bag, error) {
	rec, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	bag, err := store.DecodeBag(s.registry, rec.Archive)
	if err != nil {
		return nil, fmt.Errorf("decoding bag %s: %w", name, err)
	}
	return bag, nil
}

func (s *Store) Stat(_ context.Context, name string) (store.Info, error) {
	rec, err := s.lookup(name)
	if err != nil {
		return store.Info{}, err
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, rec.UpdatedAt)
	if err != nil {
		return store.Info{}, fmt.Errorf("parsing updated_at of %s: %w", name, err)
	}
	return store.Info{Name: name, Revision: rec.Revision, UpdatedAt: updatedAt}, nil
}

func (s *Store) Delete(_ context.Context, name string) (bool, error) {
	if err := store.ValidateName(name); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, store.ErrClosed
	}
	if _, ok := s.bags[name]; !ok {
		return false, nil
	}

	next := maps.Clone(s.bags)
	delete(next, name)
	if err := s.persistLocked(next); err != nil {
		return false, fmt.Errorf("deleting bag %s: %w", name, err)
	}
	s.bags = next

	s.logger.Debug("bag deleted", zap.String("name", name))
	return true, nil
}

func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	return slices.Sorted(maps.Keys(s.bags)), nil
}

// Close drops the in-memory index. Every change is already on disk.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.bags = nil
	return nil
}
