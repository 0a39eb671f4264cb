// Package sqlstore keeps archived bags in a single SQL table. The same code
// serves sqlite (modernc.org/sqlite, a file in the data directory) and
// postgres (pgx through database/sql).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/propbag/internal/logging"
	"github.com/mesh-intelligence/propbag/internal/store"
	"github.com/mesh-intelligence/propbag/pkg/propbag"
	"github.com/mesh-intelligence/propbag/pkg/propbag/archive"
)

// DatabaseFile is the sqlite database name inside the data directory.
const DatabaseFile = "propbag.db"

var _ store.Store = (*Store)(nil)

// Store implements store.Store on database/sql.
type Store struct {
	mu       sync.RWMutex
	closed   bool
	db       *sql.DB
	dialect  dialect
	registry *archive.Registry
	logger   *zap.Logger
}

// OpenSQLite opens, creating if needed, the sqlite database in dataDir.
func OpenSQLite(ctx context.Context, dataDir string, reg *archive.Registry, logger *zap.Logger) (*Store, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	dsn := filepath.Join(dataDir, DatabaseFile)
	s, err := open(ctx, sqliteDialect, dsn, reg, logger)
	if err != nil {
		return nil, err
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	s.db.SetMaxOpenConns(1)
	return s, nil
}

// OpenPostgres connects to the postgres database at dsn.
func OpenPostgres(ctx context.Context, dsn string, reg *archive.Registry, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, store.ErrDSNRequired
	}
	return open(ctx, postgresDialect, dsn, reg, logger)
}

func open(ctx context.Context, d dialect, dsn string, reg *archive.Registry, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	if _, err := db.ExecContext(ctx, d.createBags()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure bags table: %w", err)
	}

	if reg == nil {
		reg = archive.DefaultRegistry()
	}

	s := &Store{
		db:       db,
		dialect:  d,
		registry: reg,
		logger:   logging.OrNop(logger).With(zap.String("backend", d.name)),
	}
	s.logger.Debug("store opened")
	return s, nil
}

// DB exposes the underlying sql.DB for tests.
func (s *Store) DB() *sql.DB { return s.db }

// begin guards every operation against a closed store. The returned func
// releases the read lock.
func (s *Store) begin() (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, store.ErrClosed
	}
	return s.mu.RUnlock, nil
}

func (s *Store) Save(ctx context.Context, name string, bag *propbag.Bag) (string, error) {
	if err := store.ValidateName(name); err != nil {
		return "", err
	}

	done, err := s.begin()
	if err != nil {
		return "", err
	}
	defer done()

	payload, err := store.EncodeBag(s.registry, bag)
	if err != nil {
		return "", fmt.Errorf("encoding bag %s: %w", name, err)
	}

	rev := store.NewRevision()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(upsertBag), name, rev, string(payload), now); err != nil {
		return "", fmt.Errorf("saving bag %s: %w", name, err)
	}

	s.logger.Debug("bag saved",
		zap.String("name", name),
		zap.String("revision", rev),
		zap.Int("properties", bag.Size()))
	return rev, nil
}

func (s *Store) Load(ctx context.Context, name string) (*propbag.Bag, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	var payload []byte
	err = s.db.QueryRowContext(ctx, s.dialect.rebind(selectPayload), name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrBagNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("loading bag %s: %w", name, err)
	}

	bag, err := store.DecodeBag(s.registry, payload)
	if err != nil {
		return nil, fmt.Errorf("decoding bag %s: %w", name, err)
	}
	return bag, nil
}

func (s *Store) Stat(ctx context.Context, name string) (store.Info, error) {
	if err := store.ValidateName(name); err != nil {
		return store.Info{}, err
	}

	done, err := s.begin()
	if err != nil {
		return store.Info{}, err
	}
	defer done()

	var rev, updated string
	err = s.db.QueryRowContext(ctx, s.dialect.rebind(selectInfo), name).Scan(&rev, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Info{}, fmt.Errorf("%w: %s", store.ErrBagNotFound, name)
	}
	if err != nil {
		return store.Info{}, fmt.Errorf("reading bag %s: %w", name, err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return store.Info{}, fmt.Errorf("parsing updated_at of %s: %w", name, err)
	}

	return store.Info{Name: name, Revision: rev, UpdatedAt: updatedAt}, nil
}

func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	if err := store.ValidateName(name); err != nil {
		return false, err
	}

	done, err := s.begin()
	if err != nil {
		return false, err
	}
	defer done()

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(deleteBag), name)
	if err != nil {
		return false, fmt.Errorf("deleting bag %s: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting bag %s: %w", name, err)
	}

	if n > 0 {
		s.logger.Debug("bag deleted", zap.String("name", name))
	}
	return n > 0, nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(selectNames))
	if err != nil {
		return nil, fmt.Errorf("listing bags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("listing bags: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing bags: %w", err)
	}

	// collations differ between databases; list in byte order everywhere
	slices.Sort(names)
	return names, nil
}

// Close releases the database. It is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug("store closed")
	return s.db.Close()
}
