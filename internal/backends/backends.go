// Package backends opens the store.Store selected by a store.Config.
package backends

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/propbag/internal/store"
	"github.com/mesh-intelligence/propbag/internal/store/jsonl"
	"github.com/mesh-intelligence/propbag/internal/store/s3store"
	"github.com/mesh-intelligence/propbag/internal/store/sqlstore"
	"github.com/mesh-intelligence/propbag/pkg/propbag/archive"
)

// Open validates cfg and opens the matching backend. A nil registry means
// archive.DefaultRegistry.
func Open(ctx context.Context, cfg store.Config, reg *archive.Registry, logger *zap.Logger) (store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		s   store.Store
		err error
	)

	switch cfg.Backend {
	case store.BackendSQLite:
		s, err = sqlstore.OpenSQLite(ctx, cfg.DataDir, reg, logger)
	case store.BackendPostgres:
		s, err = sqlstore.OpenPostgres(ctx, cfg.DSN, reg, logger)
	case store.BackendJSONL:
		s, err = jsonl.Open(cfg.DataDir, reg, logger)
	case store.BackendS3:
		s, err = s3store.New(ctx, cfg, reg, logger)
	default:
		// unreachable once Validate passed
		return nil, fmt.Errorf("%w: %s", store.ErrBackendUnknown, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Backend, err)
	}
	return s, nil
}
