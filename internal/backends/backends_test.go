package backends

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/propbag/internal/store"
	"github.com/mesh-intelligence/propbag/internal/store/jsonl"
	"github.com/mesh-intelligence/propbag/internal/store/s3store"
	"github.com/mesh-intelligence/propbag/internal/store/sqlstore"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name   string
		config store.Config
		check  func(t *testing.T, s store.Store)
	}{
		{
			name:   "sqlite",
			config: store.Config{Backend: store.BackendSQLite},
			check: func(t *testing.T, s store.Store) {
				assert.IsType(t, &sqlstore.Store{}, s)
			},
		},
		{
			name:   "jsonl",
			config: store.Config{Backend: store.BackendJSONL},
			check: func(t *testing.T, s store.Store) {
				assert.IsType(t, &jsonl.Store{}, s)
			},
		},
		{
			name:   "s3",
			config: store.Config{Backend: store.BackendS3, Bucket: "bags", AccessKeyID: "AKIA", SecretAccessKey: "SECRET"},
			check: func(t *testing.T, s store.Store) {
				assert.IsType(t, &s3store.Store{}, s)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			cfg.DataDir = t.TempDir()

			s, err := Open(context.Background(), cfg, nil, nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			tt.check(t, s)
		})
	}
}

func TestOpenInvalidConfig(t *testing.T) {
	tests := []struct {
		config  store.Config
		wantErr error
	}{
		{config: store.Config{}, wantErr: store.ErrBackendEmpty},
		{config: store.Config{Backend: "mysql"}, wantErr: store.ErrBackendUnknown},
		{config: store.Config{Backend: store.BackendPostgres}, wantErr: store.ErrDSNRequired},
		{config: store.Config{Backend: store.BackendS3}, wantErr: store.ErrBucketRequired},
	}

	for _, tt := range tests {
		_, err := Open(context.Background(), tt.config, nil, nil)
		assert.ErrorIs(t, err, tt.wantErr)
	}
}
