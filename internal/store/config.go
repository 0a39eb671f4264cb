package store

import "errors"

// Config selects a backend and carries its parameters.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`

	// DataDir holds the sqlite database and the jsonl file.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// DSN is the postgres connection string.
	DSN string `json:"dsn" yaml:"dsn"`

	// S3 settings. Credentials fall back to the default AWS chain.
	Bucket          string `json:"bucket" yaml:"bucket"`
	Prefix          string `json:"prefix" yaml:"prefix"`
	Region          string `json:"region" yaml:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	PathStyle       bool   `json:"path_style" yaml:"path_style"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendJSONL    = "jsonl"
	BackendS3       = "s3"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrDSNRequired    = errors.New("postgres backend requires a dsn")
	ErrBucketRequired = errors.New("s3 backend requires a bucket")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendPostgres: true,
	BackendJSONL:    true,
	BackendS3:       true,
}

// Backends returns the accepted backend names.
func Backends() []string {
	return []string{BackendJSONL, BackendPostgres, BackendS3, BackendSQLite}
}

// Validate checks that the Config is well-formed. It returns one of the
// sentinel errors above on failure. An empty DataDir is valid and means the
// working directory.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}

	switch c.Backend {
	case BackendPostgres:
		if c.DSN == "" {
			return ErrDSNRequired
		}
	case BackendS3:
		if c.Bucket == "" {
			return ErrBucketRequired
		}
	}
	return nil
}
