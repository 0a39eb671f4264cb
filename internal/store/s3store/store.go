// Package s3store keeps archived bags as objects in an S3 compatible bucket
// (AWS S3 or MinIO), one object per bag under an optional key prefix.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/propbag/internal/logging"
	"github.com/mesh-intelligence/propbag/internal/store"
	"github.com/mesh-intelligence/propbag/pkg/propbag"
	"github.com/mesh-intelligence/propbag/pkg/propbag/archive"
)

const (
	defaultRegion = "us-east-1"
	objectSuffix  = ".json"
	contentType   = "application/json"

	metaRevision  = "revision"
	metaUpdatedAt = "updated-at"
)

// Client is the subset of *s3.Client the store uses.
type Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ store.Store = (*Store)(nil)

// Store implements store.Store on an S3 bucket.
type Store struct {
	mu       sync.RWMutex
	closed   bool
	client   Client
	bucket   string
	prefix   string
	registry *archive.Registry
	logger   *zap.Logger
}

// New builds an S3 client from cfg and returns a store on cfg.Bucket.
// Static credentials are used when cfg carries them, the default AWS chain
// otherwise.
func New(ctx context.Context, cfg store.Config, reg *archive.Registry, logger *zap.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, store.ErrBucketRequired
	}

	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewWithClient(client, cfg.Bucket, cfg.Prefix, reg, logger), nil
}

// NewWithClient returns a store using client. prefix is prepended to every
// object key; a trailing slash is added when missing.
func NewWithClient(client Client, bucket, prefix string, reg *archive.Registry, logger *zap.Logger) *Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if reg == nil {
		reg = archive.DefaultRegistry()
	}

	return &Store{
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
		registry: reg,
		logger: logging.OrNop(logger).With(
			zap.String("backend", store.BackendS3),
			zap.String("bucket", bucket)),
	}
}

func (s *Store) key(name string) string {
	return s.prefix + name + objectSuffix
}

func (s *Store) begin() (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, store.ErrClosed
	}
	return s.mu.RUnlock, nil
}

// isNotFound reports whether err is the S3 answer for a missing object.
// GetObject reports NoSuchKey, HeadObject a bare NotFound.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
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
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			metaRevision:  rev,
			metaUpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return "", fmt.Errorf("saving bag %s: %w", name, err)
	}

	s.logger.Debug("bag saved", zap.String("name", name), zap.String("revision", rev))
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

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", store.ErrBagNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("loading bag %s: %w", name, err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading bag %s: %w", name, err)
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

	out, err := s.head(ctx, name)
	if err != nil {
		return store.Info{}, err
	}

	info := store.Info{Name: name, Revision: out.Metadata[metaRevision]}
	if updated, err := time.Parse(time.RFC3339Nano, out.Metadata[metaUpdatedAt]); err == nil {
		info.UpdatedAt = updated
	} else {
		info.UpdatedAt = aws.ToTime(out.LastModified)
	}
	return info, nil
}

func (s *Store) head(ctx context.Context, name string) (*s3.HeadObjectOutput, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", store.ErrBagNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading bag %s: %w", name, err)
	}
	return out, nil
}

// Delete removes the object for name. S3 deletes are silent about missing
// keys, so existence is checked with a HEAD first.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	if err := store.ValidateName(name); err != nil {
		return false, err
	}

	done, err := s.begin()
	if err != nil {
		return false, err
	}
	defer done()

	if _, err := s.head(ctx, name); err != nil {
		if errors.Is(err, store.ErrBagNotFound) {
			return false, nil
		}
		return false, err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return false, fmt.Errorf("deleting bag %s: %w", name, err)
	}

	s.logger.Debug("bag deleted", zap.String("name", name))
	return true, nil
}

// List pages through the prefix and returns the names of the objects that
// look like bags.
func (s *Store) List(ctx context.Context) ([]string, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	names := []string{}
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("listing bags: %w", err)
		}

		for _, obj := range out.Contents {
			name, ok := strings.CutSuffix(strings.TrimPrefix(aws.ToString(obj.Key), s.prefix), objectSuffix)
			if !ok || store.ValidateName(name) != nil {
				continue
			}
			names = append(names, name)
		}

		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}

	slices.Sort(names)
	return names, nil
}

// Close marks the store closed. The S3 client holds no resources to release.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
