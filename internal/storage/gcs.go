package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"ecos/internal/pkg/logger"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore is a BlobStore on Google Cloud Storage. Bucket names are used as
// given.
type GCSStore struct {
	client  *storage.Client
	log     *logger.Logger
	baseURL string
}

func NewGCSStore(ctx context.Context, cfg Config, log *logger.Logger) (*GCSStore, error) {
	var opts []option.ClientOption
	switch {
	case cfg.GCSEmulatorHost != "":
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(cfg.GCSEmulatorHost, "/"))
		opts = append(opts, option.WithoutAuthentication())
	case cfg.GCSCredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile), option.WithScopes(storage.ScopeReadWrite))
	default:
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com"
		if cfg.GCSEmulatorHost != "" {
			baseURL = strings.TrimRight(cfg.GCSEmulatorHost, "/")
		}
	}
	log.Info("object storage initialized", "driver", DriverGCS, "public_base_url", baseURL)
	return &GCSStore{client: client, log: log.With("service", "GCSStore"), baseURL: baseURL}, nil
}

func (s *GCSStore) Upload(ctx context.Context, bucket, prefix, filename string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	key := Key(prefix, filename)
	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = ContentType(filename, data)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gcs object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer %q: %w", key, err)
	}
	return s.URL(bucket, prefix, filename), nil
}

func (s *GCSStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: strings.Trim(prefix, "/") + "/"})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gcs objects: %w", err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (s *GCSStore) Delete(ctx context.Context, bucket, prefix, filename string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	key := Key(prefix, filename)
	err := s.client.Bucket(bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete gcs object %q in bucket %q: %w", key, bucket, err)
	}
	return nil
}

func (s *GCSStore) URL(bucket, prefix, filename string) string {
	return publicURL(s.baseURL, bucket, prefix, filename)
}

func (s *GCSStore) Close() error { return s.client.Close() }
