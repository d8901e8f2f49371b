package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"ecos/internal/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Store is a BlobStore on any S3-compatible service (MinIO, AWS S3).
type S3Store struct {
	client  *minio.Client
	log     *logger.Logger
	baseURL string
}

func NewS3Store(cfg Config, log *logger.Logger) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.S3Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		scheme := "http"
		if cfg.S3UseSSL {
			scheme = "https"
		}
		baseURL = (&url.URL{Scheme: scheme, Host: endpoint}).String()
	}
	log.Info("object storage initialized", "driver", DriverS3, "endpoint", endpoint, "public_base_url", baseURL)
	return &S3Store{client: client, log: log.With("service", "S3Store"), baseURL: baseURL}, nil
}

// EnsureBuckets creates any bucket that does not exist yet.
func (s *S3Store) EnsureBuckets(ctx context.Context, buckets ...string) error {
	for _, b := range buckets {
		exists, err := s.client.BucketExists(ctx, b)
		if err != nil {
			return fmt.Errorf("check bucket %q: %w", b, err)
		}
		if exists {
			continue
		}
		if err := s.client.MakeBucket(ctx, b, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %q: %w", b, err)
		}
		s.log.Info("bucket created", "bucket", b)
	}
	return nil
}

func (s *S3Store) Upload(ctx context.Context, bucket, prefix, filename string, data []byte) (string, error) {
	key := Key(prefix, filename)
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: ContentType(filename, data),
	})
	if err != nil {
		return "", fmt.Errorf("put s3 object %q: %w", key, err)
	}
	return s.URL(bucket, prefix, filename), nil
}

func (s *S3Store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    strings.Trim(prefix, "/") + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list s3 objects: %w", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Delete removes one object. S3 treats deleting a missing key as success;
// NoSuchKey from stricter implementations is ignored too.
func (s *S3Store) Delete(ctx context.Context, bucket, prefix, filename string) error {
	key := Key(prefix, filename)
	err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("delete s3 object %q: %w", key, err)
	}
	return nil
}

// URL is the object's path-style URL without any presigning query.
func (s *S3Store) URL(bucket, prefix, filename string) string {
	return publicURL(s.baseURL, bucket, prefix, filename)
}
