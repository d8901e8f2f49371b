// Package storage stores image bytes in an object store. Keys are
// "{prefix}/{filename}" inside a bucket; the relational database only keeps
// filenames.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"ecos/internal/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
)

// BlobStore is the object store contract. Delete of a missing key succeeds.
type BlobStore interface {
	Upload(ctx context.Context, bucket, prefix, filename string, data []byte) (string, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Delete(ctx context.Context, bucket, prefix, filename string) error
	URL(bucket, prefix, filename string) string
}

const (
	DriverLocal  = "local"
	DriverMemory = "memory"
	DriverGCS    = "gcs"
	DriverS3     = "s3"
)

type Config struct {
	Driver        string
	LocalDir      string
	PublicBaseURL string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	GCSCredentialsFile string
	GCSEmulatorHost    string
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg Config, log *logger.Logger) (BlobStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverLocal:
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	case DriverMemory:
		return NewMemoryStore(cfg.PublicBaseURL), nil
	case DriverGCS:
		return NewGCSStore(ctx, cfg, log)
	case DriverS3:
		return NewS3Store(cfg, log)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// Key joins prefix and filename into an object key.
func Key(prefix, filename string) string {
	return path.Join(strings.Trim(prefix, "/"), filename)
}

// Split is the inverse of Key.
func Split(key string) (prefix, filename string) {
	prefix, filename = path.Split(key)
	return strings.TrimSuffix(prefix, "/"), filename
}

// DeletePrefix removes every object under prefix. Every key is attempted;
// failures are logged and returned joined.
func DeletePrefix(ctx context.Context, store BlobStore, bucket, prefix string, log *logger.Logger) error {
	keys, err := store.List(ctx, bucket, prefix)
	if err != nil {
		return fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
	}
	var errs []error
	for _, key := range keys {
		p, name := Split(key)
		if err := store.Delete(ctx, bucket, p, name); err != nil {
			if log != nil {
				log.Warn("blob delete failed", "bucket", bucket, "key", key, "error", err)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ContentType sniffs data, falling back to the filename extension.
func ContentType(filename string, data []byte) string {
	if len(data) > 0 {
		if m := mimetype.Detect(data); m != nil && m.String() != "application/octet-stream" {
			return m.String()
		}
	}
	if m := mimetype.Lookup(extensionMIME(filename)); m != nil {
		return m.String()
	}
	return "application/octet-stream"
}

func extensionMIME(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	}
	return ""
}

func publicURL(base, bucket, prefix, filename string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + Key(prefix, filename)
}
