package storage

import (
	"context"
	"io"
	"strings"

	"github.com/qnahub/apiserver/config"
	"github.com/samber/oops"
)

// ObjectStorage defines the object operations the archive needs.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Bucket() string
	Close() error
}

// Open builds the backend selected by cfg.Backend and makes sure its bucket
// exists. It returns nil and no error when no backend is configured.
func Open(ctx context.Context, cfg config.AuditConfig) (ObjectStorage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return nil, nil
	case "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, oops.Code("STORAGE_UNKNOWN_BACKEND").With("backend", cfg.Backend).Errorf("unknown audit backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		_ = backend.Close()
		return nil, oops.Code("STORAGE_BUCKET").With("bucket", backend.Bucket()).Wrap(err)
	}
	return backend, nil
}
