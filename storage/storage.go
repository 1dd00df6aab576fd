// Package storage keeps the serialized subscription list in a single blob, either a
// Cloud Storage object or a local file. A missing blob reads as empty.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
)

func retryOpts(ctx context.Context, logger *slog.Logger, op, key string) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30 * time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Info("retrying blob operation after error", "op", op, "attempt", n, "key", key, "error", err)
		}),
	}
}

// GCS is a blob stored as one Cloud Storage object.
type GCS struct {
	client *storage.Client
	bucket string
	object string
	logger *slog.Logger
}

// NewGCS returns a blob for bucket/object.
func NewGCS(client *storage.Client, bucket, object string, logger *slog.Logger) *GCS {
	if logger == nil {
		logger = slog.Default()
	}
	return &GCS{client: client, bucket: bucket, object: object, logger: logger.With("component", "blob_gcs")}
}

func (g *GCS) Read(ctx context.Context) ([]byte, error) {
	var data []byte
	missing := false
	err := retry.Do(
		func() error {
			r, err := g.client.Bucket(g.bucket).Object(g.object).NewReader(ctx)
			if err != nil {
				if errors.Is(err, storage.ErrObjectNotExist) {
					missing = true
					return nil
				}
				return fmt.Errorf("open storage reader: %w", err)
			}
			defer func() {
				if cerr := r.Close(); cerr != nil {
					g.logger.Warn("failed to close storage reader", "error", cerr)
				}
			}()
			b, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("read from storage: %w", err)
			}
			data = b
			return nil
		},
		retryOpts(ctx, g.logger, "read", g.object)...,
	)
	if err != nil {
		return nil, fmt.Errorf("load %s/%s after retries: %w", g.bucket, g.object, err)
	}
	if missing {
		g.logger.Debug("subscription blob does not exist yet", "bucket", g.bucket, "object", g.object)
		return nil, nil
	}
	return data, nil
}

func (g *GCS) Write(ctx context.Context, data []byte) error {
	err := retry.Do(
		func() error {
			w := g.client.Bucket(g.bucket).Object(g.object).NewWriter(ctx)
			w.ContentType = "application/json"
			if _, err := w.Write(data); err != nil {
				if cerr := w.Close(); cerr != nil {
					g.logger.Warn("failed to close writer after error", "error", cerr)
				}
				return fmt.Errorf("write to storage: %w", err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("close storage writer: %w", err)
			}
			return nil
		},
		retryOpts(ctx, g.logger, "write", g.object)...,
	)
	if err != nil {
		return fmt.Errorf("save %s/%s after retries: %w", g.bucket, g.object, err)
	}
	g.logger.Debug("subscription blob saved", "bytes", len(data))
	return nil
}

// File is a blob stored in a local file, replaced atomically on write.
type File struct {
	path   string
	logger *slog.Logger
}

// NewFile returns a blob at path. The parent directory is created on first write.
func NewFile(path string, logger *slog.Logger) *File {
	if logger == nil {
		logger = slog.Default()
	}
	return &File{path: path, logger: logger.With("component", "blob_file")}
}

func (f *File) Read(context.Context) ([]byte, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return b, nil
}

func (f *File) Write(ctx context.Context, data []byte) error {
	return retry.Do(
		func() error {
			if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
				return retry.Unrecoverable(fmt.Errorf("create dir: %w", err))
			}
			tmp := f.path + ".tmp"
			if err := os.WriteFile(tmp, data, 0o600); err != nil {
				return fmt.Errorf("write temp file: %w", err)
			}
			if err := os.Rename(tmp, f.path); err != nil {
				return fmt.Errorf("replace %s: %w", f.path, err)
			}
			return nil
		},
		append(retryOpts(ctx, f.logger, "write", f.path), retry.Delay(100*time.Millisecond))...,
	)
}
