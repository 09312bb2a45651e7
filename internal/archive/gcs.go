package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSArchiver writes uploads to a Cloud Storage bucket.
type GCSArchiver struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	logger *slog.Logger
}

// NewGCSArchiver returns nil when bucket is empty so archiving stays disabled.
func NewGCSArchiver(ctx context.Context, bucket string, logger *slog.Logger, opts ...option.ClientOption) (*GCSArchiver, error) {
	if bucket == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSArchiver{client: client, bucket: client.Bucket(bucket), name: bucket, logger: logger}, nil
}

// Archive writes data under key unless the object already exists.
func (a *GCSArchiver) Archive(ctx context.Context, key string, data []byte, mimeType string) error {
	start := time.Now()
	w := a.bucket.Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = mimeType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", a.name, key, err)
	}
	if err := w.Close(); err != nil {
		if alreadyExists(err) {
			a.logger.Info("archive.gcs.exists", "bucket", a.name, "key", key)
			return nil
		}
		return fmt.Errorf("finalize gs://%s/%s: %w", a.name, key, err)
	}
	a.logger.Info("archive.gcs.ok", "bucket", a.name, "key", key, "bytes", len(data), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func (a *GCSArchiver) Close() error {
	return a.client.Close()
}

func alreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
