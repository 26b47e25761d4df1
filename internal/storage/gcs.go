package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// bucket is the subset of a GCS bucket handle used by GCSImageStore.
type bucket interface {
	NewWriter(ctx context.Context, name, contentType string) io.WriteCloser
	Delete(ctx context.Context, name string) error
}

type gcsBucket struct{ h *gcs.BucketHandle }

func (b gcsBucket) NewWriter(ctx context.Context, name, contentType string) io.WriteCloser {
	w := b.h.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"
	return w
}

func (b gcsBucket) Delete(ctx context.Context, name string) error {
	err := b.h.Object(name).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}

// GCSImageStore keeps images in a Google Cloud Storage bucket. References are
// public object URLs.
type GCSImageStore struct {
	client  *gcs.Client
	bucket  bucket
	baseURL string
}

// NewGCSImageStore opens a storage client using application default
// credentials unless opts override them. STORAGE_EMULATOR_HOST is honoured
// by the client library.
func NewGCSImageStore(ctx context.Context, bucketName string, opts ...option.ClientOption) (*GCSImageStore, error) {
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	s := newGCSImageStore(gcsBucket{h: client.Bucket(bucketName)}, bucketName)
	s.client = client
	return s, nil
}

func newGCSImageStore(b bucket, bucketName string) *GCSImageStore {
	return &GCSImageStore{
		bucket:  b,
		baseURL: fmt.Sprintf("https://storage.googleapis.com/%s/", bucketName),
	}
}

func (s *GCSImageStore) Save(ctx context.Context, name string, r io.Reader, contentType string) (string, error) {
	w := s.bucket.NewWriter(ctx, name, contentType)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}
	return s.baseURL + url.PathEscape(name), nil
}

func (s *GCSImageStore) Delete(ctx context.Context, ref string) error {
	name, err := url.PathUnescape(strings.TrimPrefix(ref, s.baseURL))
	if err != nil {
		return err
	}
	return s.bucket.Delete(ctx, name)
}

// Close releases the underlying client.
func (s *GCSImageStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
