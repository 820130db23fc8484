package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// GCS stores blobs in a Google Cloud Storage bucket.
// Locations are gs://bucket/key URIs.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS creates a GCS store for the given bucket.
// Credentials come from the environment (Application Default Credentials).
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Upload writes data to the bucket and returns its gs:// URI.
func (g *GCS) Upload(ctx context.Context, key string, data []byte) (string, error) {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("writing object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing object %q: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, key), nil
}

// Download fetches an object by its gs:// URI.
func (g *GCS) Download(ctx context.Context, location string) ([]byte, error) {
	bucket, key, err := parseGCSLocation(location)
	if err != nil {
		return nil, err
	}

	r, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening object %q: %w", location, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", location, err)
	}
	return data, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func parseGCSLocation(location string) (bucket, key string, err error) {
	trimmed, ok := strings.CutPrefix(location, "gs://")
	if !ok {
		return "", "", fmt.Errorf("location %q is not a gs:// URI", location)
	}
	bucket, key, ok = strings.Cut(trimmed, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("location %q missing bucket or key", location)
	}
	return bucket, key, nil
}
