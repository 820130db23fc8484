// Package blob stores raw uploaded documents and hands them back to the
// ingestion pipeline by storage location.
//
// Two implementations: GCS for deployments, a local directory for
// development. Locations are opaque strings recorded on the document row;
// only the store that minted a location can resolve it.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store persists raw document bytes.
type Store interface {
	// Upload writes data under key and returns the storage location to
	// record on the document.
	Upload(ctx context.Context, key string, data []byte) (string, error)

	// Download fetches the bytes previously stored at location.
	Download(ctx context.Context, location string) ([]byte, error)
}

// Dir is a filesystem-backed Store for local development.
// Keys become file paths relative to the root directory; traversal outside
// the root is rejected by os.Root.
type Dir struct {
	root string
}

// NewDir creates the directory if needed and returns a Dir store.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &Dir{root: root}, nil
}

// Upload writes data to a file under the root directory.
func (d *Dir) Upload(_ context.Context, key string, data []byte) (string, error) {
	root, err := os.OpenRoot(d.root)
	if err != nil {
		return "", fmt.Errorf("opening blob root: %w", err)
	}
	defer root.Close()

	if dir := filepath.Dir(key); dir != "." {
		if err := root.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("creating blob subdirectory: %w", err)
		}
	}

	f, err := root.Create(key)
	if err != nil {
		return "", fmt.Errorf("creating blob file %q: %w", key, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("writing blob file %q: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing blob file %q: %w", key, err)
	}
	return key, nil
}

// Download reads a file under the root directory.
func (d *Dir) Download(_ context.Context, location string) ([]byte, error) {
	if strings.HasPrefix(location, "gs://") {
		return nil, fmt.Errorf("location %q belongs to a GCS store", location)
	}

	root, err := os.OpenRoot(d.root)
	if err != nil {
		return nil, fmt.Errorf("opening blob root: %w", err)
	}
	defer root.Close()

	f, err := root.Open(location)
	if err != nil {
		return nil, fmt.Errorf("opening blob %q: %w", location, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading blob %q: %w", location, err)
	}
	return data, nil
}
