package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pevans/propwatch/listing"
)

// DefaultFilePath is the record document used when none is configured.
const DefaultFilePath = "query_results.json"

// FileStore keeps the batch as a flat JSON list in a single file.
type FileStore struct {
	path string
}

// fileRecord mirrors listing.Listing but tells a missing price_per_m2 apart
// from zero.
type fileRecord struct {
	Location     string  `json:"location"`
	Area         float64 `json:"square_footage"`
	Price        float64 `json:"price"`
	Link         string  `json:"link"`
	BuiltYear    *int    `json:"built_year"`
	OriginURL    string  `json:"origin_url"`
	PricePerArea *int    `json:"price_per_m2"`
}

// NewFileStore creates a file store at path, creating the parent directory
// if needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultFilePath
	}

	// 0700: owner-only access
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &FileStore{path: path}, nil
}

// Path returns the location of the record document.
func (fs *FileStore) Path() string {
	return fs.path
}

// Load reads the record document. A missing file is an empty batch.
func (fs *FileStore) Load(ctx context.Context) (listing.Batch, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return listing.Batch{}, nil // Nothing persisted yet (not an error)
		}
		return nil, fmt.Errorf("failed to read record store: %w", err)
	}

	var records []fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, fs.path, err)
	}

	batch := make(listing.Batch, len(records))
	for i, r := range records {
		l := listing.Listing{
			Location:  r.Location,
			Area:      r.Area,
			Price:     r.Price,
			Link:      r.Link,
			BuiltYear: r.BuiltYear,
			OriginURL: r.OriginURL,
		}
		switch {
		case r.PricePerArea != nil:
			l.PricePerArea = *r.PricePerArea
		case r.Area > 0:
			l.PricePerArea = listing.PricePerArea(r.Price, r.Area)
		default:
			return nil, fmt.Errorf("%w: %s: record %d has no usable area", ErrCorruptStore, fs.path, i)
		}
		batch.Add(l)
	}

	return batch, nil
}

// Replace overwrites the record document. The new content is written to a
// temporary file in the same directory and renamed over the old one.
func (fs *FileStore) Replace(ctx context.Context, batch listing.Batch) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(batch.Sorted()); err != nil {
		return fmt.Errorf("failed to marshal listings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), filepath.Base(fs.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write record store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync record store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close record store: %w", err)
	}

	// 0600: owner-only read/write
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to set record store permissions: %w", err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		return fmt.Errorf("failed to replace record store: %w", err)
	}

	return nil
}

// Close is a no-op for file stores.
func (fs *FileStore) Close() error {
	return nil
}
