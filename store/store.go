// Package store persists the listing batch between runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pevans/propwatch/listing"
)

// Store kinds accepted by Open.
const (
	KindFile     = "file"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

// Custom errors for store operations
var (
	ErrCorruptStore = errors.New("record store is corrupt")
	ErrUnknownKind  = errors.New("store type must be file, sqlite, or postgres")
)

// RecordStore holds the batch persisted by the most recent run that found new
// listings.
type RecordStore interface {
	// Load returns the persisted batch. A store that has never been written
	// returns an empty batch.
	Load(ctx context.Context) (listing.Batch, error)
	// Replace overwrites the persisted batch.
	Replace(ctx context.Context, batch listing.Batch) error
	Close() error
}

// RunRecorder is implemented by stores that keep a run history.
type RunRecorder interface {
	RecordRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Run summarizes one execution of the watcher.
type Run struct {
	RunID         uuid.UUID `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Queries       int       `json:"queries"`
	FailedQueries []string  `json:"failed_queries"`
	Collected     int       `json:"collected"`
	New           int       `json:"new"`
	Notified      bool      `json:"notified"`
	Error         *string   `json:"error,omitempty"`
}

// Open creates the record store of the given kind. For files the dsn is the
// path of the JSON document; for sqlite it is the database path.
func Open(kind, dsn string) (RecordStore, error) {
	switch kind {
	case KindFile:
		return NewFileStore(dsn)
	case KindSQLite:
		return NewSQLiteStore(dsn)
	case KindPostgres:
		return NewPostgresStore(dsn)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
