package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pevans/propwatch/listing"
)

// dialect captures what differs between the supported SQL databases.
type dialect struct {
	name       string
	floatType  string
	positional bool // $1, $2, ... instead of ?
}

var (
	sqliteDialect   = dialect{name: "sqlite3", floatType: "REAL"}
	postgresDialect = dialect{name: "postgres", floatType: "DOUBLE PRECISION", positional: true}
)

// rebind rewrites ? placeholders for dialects that use positional ones.
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore keeps the batch and the run history in a SQL database.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLiteStore creates a store backed by the SQLite database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	db, err := sql.Open(sqliteDialect.name, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newSQLStore(db, sqliteDialect)
}

// NewPostgresStore creates a store backed by the PostgreSQL database at dsn.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open(postgresDialect.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newSQLStore(db, postgresDialect)
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	store := &SQLStore{db: db, dialect: d}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates the listings and runs tables if they don't exist.
func (s *SQLStore) initSchema() error {
	schema := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS listings (
			link TEXT NOT NULL,
			location TEXT NOT NULL,
			square_footage %[1]s NOT NULL,
			price %[1]s NOT NULL,
			built_year INTEGER,
			origin_url TEXT NOT NULL,
			price_per_m2 INTEGER NOT NULL
		)`, s.dialect.floatType),
		`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			queries INTEGER NOT NULL,
			failed_queries TEXT NOT NULL,
			collected INTEGER NOT NULL,
			new_listings INTEGER NOT NULL,
			notified INTEGER NOT NULL,
			error TEXT
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Load returns every persisted listing.
func (s *SQLStore) Load(ctx context.Context) (listing.Batch, error) {
	query := `
		SELECT link, location, square_footage, price, built_year, origin_url, price_per_m2
		FROM listings
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	batch := listing.Batch{}
	for rows.Next() {
		var l listing.Listing
		var builtYear sql.NullInt64

		err := rows.Scan(
			&l.Link, &l.Location, &l.Area, &l.Price,
			&builtYear, &l.OriginURL, &l.PricePerArea,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		if builtYear.Valid {
			year := int(builtYear.Int64)
			l.BuiltYear = &year
		}
		batch.Add(l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read listings: %w", err)
	}

	return batch, nil
}

// Replace deletes every persisted listing and inserts batch in a single
// transaction.
func (s *SQLStore) Replace(ctx context.Context, batch listing.Batch) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM listings"); err != nil {
		return fmt.Errorf("failed to clear listings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(`
		INSERT INTO listings (
			link, location, square_footage, price, built_year, origin_url, price_per_m2
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range batch.Sorted() {
		var builtYear any
		if l.BuiltYear != nil {
			builtYear = int64(*l.BuiltYear)
		}
		_, err = stmt.ExecContext(ctx,
			l.Link, l.Location, l.Area, l.Price, builtYear, l.OriginURL, int64(l.PricePerArea),
		)
		if err != nil {
			return fmt.Errorf("failed to insert listing %s: %w", l.Link, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit listings: %w", err)
	}
	return nil
}

// RecordRun stores a run summary. A zero RunID is replaced with a new one.
func (s *SQLStore) RecordRun(ctx context.Context, run Run) error {
	if run.RunID == uuid.Nil {
		run.RunID = uuid.New()
	}

	failed, err := json.Marshal(nonNil(run.FailedQueries))
	if err != nil {
		return fmt.Errorf("failed to marshal failed queries: %w", err)
	}

	notified := 0
	if run.Notified {
		notified = 1
	}

	query := s.dialect.rebind(`
		INSERT INTO runs (
			run_id, started_at, finished_at, queries, failed_queries,
			collected, new_listings, notified, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err = s.db.ExecContext(ctx, query,
		run.RunID.String(),
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.Queries,
		string(failed),
		run.Collected,
		run.New,
		notified,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (s *SQLStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT run_id, started_at, finished_at, queries, failed_queries,
		       collected, new_listings, notified, error
		FROM runs
		ORDER BY started_at DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var runIDStr, startedAtStr, finishedAtStr, failedJSON string
		var notified int
		var runErr sql.NullString
		var run Run

		err := rows.Scan(
			&runIDStr, &startedAtStr, &finishedAtStr, &run.Queries, &failedJSON,
			&run.Collected, &run.New, &notified, &runErr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.RunID, err = uuid.Parse(runIDStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run ID: %w", err)
		}
		if err := json.Unmarshal([]byte(failedJSON), &run.FailedQueries); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failed queries: %w", err)
		}
		run.StartedAt = parseTime(startedAtStr)
		run.FinishedAt = parseTime(finishedAtStr)
		run.Notified = notified != 0
		if runErr.Valid {
			run.Error = &runErr.String
		}

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}

	return runs, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// timeLayout is fixed width so stored timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Helper functions for time formatting
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	// Try RFC3339Nano first, fall back to RFC3339 for compatibility
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
