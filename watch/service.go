// Package watch runs the configured searches, detects listings not seen in the
// previous run, and notifies about them.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pevans/propwatch/config"
	"github.com/pevans/propwatch/listing"
	"github.com/pevans/propwatch/logger"
	"github.com/pevans/propwatch/store"
)

// DefaultInterval is the pause between runs in Run.
const DefaultInterval = time.Hour

// ErrNotifyFailed is returned by RunOnce when new listings were found but the
// notification could not be delivered. The store is left untouched.
var ErrNotifyFailed = errors.New("failed to notify about new listings")

// Scraper collects the raw listing fields for one search URL.
type Scraper interface {
	Scrape(ctx context.Context, searchURL string) ([]listing.RawFields, error)
}

// Notifier delivers newly found listings.
type Notifier interface {
	Notify(ctx context.Context, listings []listing.Listing) error
}

// Service is the watcher. A Service runs one search pass at a time.
type Service struct {
	queries  []config.Query
	scraper  Scraper
	notifier Notifier
	store    store.RecordStore
	interval time.Duration
	log      logger.Logger

	stopChan chan struct{}
	stopOnce sync.Once
}

// RunResult summarizes a completed RunOnce.
type RunResult struct {
	RunID         uuid.UUID
	Collected     int
	New           []listing.Listing
	FailedQueries []string
	Notified      bool
}

// NewService creates a watcher for queries. An interval of zero selects
// DefaultInterval.
func NewService(
	queries []config.Query,
	scraper Scraper,
	notifier Notifier,
	records store.RecordStore,
	interval time.Duration,
	log logger.Logger,
) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Service{
		queries:  queries,
		scraper:  scraper,
		notifier: notifier,
		store:    records,
		interval: interval,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// Run performs a run immediately, then one per interval, until Stop is
// called or the context is cancelled. A failed run is logged and does not stop
// the loop.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("Watch service starting",
		logger.Int("queries", len(s.queries)),
		logger.Duration("interval", s.interval),
	)

	s.runLogged(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Watch service stopping (context cancelled)")
			return ctx.Err()
		case <-s.stopChan:
			s.log.Info("Watch service stopping")
			return nil
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

// Stop signals Run to return after the run in progress, if any.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *Service) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("Run failed", logger.Error(err))
	}
}

// RunOnce performs one pass over every query.
//
// Listings not present in the persisted batch are sent to the notifier. Only
// after a successful notification is the store replaced, with the listings
// collected now plus the previously stored listings of queries that failed in
// this pass. Nothing is written when no new listing is found.
func (s *Service) RunOnce(ctx context.Context) (RunResult, error) {
	started := time.Now()
	result := RunResult{RunID: uuid.New()}

	err := s.runOnce(ctx, &result)
	s.recordRun(ctx, started, result, err)
	return result, err
}

func (s *Service) runOnce(ctx context.Context, result *RunResult) error {
	prior, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load previous results: %w", err)
	}

	fresh, failed, err := s.collect(ctx)
	if err != nil {
		return err
	}
	result.Collected = len(fresh)
	result.FailedQueries = failed

	newListings := listing.Diff(fresh, prior)
	if len(newListings) == 0 {
		s.log.Info("No new listings",
			logger.Int("collected", len(fresh)),
			logger.Int("failed_queries", len(failed)),
		)
		return nil
	}
	result.New = newListings.Sorted()

	s.log.Info("Found new listings", logger.Int("new", len(result.New)))

	if err := s.notifier.Notify(ctx, result.New); err != nil {
		return fmt.Errorf("%w: %w", ErrNotifyFailed, err)
	}
	result.Notified = true

	if err := s.store.Replace(ctx, s.retain(fresh, prior, failed)); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	return nil
}

// collect scrapes every query in order. A query that fails is logged and
// reported by name; its listings are left out of the batch.
func (s *Service) collect(ctx context.Context) (listing.Batch, []string, error) {
	fresh := make(listing.Batch)
	failed := []string{}

	for _, q := range s.queries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		url := q.URL.String()
		start := time.Now()

		raws, err := s.scraper.Scrape(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			s.log.Error("Query failed",
				logger.String("query", q.Name),
				logger.String("url", url),
				logger.Error(err),
			)
			failed = append(failed, q.Name)
			continue
		}

		added := 0
		for _, raw := range raws {
			raw.OriginURL = url
			l, err := listing.Normalize(raw)
			if err != nil {
				s.log.Warn("Skipping listing",
					logger.String("query", q.Name),
					logger.String("link", raw.Link),
					logger.Error(err),
				)
				continue
			}
			fresh.Add(l)
			added++
		}

		s.log.Info("Query completed",
			logger.String("query", q.Name),
			logger.Int("listings", added),
			logger.Duration("duration", time.Since(start)),
		)
	}

	return fresh, failed, nil
}

// retain returns fresh plus the prior listings that came from failed queries,
// so a transient failure does not announce them again on the next run.
func (s *Service) retain(fresh, prior listing.Batch, failed []string) listing.Batch {
	if len(failed) == 0 {
		return fresh
	}

	failedURLs := make(map[string]struct{}, len(failed))
	for _, q := range s.queries {
		for _, name := range failed {
			if q.Name == name {
				failedURLs[q.URL.String()] = struct{}{}
			}
		}
	}

	out := make(listing.Batch, len(fresh))
	for k, l := range fresh {
		out[k] = l
	}
	for k, l := range prior {
		if _, ok := failedURLs[l.OriginURL]; ok {
			out[k] = l
		}
	}
	return out
}

// recordRun stores the run summary when the store keeps a history. Failures
// are logged only.
func (s *Service) recordRun(ctx context.Context, started time.Time, result RunResult, runErr error) {
	recorder, ok := s.store.(store.RunRecorder)
	if !ok {
		return
	}

	run := store.Run{
		RunID:         result.RunID,
		StartedAt:     started,
		FinishedAt:    time.Now(),
		Queries:       len(s.queries),
		FailedQueries: result.FailedQueries,
		Collected:     result.Collected,
		New:           len(result.New),
		Notified:      result.Notified,
	}
	if run.FailedQueries == nil {
		run.FailedQueries = []string{}
	}
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
	}

	if err := recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		s.log.Warn("Failed to record run", logger.Error(err))
	}
}
