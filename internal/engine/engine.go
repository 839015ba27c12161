// Package engine drives synchronization cycles: it fans fetches out across
// all configured sources, funnels each payload through the parser, and
// reconciles results into the store without letting one source's failure
// mask another's success.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/rektdeckard/moccasin/internal/config"
	"github.com/rektdeckard/moccasin/internal/domain/feed"
	"github.com/rektdeckard/moccasin/internal/fetch"
	"github.com/rektdeckard/moccasin/internal/parse"
	"github.com/rektdeckard/moccasin/internal/store"
)

var (
	// ErrCycleInFlight means a refresh is already running. Overlapping
	// triggers coalesce to a no-op rather than queueing a second cycle.
	ErrCycleInFlight = errors.New("refresh cycle already in flight")
	// ErrStoreUnavailable is cycle-fatal: the store cannot serve any
	// operation, so viewing feeds cannot proceed.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// SourceError records one source's failure within a cycle.
type SourceError struct {
	URL    string
	FeedID string
	Err    error
}

// Report aggregates one cycle's outcome. Per-source failures are non-fatal;
// every failure lands here, nothing is silently dropped.
type Report struct {
	Succeeded  []string // feed ids
	Failed     []SourceError
	StartedAt  time.Time
	FinishedAt time.Time
}

// Options tunes an Engine.
type Options struct {
	// Interval between automatic refresh cycles; zero disables the timer.
	Interval time.Duration
	// Retries is the number of extra attempts for sources that fail with a
	// transient transport error. Zero disables retrying. Retry policy lives
	// here, never in the fetcher.
	Retries uint64
	Logger  *logrus.Logger
}

// Engine coordinates fetcher, parser, and store for synchronization cycles.
// At most one cycle is ever in flight.
type Engine struct {
	store    *store.Store
	fetcher  *fetch.Fetcher
	log      *logrus.Logger
	interval time.Duration
	retries  uint64

	mu      sync.Mutex
	running bool
	sources []string

	reports chan Report
}

// New builds an Engine over the given store and fetcher for the configured
// source URLs.
func New(st *store.Store, fetcher *fetch.Fetcher, sources []string, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Engine{
		store:    st,
		fetcher:  fetcher,
		log:      log,
		interval: opts.Interval,
		retries:  opts.Retries,
		sources:  append([]string(nil), sources...),
		reports:  make(chan Report, 1),
	}
}

// Sources returns a snapshot of the configured source URLs.
func (e *Engine) Sources() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sources...)
}

// Reports exposes cycle reports produced by the background timer loop.
func (e *Engine) Reports() <-chan Report {
	return e.reports
}

// Refresh runs one synchronization cycle across all configured sources.
// A trigger that arrives while a cycle is running returns ErrCycleInFlight.
// The returned error, when non-nil alongside a report, is cycle-fatal
// (store unavailable); per-source failures live inside the report.
func (e *Engine) Refresh(ctx context.Context) (*Report, error) {
	urls, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer e.end()
	return e.runCycle(ctx, urls)
}

// AddSource validates the URL, registers it, and synchronizes it once.
// It shares the single-cycle gate with Refresh.
func (e *Engine) AddSource(ctx context.Context, url string) (*Report, error) {
	if err := config.ValidateSourceURL(url); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrCycleInFlight
	}
	e.running = true
	known := false
	for _, existing := range e.sources {
		if existing == url {
			known = true
			break
		}
	}
	if !known {
		e.sources = append(e.sources, url)
	}
	e.mu.Unlock()
	defer e.end()

	return e.runCycle(ctx, []string{url})
}

// RemoveSource forgets the URL and deletes its feed, cascading to items.
// A feed that never synced successfully has no stored record to delete.
// The lock is held across both steps so a running cycle cannot interleave
// a merge between them; mergeSource takes the same lock and re-checks
// membership, so a feed removed mid-cycle stays removed.
func (e *Engine) RemoveSource(url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.sources[:0]
	for _, existing := range e.sources {
		if existing != url {
			kept = append(kept, existing)
		}
	}
	e.sources = kept

	if err := e.store.DeleteFeedByURL(url); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// Run drives recurring refreshes until the context is cancelled. Reports
// are published on the Reports channel; a report is dropped rather than
// blocking when the consumer lags.
func (e *Engine) Run(ctx context.Context) {
	e.publish(e.refreshForLoop(ctx))

	if e.interval <= 0 {
		return
	}
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.publish(e.refreshForLoop(ctx))
		}
	}
}

func (e *Engine) refreshForLoop(ctx context.Context) *Report {
	report, err := e.Refresh(ctx)
	switch {
	case errors.Is(err, ErrCycleInFlight):
		// A manual refresh is running; this tick coalesces away.
		return nil
	case err != nil:
		e.log.WithError(err).Error("refresh cycle failed")
	}
	return report
}

func (e *Engine) publish(report *Report) {
	if report == nil {
		return
	}
	select {
	case e.reports <- *report:
	default:
	}
}

func (e *Engine) begin() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil, ErrCycleInFlight
	}
	e.running = true
	return append([]string(nil), e.sources...), nil
}

func (e *Engine) end() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

func (e *Engine) runCycle(ctx context.Context, urls []string) (*Report, error) {
	report := &Report{StartedAt: time.Now()}
	e.log.WithField("sources", len(urls)).Info("refresh cycle started")

	results := e.fetcher.FetchAll(ctx, urls)
	for _, res := range results {
		feedID := feed.NewFeedID(res.URL)

		body := res.Body
		err := res.Err
		if err != nil && e.retries > 0 && temporary(err) {
			body, err = e.retrySource(ctx, res.URL)
		}
		if err == nil {
			var removed bool
			removed, err = e.mergeSource(res.URL, body)
			if removed {
				e.log.WithField("url", res.URL).Info("source removed during cycle, discarding payload")
				continue
			}
		}

		if err != nil {
			if isStoreSide(err) {
				if pingErr := e.store.Ping(); pingErr != nil {
					report.FinishedAt = time.Now()
					return report, fmt.Errorf("%w: %v", ErrStoreUnavailable, pingErr)
				}
			}
			e.log.WithField("url", res.URL).WithError(err).Warn("source failed")
			report.Failed = append(report.Failed, SourceError{URL: res.URL, FeedID: feedID, Err: err})
			continue
		}
		report.Succeeded = append(report.Succeeded, feedID)
	}

	report.FinishedAt = time.Now()
	e.log.WithFields(logrus.Fields{
		"succeeded": len(report.Succeeded),
		"failed":    len(report.Failed),
		"elapsed":   report.FinishedAt.Sub(report.StartedAt),
	}).Info("refresh cycle finished")
	return report, nil
}

// mergeSource parses one payload and reconciles it into the store. The
// feed's stored state is untouched on any failure: stale-but-present beats
// dropped. It holds the engine lock and re-checks membership so a source
// deleted by RemoveSource while its fetch was in flight is discarded
// instead of being re-inserted; the first return value reports that case.
func (e *Engine) mergeSource(url string, body []byte) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !lo.Contains(e.sources, url) {
		return true, nil
	}

	parsedFeed, items, err := parse.Parse(body, url)
	if err != nil {
		return false, err
	}
	if _, err := e.store.UpsertFeed(parsedFeed); err != nil {
		return false, err
	}
	if _, err := e.store.MergeItems(parsedFeed.ID, items, time.Now()); err != nil {
		return false, err
	}
	return false, nil
}

func (e *Engine) retrySource(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	op := func() error {
		b, err := e.fetcher.Fetch(ctx, url)
		if err != nil {
			if !temporary(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), e.retries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return body, nil
}

func newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	return bo
}

func temporary(err error) bool {
	var ferr *fetch.Error
	return errors.As(err, &ferr) && ferr.Temporary()
}

// isStoreSide reports whether the failure came from the store rather than
// the transport or parse stage.
func isStoreSide(err error) bool {
	var ferr *fetch.Error
	var perr *parse.Error
	return !errors.As(err, &ferr) && !errors.As(err, &perr)
}
