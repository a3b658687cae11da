// Package pipeline orchestrates one refresh cycle: fingerprint the source,
// consult the snapshot cache, and on a miss run load, clean, filter, and
// detect before caching and installing the result as the serving snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/maritime-event-pipeline/internal/cache"
	"github.com/couchcryptid/maritime-event-pipeline/internal/detect"
	"github.com/couchcryptid/maritime-event-pipeline/internal/domain"
	"github.com/couchcryptid/maritime-event-pipeline/internal/loader"
	"github.com/couchcryptid/maritime-event-pipeline/internal/observability"
	"github.com/couchcryptid/maritime-event-pipeline/internal/source"
)

var clock clockwork.Clock = clockwork.NewRealClock()

// SetClock replaces the package clock for tests. Passing nil restores the
// real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// SnapshotCache persists snapshots between runs.
type SnapshotCache interface {
	Lookup(ctx context.Context, source, fingerprint string) (domain.Snapshot, error)
	Store(ctx context.Context, snap domain.Snapshot) error
	Latest(ctx context.Context, source string) (domain.Snapshot, error)
	Prune(ctx context.Context, source string, keep int) (int, error)
}

// Publisher forwards normalized events to a downstream sink.
type Publisher interface {
	PublishEvents(ctx context.Context, events []domain.NormalizedEvent) error
}

// Options configures a Pipeline. Source, Cache, Logger, and Metrics are
// required; the rest default sensibly.
type Options struct {
	Source source.Source
	Cache  SnapshotCache

	// Sink receives the events of every rebuilt snapshot. Nil disables
	// publishing.
	Sink Publisher

	Schema     loader.Schema
	Vocabulary *domain.Vocabulary
	Detector   *detect.Detector

	// MaritimeFilter toggles the relevance filter stage.
	MaritimeFilter bool

	// CacheKeep is how many snapshots Prune retains per source.
	CacheKeep int

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Pipeline owns the refresh cycle and the serving snapshot.
type Pipeline struct {
	source         source.Source
	cache          SnapshotCache
	sink           Publisher
	schema         loader.Schema
	vocab          *domain.Vocabulary
	detector       *detect.Detector
	maritimeFilter bool
	cacheKeep      int
	logger         *slog.Logger
	metrics        *observability.Metrics

	mu          sync.RWMutex
	current     domain.Snapshot
	hasSnapshot bool
	ready       atomic.Bool

	// refreshMu serializes refreshes so a cron tick and an HTTP trigger
	// cannot rebuild concurrently.
	refreshMu sync.Mutex
}

// New creates a Pipeline from options.
func New(opts Options) *Pipeline {
	if len(opts.Schema.Required) == 0 {
		opts.Schema = loader.Default()
	}
	if opts.Vocabulary == nil {
		opts.Vocabulary = domain.DefaultVocabulary()
	}
	if opts.Detector == nil {
		opts.Detector = detect.Default()
	}
	if opts.CacheKeep <= 0 {
		opts.CacheKeep = 5
	}

	return &Pipeline{
		source:         opts.Source,
		cache:          opts.Cache,
		sink:           opts.Sink,
		schema:         opts.Schema,
		vocab:          opts.Vocabulary,
		detector:       opts.Detector,
		maritimeFilter: opts.MaritimeFilter,
		cacheKeep:      opts.CacheKeep,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
	}
}

// Ready reports whether a snapshot is installed and serving.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// CheckReadiness returns nil once a snapshot is serving, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has no snapshot yet")
	}
	return nil
}

// Current returns the serving snapshot. The second return is false until
// the first successful refresh or restore.
func (p *Pipeline) Current() (domain.Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.hasSnapshot
}

// Restore installs the most recent cached snapshot so a restarted service
// can serve immediately while the first refresh runs. Returns true when a
// snapshot was restored.
func (p *Pipeline) Restore(ctx context.Context) bool {
	snap, err := p.cache.Latest(ctx, p.source.Name())
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			p.logger.Warn("cache restore failed", "error", err)
		}
		return false
	}

	p.install(snap)
	p.logger.Info("restored snapshot from cache",
		"run_id", snap.RunID,
		"refreshed_at", snap.RefreshedAt,
		"events", len(snap.Events),
	)
	return true
}

// Refresh runs one refresh cycle. With force set, the cache lookup is
// skipped and the rebuilt snapshot overwrites the cached one. Row-level
// problems land in the snapshot's rejection list; file-level problems fail
// the refresh and leave the previous snapshot serving.
func (p *Pipeline) Refresh(ctx context.Context, force bool) error {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID, "source", p.source.Name())
	start := clock.Now()

	logger.Info("refresh started", "forced", force)

	var fp source.Fingerprint
	err := p.withRetry(ctx, logger, "fingerprint source", func(ctx context.Context) error {
		var err error
		fp, err = p.source.Fingerprint(ctx)
		return err
	})
	if err != nil {
		p.metrics.RefreshFailures.Inc()
		logger.Error("refresh failed", "stage", "fingerprint", "error", err)
		return fmt.Errorf("fingerprint %s: %w", p.source.Name(), err)
	}

	if !force {
		snap, err := p.cache.Lookup(ctx, p.source.Name(), fp.String())
		switch {
		case err == nil:
			p.metrics.CacheLookups.WithLabelValues("hit").Inc()
			p.install(snap)
			logger.Info("refresh served from cache",
				"cached_run_id", snap.RunID,
				"fingerprint", snap.Fingerprint,
				"events", len(snap.Events),
			)
			return nil
		case errors.Is(err, cache.ErrMiss):
			p.metrics.CacheLookups.WithLabelValues("miss").Inc()
		default:
			logger.Warn("cache lookup failed, rebuilding from source", "error", err)
			p.metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
	}

	snap, err := p.build(ctx, logger, runID, fp)
	if err != nil {
		p.metrics.RefreshFailures.Inc()
		logger.Error("refresh failed", "error", err)
		return err
	}

	if err := p.cache.Store(ctx, snap); err != nil {
		// the snapshot still serves from memory when persistence fails
		logger.Warn("cache store failed", "error", err)
	} else if removed, err := p.cache.Prune(ctx, snap.Source, p.cacheKeep); err != nil {
		logger.Warn("cache prune failed", "error", err)
	} else if removed > 0 {
		logger.Debug("pruned old snapshots", "removed", removed)
	}

	p.install(snap)
	p.observe(snap)
	p.metrics.RefreshDuration.Observe(clock.Since(start).Seconds())

	logger.Info("refresh complete",
		"rows_loaded", snap.RowsLoaded,
		"events", len(snap.Events),
		"rejects", len(snap.Rejects),
		"excluded", len(snap.Excluded),
		"duplicates", snap.Duplicates,
		"duration", clock.Since(start),
	)

	p.publish(ctx, logger, snap)
	return nil
}

// build runs the load-clean-filter-detect stages and assembles a snapshot.
func (p *Pipeline) build(ctx context.Context, logger *slog.Logger, runID string, fp source.Fingerprint) (domain.Snapshot, error) {
	var loaded loader.Result
	err := p.withRetry(ctx, logger, "load dataset", func(ctx context.Context) error {
		var err error
		loaded, err = loader.Load(ctx, p.source, p.schema)
		return err
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	cleaned := domain.CleanRecords(loaded.Records, p.vocab)

	events := cleaned.Events
	var excluded []domain.ExcludedEvent
	if p.maritimeFilter {
		events, excluded = domain.FilterMaritime(events)
	}

	events = p.detector.Annotate(events)

	rejects := make([]domain.RejectedRow, 0, len(loaded.Rejects)+len(cleaned.Rejects))
	rejects = append(rejects, loaded.Rejects...)
	rejects = append(rejects, cleaned.Rejects...)

	return domain.Snapshot{
		RunID:       runID,
		Source:      p.source.Name(),
		Fingerprint: fp.String(),
		RefreshedAt: clock.Now().UTC(),
		Events:      events,
		Rejects:     rejects,
		Excluded:    excluded,
		RowsLoaded:  loaded.RowsRead,
		Duplicates:  cleaned.Duplicates,
	}, nil
}

// install swaps the serving snapshot and marks the pipeline ready.
func (p *Pipeline) install(snap domain.Snapshot) {
	p.mu.Lock()
	p.current = snap
	p.hasSnapshot = true
	p.mu.Unlock()

	p.ready.Store(true)
	p.metrics.PipelineReady.Set(1)
	p.metrics.LastRefresh.Set(float64(clock.Now().Unix()))
}

// observe records per-snapshot counters for a rebuilt snapshot.
func (p *Pipeline) observe(snap domain.Snapshot) {
	p.metrics.RowsLoaded.Add(float64(snap.RowsLoaded))
	p.metrics.EventsNormalized.Add(float64(len(snap.Events) + len(snap.Excluded)))
	p.metrics.DuplicatesDropped.Add(float64(snap.Duplicates))

	for _, r := range snap.Rejects {
		p.metrics.RowsRejected.WithLabelValues(string(r.Kind)).Inc()
	}
	for _, ex := range snap.Excluded {
		p.metrics.EventsExcluded.WithLabelValues(ex.Reason).Inc()
	}

	flagged := 0
	for _, ev := range snap.Events {
		if ev.SmugglingFlag {
			flagged++
		}
	}
	p.metrics.SmugglingFlagged.Add(float64(flagged))
}

// publish forwards a rebuilt snapshot's events to the sink. Publish
// failures are logged but never fail the refresh: the snapshot is already
// serving.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, snap domain.Snapshot) {
	if p.sink == nil || len(snap.Events) == 0 {
		return
	}

	if err := p.sink.PublishEvents(ctx, snap.Events); err != nil {
		logger.Error("publish events failed", "error", err, "events", len(snap.Events))
		return
	}
	p.metrics.EventsPublished.Add(float64(len(snap.Events)))
	logger.Info("events published", "events", len(snap.Events))
}

// Exponential backoff: start at 200ms, double each retry, cap at 5s.
const (
	baseBackoff = 200 * time.Millisecond
	maxBackoff  = 5 * time.Second
	maxAttempts = 5
)

// withRetry runs fn with exponential backoff on transient errors. Format
// errors are never retried: the file itself is wrong and rereading cannot
// help.
func (p *Pipeline) withRetry(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error) error {
	backoff := baseBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrFormat) || ctx.Err() != nil || attempt >= maxAttempts {
			return err
		}
		logger.Warn("transient failure, backing off",
			"op", op,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !sleepWithContext(ctx, backoff) {
			return err
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
