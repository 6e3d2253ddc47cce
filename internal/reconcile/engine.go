package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
	"github.com/couchcryptid/solar-outlook-service/internal/observability"
)

// Cycle kinds used as metric labels.
const (
	kindRefresh = "refresh"
	kindIngest  = "ingest"
	kindModel   = "model"
)

// ErrModelNotConfigured is returned by RunModel when no runner was supplied.
var ErrModelNotConfigured = errors.New("model runner not configured")

// RefreshResult summarizes one bulletin refresh.
type RefreshResult struct {
	Parsed    int
	Upserted  int
	Deleted   int64
	FirstDate time.Time
	LastDate  time.Time
}

// MergeResult summarizes one prediction merge.
type MergeResult struct {
	Received int
	Rejected int // rows with missing or non-finite values
	Accepted int // rows dated strictly after Boundary
	Upserted int
	Deleted  int64
	Boundary time.Time
	Skipped  bool // nothing was written
}

// Engine reconciles the official bulletin and model predictions into the
// store and serves the 27-day window from it. At most one write cycle runs
// at a time; a trigger that arrives while one is active gets
// domain.ErrCycleInProgress.
type Engine struct {
	store    Store
	bulletin BulletinSource
	model    ModelRunner
	cache    WindowCache
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics
	running  atomic.Bool

	// cacheMu orders cache writes against invalidation. generation counts
	// invalidations; a read that started before one must not be cached.
	cacheMu    sync.Mutex
	generation uint64
}

// Option configures optional collaborators of an Engine.
type Option func(*Engine)

// WithModel sets the runner used by RunModel.
func WithModel(m ModelRunner) Option {
	return func(e *Engine) { e.model = m }
}

// WithCache caches windows between write cycles.
func WithCache(c WindowCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithNotifier publishes a CycleEvent after every successful write cycle.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// New creates an Engine over the given store and bulletin source.
func New(store Store, bulletin BulletinSource, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		bulletin: bulletin,
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckReadiness reports whether the store is reachable.
func (e *Engine) CheckReadiness(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}

// Running reports whether a write cycle currently holds the engine.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// acquire takes the single-flight guard. The returned func releases it.
func (e *Engine) acquire(kind string) (func(), error) {
	if !e.running.CompareAndSwap(false, true) {
		e.logger.Warn("cycle skipped, another cycle is in progress", "kind", kind)
		e.metrics.Cycles.WithLabelValues(kind, "busy").Inc()
		return nil, domain.ErrCycleInProgress
	}
	e.metrics.CycleRunning.Set(1)
	start := time.Now()
	return func() {
		e.metrics.CycleDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		e.metrics.CycleRunning.Set(0)
		e.running.Store(false)
	}, nil
}

// Refresh downloads and parses the current bulletin, upserts every parsed
// day as an observed row and then deletes observed rows for days that have
// left the bulletin. It returns how many observed rows were written.
//
// Fetch and parse failures abort before any write. If any upsert fails the
// stale-row delete is skipped for this cycle so the store never loses more
// than it gained.
func (e *Engine) Refresh(ctx context.Context) (RefreshResult, error) {
	release, err := e.acquire(kindRefresh)
	if err != nil {
		return RefreshResult{}, err
	}
	defer release()

	res, err := e.refresh(ctx)
	e.recordOutcome(kindRefresh, err)
	return res, err
}

func (e *Engine) refresh(ctx context.Context) (RefreshResult, error) {
	fetchStart := time.Now()
	text, err := e.bulletin.FetchBulletin(ctx)
	e.metrics.BulletinFetchDuration.Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		e.logger.Error("bulletin fetch failed", "error", err)
		return RefreshResult{}, err
	}

	rows, err := domain.ParseBulletin(text)
	if err != nil {
		e.logger.Error("bulletin parse failed", "error", err, "bytes", len(text))
		return RefreshResult{}, err
	}
	e.metrics.BulletinRows.Set(float64(len(rows)))

	fetchedAt := domain.Now().UTC()
	keep := make([]time.Time, len(rows))
	for i := range rows {
		rows[i].Source = domain.SourceObserved
		rows[i].FetchedAt = fetchedAt
		keep[i] = rows[i].Date
	}

	res := RefreshResult{
		Parsed:    len(rows),
		FirstDate: rows[0].Date,
		LastDate:  rows[len(rows)-1].Date,
	}

	written, err := e.store.UpsertRows(ctx, rows)
	res.Upserted = written
	e.metrics.RowsUpserted.WithLabelValues(string(domain.SourceObserved)).Add(float64(written))
	if err != nil {
		e.logger.Error("observed upsert incomplete, stale delete skipped",
			"error", err, "written", written, "parsed", len(rows))
		e.invalidate(ctx)
		return res, fmt.Errorf("%w: upsert observed rows: %w", domain.ErrStoreWrite, err)
	}

	deleted, err := e.store.DeleteSourceExcept(ctx, domain.SourceObserved, keep)
	res.Deleted = deleted
	e.metrics.RowsDeleted.WithLabelValues(string(domain.SourceObserved)).Add(float64(deleted))
	e.invalidate(ctx)
	if err != nil {
		e.logger.Error("stale observed delete failed", "error", err)
		return res, fmt.Errorf("%w: delete stale observed rows: %w", domain.ErrStoreWrite, err)
	}

	e.logger.Info("bulletin refresh complete",
		"parsed", res.Parsed,
		"upserted", res.Upserted,
		"deleted", res.Deleted,
		"first_date", domain.FormatDate(res.FirstDate),
		"last_date", domain.FormatDate(res.LastDate),
	)
	e.notify(ctx, domain.NewCycleEvent(domain.CycleRefresh, domain.SourceObserved, rows, written, deleted))
	return res, nil
}

// IngestPredictions merges model output into the store. Only rows dated
// strictly after the latest observed day are kept; stored predicted rows on
// or before that day are deleted first. With no observed rows, or nothing
// left after filtering, the merge is skipped without writing.
func (e *Engine) IngestPredictions(ctx context.Context, rows []domain.ForecastRow) (MergeResult, error) {
	release, err := e.acquire(kindIngest)
	if err != nil {
		return MergeResult{}, err
	}
	defer release()

	res, err := e.mergePredictions(ctx, rows)
	e.recordMergeOutcome(kindIngest, res, err)
	return res, err
}

// RunModel invokes the model runner and merges its output like
// IngestPredictions, under the same guard.
func (e *Engine) RunModel(ctx context.Context) (MergeResult, error) {
	if e.model == nil {
		return MergeResult{}, ErrModelNotConfigured
	}
	release, err := e.acquire(kindModel)
	if err != nil {
		return MergeResult{}, err
	}
	defer release()

	rows, err := e.model.Predict(ctx)
	if err != nil {
		e.logger.Error("model run failed", "error", err)
		e.recordOutcome(kindModel, err)
		return MergeResult{}, err
	}
	e.logger.Info("model run complete", "rows", len(rows))

	res, err := e.mergePredictions(ctx, rows)
	e.recordMergeOutcome(kindModel, res, err)
	return res, err
}

func (e *Engine) mergePredictions(ctx context.Context, incoming []domain.ForecastRow) (MergeResult, error) {
	res := MergeResult{Received: len(incoming)}

	boundary, ok, err := e.store.LatestDate(ctx, domain.SourceObserved)
	if err != nil {
		return res, fmt.Errorf("latest observed date: %w", err)
	}
	if !ok {
		e.logger.Warn("prediction merge skipped, no observed rows to anchor on", "received", len(incoming))
		res.Skipped = true
		return res, nil
	}
	boundary = domain.NormalizeDate(boundary)
	res.Boundary = boundary

	future, rejected := futurePredictions(incoming, boundary)
	res.Rejected = rejected
	res.Accepted = len(future)
	e.metrics.PredictionsRejected.Add(float64(rejected))
	if len(future) == 0 {
		e.logger.Info("prediction merge skipped, no rows after boundary",
			"boundary", domain.FormatDate(boundary), "received", len(incoming), "rejected", rejected)
		res.Skipped = true
		return res, nil
	}

	deleted, err := e.store.DeleteSourceThrough(ctx, domain.SourcePredicted, boundary)
	res.Deleted = deleted
	e.metrics.RowsDeleted.WithLabelValues(string(domain.SourcePredicted)).Add(float64(deleted))
	if err != nil {
		return res, fmt.Errorf("%w: delete predicted rows through %s: %w",
			domain.ErrStoreWrite, domain.FormatDate(boundary), err)
	}

	written, err := e.store.UpsertRows(ctx, future)
	res.Upserted = written
	e.metrics.RowsUpserted.WithLabelValues(string(domain.SourcePredicted)).Add(float64(written))
	e.invalidate(ctx)
	if err != nil {
		return res, fmt.Errorf("%w: upsert predicted rows: %w", domain.ErrStoreWrite, err)
	}

	e.logger.Info("prediction merge complete",
		"boundary", domain.FormatDate(boundary),
		"received", res.Received,
		"rejected", res.Rejected,
		"upserted", res.Upserted,
		"deleted", res.Deleted,
	)
	e.notify(ctx, domain.NewCycleEvent(domain.CyclePredictions, domain.SourcePredicted, future, written, deleted))
	return res, nil
}

// futurePredictions keeps complete rows dated strictly after boundary,
// retagged as predicted, deduplicated by date (last wins) and sorted.
func futurePredictions(rows []domain.ForecastRow, boundary time.Time) ([]domain.ForecastRow, int) {
	fetchedAt := domain.Now().UTC()
	byDate := make(map[int64]domain.ForecastRow, len(rows))
	rejected := 0
	for _, r := range rows {
		if r.Date.IsZero() || !r.Complete() {
			rejected++
			continue
		}
		r.Date = domain.NormalizeDate(r.Date)
		if !r.Date.After(boundary) {
			continue
		}
		r.Source = domain.SourcePredicted
		r.FetchedAt = fetchedAt
		byDate[r.Date.Unix()] = r
	}

	out := make([]domain.ForecastRow, 0, len(byDate))
	for _, r := range byDate {
		out = append(out, r)
	}
	sortByDate(out)
	return out, rejected
}

func (e *Engine) recordOutcome(kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	e.metrics.Cycles.WithLabelValues(kind, outcome).Inc()
}

func (e *Engine) recordMergeOutcome(kind string, res MergeResult, err error) {
	if err == nil && res.Skipped {
		e.metrics.Cycles.WithLabelValues(kind, "skipped").Inc()
		return
	}
	e.recordOutcome(kind, err)
}

func (e *Engine) invalidate(ctx context.Context) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.generation++
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx); err != nil {
		e.logger.Warn("window cache invalidation failed", "error", err)
	}
}

func (e *Engine) notify(ctx context.Context, ev domain.CycleEvent) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Publish(ctx, ev); err != nil {
		e.logger.Warn("cycle event publish failed", "error", err, "kind", ev.Kind)
	}
}

// sortByDate orders rows by date. Rows on the same day keep their input order.
func sortByDate(rows []domain.ForecastRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})
}
