package reconcile

import (
	"context"
	"fmt"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
)

// Cache keys.
const (
	cacheKeyWindow   = "window"
	cacheKeyCombined = "combined"
)

// storedActivityCeiling is the A index at or above which stored rows are not
// trusted as a stand-in for the bulletin.
const storedActivityCeiling = 50

// Window returns the 27-day outlook, trying in order:
//
//  1. every stored observed row;
//  2. the first 27 stored rows of any source, if there are at least 27 and
//     all of them look like bulletin data;
//  3. the bulletin itself, parsed without writing to the store;
//  4. stored predicted rows shifted to start tomorrow.
//
// Tiers are never mixed. When every tier is empty the result has TierNone
// and no rows; that is not an error. Store read errors are returned.
func (e *Engine) Window(ctx context.Context) (domain.Window, error) {
	if w, ok := e.cached(ctx, cacheKeyWindow); ok {
		return w, nil
	}

	gen := e.cacheGeneration()
	w, err := e.selectWindow(ctx)
	if err != nil {
		return domain.Window{}, err
	}
	e.metrics.WindowServed.WithLabelValues(string(w.Tier)).Inc()

	// Shifted windows depend on today's date, so only store-backed tiers are cached.
	if w.Tier == domain.TierObserved || w.Tier == domain.TierStored {
		e.remember(ctx, gen, cacheKeyWindow, w)
	}
	return w, nil
}

func (e *Engine) selectWindow(ctx context.Context) (domain.Window, error) {
	observed, err := e.store.ListBySource(ctx, domain.SourceObserved)
	if err != nil {
		return domain.Window{}, fmt.Errorf("list observed rows: %w", err)
	}
	if len(observed) > 0 {
		return domain.Window{Tier: domain.TierObserved, Rows: observed}, nil
	}

	all, err := e.store.ListAll(ctx)
	if err != nil {
		return domain.Window{}, fmt.Errorf("list stored rows: %w", err)
	}
	if len(all) >= domain.WindowDays && looksObserved(all[:domain.WindowDays]) {
		return domain.Window{Tier: domain.TierStored, Rows: all[:domain.WindowDays]}, nil
	}

	if rows, ok := e.bulletinWindow(ctx); ok {
		return domain.Window{Tier: domain.TierBulletin, Rows: rows}, nil
	}

	return e.shifted(ctx)
}

// looksObserved reports whether every row is complete with an A index under
// the ceiling.
func looksObserved(rows []domain.ForecastRow) bool {
	for _, r := range rows {
		if !r.Complete() || r.AIndex >= storedActivityCeiling {
			return false
		}
	}
	return true
}

func (e *Engine) bulletinWindow(ctx context.Context) ([]domain.ForecastRow, bool) {
	if e.bulletin == nil {
		return nil, false
	}
	text, err := e.bulletin.FetchBulletin(ctx)
	if err != nil {
		e.logger.Warn("bulletin fallback unavailable", "error", err)
		return nil, false
	}
	rows, err := domain.ParseBulletin(text)
	if err != nil {
		e.logger.Warn("bulletin fallback unusable", "error", err)
		return nil, false
	}
	return rows, true
}

// Shifted returns stored predicted rows moved so the first one lands on
// tomorrow (UTC), regardless of which tiers are available.
func (e *Engine) Shifted(ctx context.Context) (domain.Window, error) {
	return e.shifted(ctx)
}

func (e *Engine) shifted(ctx context.Context) (domain.Window, error) {
	predicted, err := e.store.ListBySource(ctx, domain.SourcePredicted)
	if err != nil {
		return domain.Window{}, fmt.Errorf("list predicted rows: %w", err)
	}
	if len(predicted) == 0 {
		return domain.Window{Tier: domain.TierNone}, nil
	}
	return domain.Window{
		Tier: domain.TierShifted,
		Rows: domain.ShiftToStart(predicted, domain.TomorrowUTC()),
	}, nil
}

// Combined returns stored observed and predicted rows together, unshifted,
// sorted by date. A day may appear once per source.
func (e *Engine) Combined(ctx context.Context) ([]domain.ForecastRow, error) {
	if w, ok := e.cached(ctx, cacheKeyCombined); ok {
		return w.Rows, nil
	}

	gen := e.cacheGeneration()
	observed, err := e.store.ListBySource(ctx, domain.SourceObserved)
	if err != nil {
		return nil, fmt.Errorf("list observed rows: %w", err)
	}
	predicted, err := e.store.ListBySource(ctx, domain.SourcePredicted)
	if err != nil {
		return nil, fmt.Errorf("list predicted rows: %w", err)
	}

	all := make([]domain.ForecastRow, 0, len(observed)+len(predicted))
	all = append(all, observed...)
	all = append(all, predicted...)
	sortByDate(all)

	e.remember(ctx, gen, cacheKeyCombined, domain.Window{Tier: domain.TierNone, Rows: all})
	return all, nil
}

// StrictWindow lays the window onto exactly 27 consecutive days starting at
// its first row, or at tomorrow when the window is empty.
func (e *Engine) StrictWindow(ctx context.Context) (domain.Tier, []domain.WindowDay, error) {
	w, err := e.Window(ctx)
	if err != nil {
		return domain.TierNone, nil, err
	}
	start := domain.TomorrowUTC()
	if !w.Empty() {
		start = w.Rows[0].Date
	}
	return w.Tier, domain.PadWindow(w.Rows, start, domain.WindowDays), nil
}

func (e *Engine) cached(ctx context.Context, key string) (domain.Window, bool) {
	if e.cache == nil {
		return domain.Window{}, false
	}
	w, ok, err := e.cache.Get(ctx, key)
	switch {
	case err != nil:
		e.logger.Warn("window cache read failed", "error", err, "key", key)
		e.metrics.WindowCache.WithLabelValues("error").Inc()
		return domain.Window{}, false
	case !ok:
		e.metrics.WindowCache.WithLabelValues("miss").Inc()
		return domain.Window{}, false
	default:
		e.metrics.WindowCache.WithLabelValues("hit").Inc()
		return w, true
	}
}

func (e *Engine) cacheGeneration() uint64 {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	return e.generation
}

// remember caches w unless a write cycle invalidated the cache after the
// store read that produced it began.
func (e *Engine) remember(ctx context.Context, gen uint64, key string, w domain.Window) {
	if e.cache == nil {
		return
	}
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	if e.generation != gen {
		e.logger.Debug("window not cached, store changed during read", "key", key)
		return
	}
	if err := e.cache.Set(ctx, key, w); err != nil {
		e.logger.Warn("window cache write failed", "error", err, "key", key)
	}
}
