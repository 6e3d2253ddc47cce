package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
	"github.com/couchcryptid/solar-outlook-service/internal/observability"
	"github.com/couchcryptid/solar-outlook-service/internal/reconcile"
)

// --- mocks ---

type memStore struct {
	mu      sync.Mutex
	rows    map[string]domain.ForecastRow
	failOn  map[string]bool // date keys whose upsert fails
	pingErr error
	listErr error

	upsertCalls int
	deleteCalls int
}

func newMemStore(rows ...domain.ForecastRow) *memStore {
	s := &memStore{rows: make(map[string]domain.ForecastRow), failOn: make(map[string]bool)}
	for _, r := range rows {
		s.rows[r.Key()] = r
	}
	return s
}

func (s *memStore) UpsertRows(_ context.Context, rows []domain.ForecastRow) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	var errs []error
	written := 0
	for _, r := range rows {
		if s.failOn[domain.FormatDate(r.Date)] {
			errs = append(errs, fmt.Errorf("row %s: disk full", r.Key()))
			continue
		}
		s.rows[r.Key()] = r
		written++
	}
	return written, errors.Join(errs...)
}

func (s *memStore) DeleteSourceExcept(_ context.Context, source domain.Source, keep []time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	kept := make(map[int64]bool, len(keep))
	for _, d := range keep {
		kept[d.Unix()] = true
	}
	var n int64
	for k, r := range s.rows {
		if r.Source == source && !kept[r.Date.Unix()] {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteSourceThrough(_ context.Context, source domain.Source, boundary time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	var n int64
	for k, r := range s.rows {
		if r.Source == source && !r.Date.After(boundary) {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListBySource(_ context.Context, source domain.Source) ([]domain.ForecastRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.ForecastRow
	for _, r := range s.rows {
		if r.Source == source {
			out = append(out, r)
		}
	}
	sortRows(out)
	return out, nil
}

func (s *memStore) ListAll(_ context.Context) ([]domain.ForecastRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.ForecastRow, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sortRows(out)
	return out, nil
}

func (s *memStore) LatestDate(_ context.Context, source domain.Source) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest time.Time
	found := false
	for _, r := range s.rows {
		if r.Source == source && (!found || r.Date.After(latest)) {
			latest, found = r.Date, true
		}
	}
	return latest, found, nil
}

func (s *memStore) Ping(context.Context) error { return s.pingErr }

func (s *memStore) dates(source domain.Source) []string {
	rows, _ := s.ListBySource(context.Background(), source)
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = domain.FormatDate(r.Date)
	}
	return out
}

func sortRows(rows []domain.ForecastRow) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Source < rows[j].Source
	})
}

type staticBulletin struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (b *staticBulletin) FetchBulletin(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return b.text, b.err
}

// blockingBulletin holds FetchBulletin until release is closed.
type blockingBulletin struct {
	text    string
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBulletin) FetchBulletin(ctx context.Context) (string, error) {
	close(b.entered)
	select {
	case <-b.release:
		return b.text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type stubModel struct {
	rows []domain.ForecastRow
	err  error
}

func (m *stubModel) Predict(context.Context) ([]domain.ForecastRow, error) {
	return m.rows, m.err
}

type memCache struct {
	mu          sync.Mutex
	windows     map[string]domain.Window
	invalidated int
}

func newMemCache() *memCache {
	return &memCache{windows: make(map[string]domain.Window)}
}

func (c *memCache) Get(_ context.Context, key string) (domain.Window, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[key]
	return w, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, w domain.Window) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows[key] = w
	return nil
}

func (c *memCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows = make(map[string]domain.Window)
	c.invalidated++
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.CycleEvent
}

func (n *recordingNotifier) Publish(_ context.Context, ev domain.CycleEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

// --- helpers ---

func newTestEngine(store reconcile.Store, bulletin reconcile.BulletinSource, opts ...reconcile.Option) *reconcile.Engine {
	return reconcile.New(store, bulletin, slog.Default(), observability.NewMetricsForTesting(), opts...)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// bulletinText renders n consecutive days starting at start.
func bulletinText(start time.Time, n int) string {
	var b strings.Builder
	b.WriteString(":Product: 27-day Space Weather Outlook Table 27DO.txt\n")
	b.WriteString("#   UTC      Radio Flux   Planetary   Largest\n")
	for i := range n {
		fmt.Fprintf(&b, "%s     %d     %d     %d\n", domain.AddDays(start, i).Format("2006 Jan 02"), 140+i, 5+i%3, 2+i%2)
	}
	return b.String()
}

func rowsFor(source domain.Source, start time.Time, n int, aIndex float64) []domain.ForecastRow {
	rows := make([]domain.ForecastRow, n)
	for i := range rows {
		rows[i] = domain.ForecastRow{
			Date:      domain.AddDays(start, i),
			RadioFlux: float64(150 + i),
			AIndex:    aIndex,
			KpIndex:   3,
			Source:    source,
		}
	}
	return rows
}

func nan() float64 { return math.NaN() }
