package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
	"github.com/couchcryptid/solar-outlook-service/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCycles struct {
	mu          sync.Mutex
	refreshErrs []error
	modelErrs   []error
	refreshes   int
	models      int
}

func (f *fakeCycles) Refresh(_ context.Context) (reconcile.RefreshResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return reconcile.RefreshResult{Parsed: 27, Upserted: 27}, pop(&f.refreshErrs)
}

func (f *fakeCycles) RunModel(_ context.Context) (reconcile.MergeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models++
	return reconcile.MergeResult{Accepted: 30, Upserted: 30}, pop(&f.modelErrs)
}

func (f *fakeCycles) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes, f.models
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func testOptions() Options {
	return Options{
		RefreshSpec:     "10 16 * * *",
		RefreshTimezone: "UTC",
		ModelSpec:       "0 6 * * *",
		ModelTimezone:   "Asia/Kolkata",
		MaxAttempts:     3,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      4 * time.Millisecond,
	}
}

func TestNewRegistersJobs(t *testing.T) {
	s, err := New(&fakeCycles{}, slog.Default(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Jobs())
}

func TestNewWithoutModelSchedule(t *testing.T) {
	opts := testOptions()
	opts.ModelSpec = ""

	s, err := New(&fakeCycles{}, slog.Default(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Jobs())
}

func TestNewRejectsBadSchedules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"bad refresh spec", func(o *Options) { o.RefreshSpec = "every day" }},
		{"bad model spec", func(o *Options) { o.ModelSpec = "61 * * * *" }},
		{"bad refresh timezone", func(o *Options) { o.RefreshTimezone = "Mars/Olympus" }},
		{"bad model timezone", func(o *Options) { o.ModelTimezone = "Nowhere/City" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.mutate(&opts)
			_, err := New(&fakeCycles{}, slog.Default(), opts)
			require.Error(t, err)
		})
	}
}

func TestRunRefreshRetriesTransientFailures(t *testing.T) {
	f := &fakeCycles{refreshErrs: []error{
		fmt.Errorf("%w: status 503", domain.ErrUpstreamUnavailable),
		fmt.Errorf("%w: status 502", domain.ErrUpstreamUnavailable),
	}}
	s, err := New(f, slog.Default(), testOptions())
	require.NoError(t, err)

	s.RunRefresh(context.Background())

	refreshes, _ := f.counts()
	assert.Equal(t, 3, refreshes)
}

func TestRunRefreshGivesUpAfterMaxAttempts(t *testing.T) {
	upstream := fmt.Errorf("%w: timeout", domain.ErrUpstreamUnavailable)
	f := &fakeCycles{refreshErrs: []error{upstream, upstream, upstream, upstream}}
	s, err := New(f, slog.Default(), testOptions())
	require.NoError(t, err)

	s.RunRefresh(context.Background())

	refreshes, _ := f.counts()
	assert.Equal(t, 3, refreshes)
}

func TestRunDoesNotRetryPermanentFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"cycle in progress", domain.ErrCycleInProgress},
		{"empty bulletin", domain.ErrEmptyBulletin},
		{"invalid prediction", fmt.Errorf("%w: no rows", domain.ErrInvalidPrediction)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeCycles{refreshErrs: []error{tt.err}, modelErrs: []error{tt.err}}
			s, err := New(f, slog.Default(), testOptions())
			require.NoError(t, err)

			s.RunRefresh(context.Background())
			s.RunModel(context.Background())

			refreshes, models := f.counts()
			assert.Equal(t, 1, refreshes)
			assert.Equal(t, 1, models)
		})
	}
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	opts := testOptions()
	opts.InitialBackoff = time.Hour
	opts.MaxBackoff = time.Hour
	f := &fakeCycles{modelErrs: []error{errors.New("model exited: exit status 1")}}
	s, err := New(f, slog.Default(), opts)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	s.RunModel(ctx)

	_, models := f.counts()
	assert.Equal(t, 1, models)
}

func TestRunStartup(t *testing.T) {
	f := &fakeCycles{}
	s, err := New(f, slog.Default(), testOptions())
	require.NoError(t, err)

	s.RunStartup(context.Background())

	refreshes, models := f.counts()
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, 1, models)
}

func TestRunStartupSkipsModelWhenDisabled(t *testing.T) {
	opts := testOptions()
	opts.ModelSpec = ""
	f := &fakeCycles{}
	s, err := New(f, slog.Default(), opts)
	require.NoError(t, err)

	s.RunStartup(context.Background())

	refreshes, models := f.counts()
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, 0, models)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, err := New(&fakeCycles{}, slog.Default(), testOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond, 5*time.Second))
	assert.Equal(t, 5*time.Second, nextBackoff(4*time.Second, 5*time.Second))
}
