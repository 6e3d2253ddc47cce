package reconcile

import (
	"context"
	"time"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
)

// Store persists forecast rows keyed by (date, source).
type Store interface {
	// UpsertRows writes every row, overwriting numeric fields and FetchedAt
	// of an existing (date, source) pair. Rows are independent: a failure on
	// one does not stop the rest. It returns how many rows were written and
	// the joined errors of those that were not.
	UpsertRows(ctx context.Context, rows []domain.ForecastRow) (int, error)

	// DeleteSourceExcept removes rows of source whose date is not in keep.
	DeleteSourceExcept(ctx context.Context, source domain.Source, keep []time.Time) (int64, error)

	// DeleteSourceThrough removes rows of source dated on or before boundary.
	DeleteSourceThrough(ctx context.Context, source domain.Source, boundary time.Time) (int64, error)

	// ListBySource returns rows of source in ascending date order.
	ListBySource(ctx context.Context, source domain.Source) ([]domain.ForecastRow, error)

	// ListAll returns every row ordered by date, then source.
	ListAll(ctx context.Context) ([]domain.ForecastRow, error)

	// LatestDate returns the newest date stored for source. ok is false when
	// the source has no rows.
	LatestDate(ctx context.Context, source domain.Source) (latest time.Time, ok bool, err error)

	Ping(ctx context.Context) error
}

// BulletinSource fetches the raw text of the current outlook issue.
type BulletinSource interface {
	FetchBulletin(ctx context.Context) (string, error)
}

// ModelRunner produces predicted rows from the external forecasting model.
type ModelRunner interface {
	Predict(ctx context.Context) ([]domain.ForecastRow, error)
}

// WindowCache keeps recently served windows. A miss is (Window{}, false, nil).
type WindowCache interface {
	Get(ctx context.Context, key string) (domain.Window, bool, error)
	Set(ctx context.Context, key string, w domain.Window) error
	Invalidate(ctx context.Context) error
}

// Notifier announces completed write cycles.
type Notifier interface {
	Publish(ctx context.Context, ev domain.CycleEvent) error
}
