// Package postgres stores forecast rows in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS forecast_rows (
	date       DATE             NOT NULL,
	source     TEXT             NOT NULL,
	radio_flux DOUBLE PRECISION NOT NULL,
	a_index    DOUBLE PRECISION NOT NULL,
	kp_index   DOUBLE PRECISION NOT NULL,
	fetched_at TIMESTAMPTZ      NOT NULL,
	PRIMARY KEY (date, source)
)`

const upsertRow = `
INSERT INTO forecast_rows (date, source, radio_flux, a_index, kp_index, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (date, source) DO UPDATE SET
	radio_flux = EXCLUDED.radio_flux,
	a_index    = EXCLUDED.a_index,
	kp_index   = EXCLUDED.kp_index,
	fetched_at = EXCLUDED.fetched_at`

const selectColumns = `SELECT date, source, radio_flux, a_index, kp_index, fetched_at FROM forecast_rows`

// DBPool is the subset of *pgxpool.Pool the store uses.
type DBPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Store implements reconcile.Store on PostgreSQL.
type Store struct {
	pool DBPool
}

// NewStore wraps an open pool.
func NewStore(pool DBPool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Migrate creates the forecast table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create forecast_rows: %w", err)
	}
	return nil
}

// UpsertRows writes each row with its own statement so one bad row does not
// block the others.
func (s *Store) UpsertRows(ctx context.Context, rows []domain.ForecastRow) (int, error) {
	var errs []error
	written := 0
	for _, r := range rows {
		_, err := s.pool.Exec(ctx, upsertRow,
			domain.NormalizeDate(r.Date), string(r.Source), r.RadioFlux, r.AIndex, r.KpIndex, r.FetchedAt.UTC())
		if err != nil {
			errs = append(errs, fmt.Errorf("upsert %s: %w", r.Key(), err))
			continue
		}
		written++
	}
	return written, errors.Join(errs...)
}

// DeleteSourceExcept removes rows of source whose date is not in keep.
func (s *Store) DeleteSourceExcept(ctx context.Context, source domain.Source, keep []time.Time) (int64, error) {
	dates := make([]time.Time, len(keep))
	for i, d := range keep {
		dates[i] = domain.NormalizeDate(d)
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM forecast_rows WHERE source = $1 AND NOT (date = ANY($2::date[]))`,
		string(source), dates)
	if err != nil {
		return 0, fmt.Errorf("delete %s rows: %w", source, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteSourceThrough removes rows of source dated on or before boundary.
func (s *Store) DeleteSourceThrough(ctx context.Context, source domain.Source, boundary time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM forecast_rows WHERE source = $1 AND date <= $2`,
		string(source), domain.NormalizeDate(boundary))
	if err != nil {
		return 0, fmt.Errorf("delete %s rows through %s: %w", source, domain.FormatDate(boundary), err)
	}
	return tag.RowsAffected(), nil
}

// ListBySource returns rows of source ordered by date.
func (s *Store) ListBySource(ctx context.Context, source domain.Source) ([]domain.ForecastRow, error) {
	rows, err := s.pool.Query(ctx, selectColumns+` WHERE source = $1 ORDER BY date`, string(source))
	if err != nil {
		return nil, fmt.Errorf("list %s rows: %w", source, err)
	}
	return scanRows(rows)
}

// ListAll returns every row ordered by date, then source.
func (s *Store) ListAll(ctx context.Context) ([]domain.ForecastRow, error) {
	rows, err := s.pool.Query(ctx, selectColumns+` ORDER BY date, source`)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	return scanRows(rows)
}

// LatestDate returns the newest date stored for source.
func (s *Store) LatestDate(ctx context.Context, source domain.Source) (time.Time, bool, error) {
	var latest *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT max(date) FROM forecast_rows WHERE source = $1`, string(source)).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("latest %s date: %w", source, err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return domain.NormalizeDate(*latest), true, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanRows(rows pgx.Rows) ([]domain.ForecastRow, error) {
	defer rows.Close()

	var out []domain.ForecastRow
	for rows.Next() {
		var (
			r      domain.ForecastRow
			source string
		)
		if err := rows.Scan(&r.Date, &source, &r.RadioFlux, &r.AIndex, &r.KpIndex, &r.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan forecast row: %w", err)
		}
		r.Date = domain.NormalizeDate(r.Date)
		r.Source = domain.ParseSource(source)
		r.FetchedAt = r.FetchedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forecast rows: %w", err)
	}
	return out, nil
}
