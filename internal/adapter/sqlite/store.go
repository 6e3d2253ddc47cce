// Package sqlite stores forecast rows in a local SQLite file using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS forecast_rows (
	date       TEXT NOT NULL,
	source     TEXT NOT NULL,
	radio_flux REAL NOT NULL,
	a_index    REAL NOT NULL,
	kp_index   REAL NOT NULL,
	fetched_at TEXT NOT NULL,
	PRIMARY KEY (date, source)
)`

const upsertRow = `
INSERT INTO forecast_rows (date, source, radio_flux, a_index, kp_index, fetched_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(date, source) DO UPDATE SET
	radio_flux = excluded.radio_flux,
	a_index    = excluded.a_index,
	kp_index   = excluded.kp_index,
	fetched_at = excluded.fetched_at`

const selectColumns = `SELECT date, source, radio_flux, a_index, kp_index, fetched_at FROM forecast_rows`

// Store implements reconcile.Store on SQLite. Dates are stored as
// YYYY-MM-DD text so ordering and equality are plain string comparisons.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure pragmas: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertRows writes each row independently; failures are joined.
func (s *Store) UpsertRows(ctx context.Context, rows []domain.ForecastRow) (int, error) {
	var errs []error
	written := 0
	for _, r := range rows {
		_, err := s.db.ExecContext(ctx, upsertRow,
			domain.FormatDate(r.Date), string(r.Source), r.RadioFlux, r.AIndex, r.KpIndex,
			r.FetchedAt.UTC().Format(time.RFC3339Nano))
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
	query := `DELETE FROM forecast_rows WHERE source = ?`
	args := []any{string(source)}
	if len(keep) > 0 {
		query += ` AND date NOT IN (?` + strings.Repeat(`, ?`, len(keep)-1) + `)`
		for _, d := range keep {
			args = append(args, domain.FormatDate(d))
		}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s rows: %w", source, err)
	}
	return res.RowsAffected()
}

// DeleteSourceThrough removes rows of source dated on or before boundary.
func (s *Store) DeleteSourceThrough(ctx context.Context, source domain.Source, boundary time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM forecast_rows WHERE source = ? AND date <= ?`,
		string(source), domain.FormatDate(boundary))
	if err != nil {
		return 0, fmt.Errorf("delete %s rows through %s: %w", source, domain.FormatDate(boundary), err)
	}
	return res.RowsAffected()
}

// ListBySource returns rows of source ordered by date.
func (s *Store) ListBySource(ctx context.Context, source domain.Source) ([]domain.ForecastRow, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE source = ? ORDER BY date`, string(source))
	if err != nil {
		return nil, fmt.Errorf("list %s rows: %w", source, err)
	}
	return scanRows(rows)
}

// ListAll returns every row ordered by date, then source.
func (s *Store) ListAll(ctx context.Context) ([]domain.ForecastRow, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY date, source`)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	return scanRows(rows)
}

// LatestDate returns the newest date stored for source.
func (s *Store) LatestDate(ctx context.Context, source domain.Source) (time.Time, bool, error) {
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT max(date) FROM forecast_rows WHERE source = ?`, string(source)).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest %s date: %w", source, err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	d, ok := domain.ParseDate(latest.String)
	if !ok {
		return time.Time{}, false, fmt.Errorf("latest %s date: unparseable %q", source, latest.String)
	}
	return d, true, nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func scanRows(rows *sql.Rows) ([]domain.ForecastRow, error) {
	defer rows.Close()

	var out []domain.ForecastRow
	for rows.Next() {
		var (
			r                domain.ForecastRow
			date, source, at string
		)
		if err := rows.Scan(&date, &source, &r.RadioFlux, &r.AIndex, &r.KpIndex, &at); err != nil {
			return nil, fmt.Errorf("scan forecast row: %w", err)
		}
		d, ok := domain.ParseDate(date)
		if !ok {
			return nil, fmt.Errorf("scan forecast row: unparseable date %q", date)
		}
		r.Date = d
		r.Source = domain.ParseSource(source)
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			r.FetchedAt = t.UTC()
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forecast rows: %w", err)
	}
	return out, nil
}
