package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Source tags where a row came from.
type Source string

const (
	SourceObserved  Source = "observed"
	SourcePredicted Source = "predicted"
	SourceOther     Source = "other"
)

// ParseSource maps a stored or user-supplied tag onto a Source. The legacy
// tags "noaa" and "lstm" are accepted for observed and predicted rows.
func ParseSource(s string) Source {
	switch s {
	case "observed", "noaa":
		return SourceObserved
	case "predicted", "lstm", "model":
		return SourcePredicted
	default:
		return SourceOther
	}
}

// ForecastRow is one day of the outlook. Rows are unique by (Date, Source).
type ForecastRow struct {
	Date      time.Time
	RadioFlux float64 // 10.7 cm solar radio flux, solar flux units
	AIndex    float64 // planetary A index
	KpIndex   float64 // largest expected Kp
	Source    Source
	FetchedAt time.Time
}

// Complete reports whether every numeric field holds a finite value.
func (r ForecastRow) Complete() bool {
	return finite(r.RadioFlux) && finite(r.AIndex) && finite(r.KpIndex)
}

// Key identifies the row in the store.
func (r ForecastRow) Key() string {
	return FormatDate(r.Date) + "/" + string(r.Source)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// rowJSON is the wire form. Both naming families are written; either is read.
type rowJSON struct {
	Date      string     `json:"date"`
	F107      *float64   `json:"f107,omitempty"`
	RadioFlux *float64   `json:"radio_flux,omitempty"`
	AIndex    *float64   `json:"a_index,omitempty"`
	ApIndex   *float64   `json:"ap_index,omitempty"`
	KpMax     *float64   `json:"kp_max,omitempty"`
	KpIndex   *float64   `json:"kp_index,omitempty"`
	Source    string     `json:"source,omitempty"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

// MarshalJSON writes the date as YYYY-MM-DD and every value under both of
// its names. Non-finite values are omitted.
func (r ForecastRow) MarshalJSON() ([]byte, error) {
	out := rowJSON{
		Date:   FormatDate(r.Date),
		Source: string(r.Source),
	}
	if finite(r.RadioFlux) {
		out.F107, out.RadioFlux = &r.RadioFlux, &r.RadioFlux
	}
	if finite(r.AIndex) {
		out.AIndex, out.ApIndex = &r.AIndex, &r.AIndex
	}
	if finite(r.KpIndex) {
		out.KpMax, out.KpIndex = &r.KpIndex, &r.KpIndex
	}
	if !r.FetchedAt.IsZero() {
		fetched := r.FetchedAt.UTC()
		out.FetchedAt = &fetched
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts either naming family, preferring radio_flux, a_index
// and kp_index when both are present. Missing values decode as NaN so the
// row reports !Complete().
func (r *ForecastRow) UnmarshalJSON(data []byte) error {
	var in rowJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	d, ok := ParseDate(in.Date)
	if !ok {
		return fmt.Errorf("invalid row date %q", in.Date)
	}
	*r = ForecastRow{
		Date:      d,
		RadioFlux: pick(in.RadioFlux, in.F107),
		AIndex:    pick(in.AIndex, in.ApIndex),
		KpIndex:   pick(in.KpIndex, in.KpMax),
	}
	if in.Source != "" {
		r.Source = ParseSource(in.Source)
	}
	if in.FetchedAt != nil {
		r.FetchedAt = in.FetchedAt.UTC()
	}
	return nil
}

func pick(preferred, alias *float64) float64 {
	switch {
	case preferred != nil:
		return *preferred
	case alias != nil:
		return *alias
	default:
		return math.NaN()
	}
}
