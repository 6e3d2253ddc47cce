package domain

import (
	"encoding/json"
	"time"
)

// WindowDays is the length of one outlook issue.
const WindowDays = 27

// Tier records which fallback produced a window.
type Tier string

const (
	TierObserved Tier = "observed" // stored observed rows
	TierStored   Tier = "stored"   // first 27 stored rows that look like bulletin data
	TierBulletin Tier = "bulletin" // bulletin re-parsed without touching the store
	TierShifted  Tier = "shifted"  // predicted rows moved to start tomorrow
	TierNone     Tier = "none"
)

// Window is the forecast series served to readers.
type Window struct {
	Tier Tier          `json:"tier"`
	Rows []ForecastRow `json:"rows"`
}

// Empty reports whether the window carries no rows.
func (w Window) Empty() bool {
	return len(w.Rows) == 0
}

// ShiftToStart moves up to the first WindowDays rows so the earliest lands on
// start. The offset is whole days, rounded. rows must be sorted ascending.
//
// The result is presentation only: it makes stale model output look like it
// begins on start.
func ShiftToStart(rows []ForecastRow, start time.Time) []ForecastRow {
	if len(rows) == 0 {
		return nil
	}
	if len(rows) > WindowDays {
		rows = rows[:WindowDays]
	}
	offset := DaysBetween(rows[0].Date, NormalizeDate(start))
	out := make([]ForecastRow, len(rows))
	for i, r := range rows {
		r.Date = AddDays(r.Date, offset)
		out[i] = r
	}
	return out
}

// WindowDay is one calendar day of a padded window. Row is nil when no row
// covers the day.
type WindowDay struct {
	Date time.Time
	Row  *ForecastRow
}

// Missing reports whether the day has no data.
func (d WindowDay) Missing() bool {
	return d.Row == nil
}

// MarshalJSON writes a present day as its row and a missing day as
// {"date": ..., "missing": true}.
func (d WindowDay) MarshalJSON() ([]byte, error) {
	if d.Row != nil {
		return json.Marshal(d.Row)
	}
	return json.Marshal(struct {
		Date    string `json:"date"`
		Missing bool   `json:"missing"`
	}{FormatDate(d.Date), true})
}

// PadWindow lays rows onto exactly days consecutive calendar days beginning
// at start. Days without a row are reported as missing; rows outside the
// range are ignored. When two rows share a date the later one wins.
func PadWindow(rows []ForecastRow, start time.Time, days int) []WindowDay {
	if days <= 0 {
		return nil
	}
	start = NormalizeDate(start)
	byDate := make(map[int64]ForecastRow, len(rows))
	for _, r := range rows {
		byDate[NormalizeDate(r.Date).Unix()] = r
	}

	out := make([]WindowDay, days)
	for i := range out {
		d := AddDays(start, i)
		out[i].Date = d
		if r, ok := byDate[d.Unix()]; ok {
			row := r
			out[i].Row = &row
		}
	}
	return out
}
