package domain

import "time"

// CycleKind names the write cycle that produced a CycleEvent.
type CycleKind string

const (
	CycleRefresh     CycleKind = "refresh"
	CyclePredictions CycleKind = "predictions"
)

// CycleEvent is announced after a refresh or prediction merge has written to
// the store. Consumers use it to invalidate their own copies of the window.
type CycleEvent struct {
	Kind        CycleKind `json:"kind"`
	Source      Source    `json:"source"`
	RowsWritten int       `json:"rows_written"`
	RowsDeleted int64     `json:"rows_deleted"`
	FirstDate   string    `json:"first_date,omitempty"`
	LastDate    string    `json:"last_date,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewCycleEvent summarizes a completed write of rows.
func NewCycleEvent(kind CycleKind, source Source, rows []ForecastRow, written int, deleted int64) CycleEvent {
	ev := CycleEvent{
		Kind:        kind,
		Source:      source,
		RowsWritten: written,
		RowsDeleted: deleted,
		CompletedAt: Now().UTC(),
	}
	if len(rows) > 0 {
		ev.FirstDate = FormatDate(rows[0].Date)
		ev.LastDate = FormatDate(rows[len(rows)-1].Date)
	}
	return ev
}
