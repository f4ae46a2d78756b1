package domain

import "time"

// HistoryEntry is one answered (or failed) question as recorded in the
// history store.
type HistoryEntry struct {
	ID           string
	Question     string
	Strategy     string
	Queries      []string
	Status       string // "done" or "failed"
	ErrorMessage *string
	RowCount     int64
	Warnings     []string
	DurationMs   int64
	CreatedAt    time.Time
}

// History entry status values.
const (
	HistoryStatusDone   = "done"
	HistoryStatusFailed = "failed"
)

// HistoryFilter selects history entries for listing.
type HistoryFilter struct {
	Status *string
	Limit  int
	Offset int
}
