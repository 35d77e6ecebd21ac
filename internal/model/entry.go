package model

import "time"

// Source discriminates how a WorkEntry's hours were produced.
type Source string

const (
	SourceInferred Source = "inferred"
	SourceManual   Source = "manual"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceInferred || s == SourceManual
}

// DateLayout is the calendar-day format used for entry keys.
const DateLayout = "2006-01-02"

// WorkEntry is one calendar day's worked hours for a binding. There is at
// most one entry per (BindingID, Date).
type WorkEntry struct {
	BindingID   string    `json:"binding_id"`
	Date        string    `json:"date"`
	Hours       float64   `json:"hours"`
	Source      Source    `json:"source"`
	CommitCount int       `json:"commit_count"`
	FirstCommit time.Time `json:"first_commit,omitzero"`
	LastCommit  time.Time `json:"last_commit,omitzero"`
}
