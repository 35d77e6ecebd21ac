package model

import (
	"fmt"
	"time"
)

// Period is a calendar month.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// String returns a label like "March, 2024".
func (p Period) String() string {
	return fmt.Sprintf("%s, %d", p.Month, p.Year)
}

// Contains reports whether the YYYY-MM-DD date falls inside the period.
func (p Period) Contains(date string) bool {
	return len(date) >= 7 && date[:7] == fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// FirstDay and LastDay bound the period as YYYY-MM-DD strings.
func (p Period) FirstDay() string {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).Format(DateLayout)
}

func (p Period) LastDay() string {
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Format(DateLayout)
}

// Line is one timesheet row: an entry together with the binding it belongs to.
type Line struct {
	Binding Binding   `json:"binding"`
	Entry   WorkEntry `json:"entry"`
}

// Timesheet is the aggregated view over all entries of a period. It is
// derived from stored entries and bindings on demand and never persisted.
type Timesheet struct {
	Period     Period  `json:"period"`
	Lines      []Line  `json:"lines"`
	TotalHours float64 `json:"total_hours"`
	// Clients holds the stored details of the clients appearing in Lines,
	// ordered by name. Clients without details are left out.
	Clients []Client `json:"clients,omitempty"`
}

// Empty reports whether the timesheet has no lines.
func (t Timesheet) Empty() bool {
	return len(t.Lines) == 0
}
