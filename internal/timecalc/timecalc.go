package timecalc

import (
	"fmt"
	"math"
	"time"

	"github.com/Tiliavir/git-timesheets/internal/apperr"
	"github.com/Tiliavir/git-timesheets/internal/model"
)

// Earliest and latest years accepted on the command line.
const (
	MinYear = 1970
	MaxYear = 2100
)

// DayKey formats t as YYYY-MM-DD in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(model.DateLayout)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParsePeriod validates a month (1-12) and year and returns the Period.
func ParsePeriod(year, month int) (model.Period, error) {
	if year < MinYear || year > MaxYear {
		return model.Period{}, apperr.New("parse period", fmt.Sprintf("year %d", year), apperr.ErrInvalidDate)
	}
	if month < 1 || month > 12 {
		return model.Period{}, apperr.New("parse period", fmt.Sprintf("month %d", month), apperr.ErrInvalidDate)
	}
	return model.Period{Year: year, Month: time.Month(month)}, nil
}

// ParseDay validates a day/month/year combination and returns it as a
// YYYY-MM-DD key. February 29 is only valid in leap years.
func ParseDay(year, month, day int) (string, error) {
	p, err := ParsePeriod(year, month)
	if err != nil {
		return "", err
	}
	if day < 1 || day > DaysIn(p.Year, p.Month) {
		return "", apperr.New("parse day", fmt.Sprintf("%04d-%02d-%02d", year, month, day), apperr.ErrInvalidDate)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format(model.DateLayout), nil
}

// IsWeekend reports whether the YYYY-MM-DD date is a Saturday or Sunday.
func IsWeekend(date string) bool {
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return false
	}
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// RoundHours rounds to two decimals so stored values are stable.
func RoundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

// FormatHours formats fractional hours as "8h 30m" or "45m".
func FormatHours(hours float64) string {
	total := int64(math.Round(hours * 60))
	h := total / 60
	m := total % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
