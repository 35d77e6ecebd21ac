package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Tiliavir/git-timesheets/internal/apperr"
	"github.com/Tiliavir/git-timesheets/internal/model"
)

// Outcome reports what UpsertEntry did with an entry.
type Outcome int

const (
	Inserted Outcome = iota
	Updated
	Unchanged
	// Superseded means a manual override exists and the inferred entry was
	// not written. It is not an error.
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	case Superseded:
		return "superseded"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MaxHours is the largest value any entry may hold.
const MaxHours = 24.0

// ValidHours reports whether h is a storable number of hours: a real
// number in [0, MaxHours].
func ValidHours(h float64) bool {
	return !math.IsNaN(h) && h >= 0 && h <= MaxHours
}

const entryColumns = `binding_id, date, hours, source, commit_count, first_commit, last_commit`

// UpsertEntry writes e unless a manual entry already occupies its slot and
// e is inferred.
func (s *Store) UpsertEntry(ctx context.Context, e model.WorkEntry) (Outcome, error) {
	if err := validateEntry(e); err != nil {
		return 0, err
	}
	var outcome Outcome
	err := s.withTx(ctx, "upsert entry", func(tx *sql.Tx) error {
		var err error
		outcome, err = s.upsert(ctx, tx, e)
		return err
	})
	return outcome, err
}

// SetManual records a manual override for one day. It always overwrites,
// whatever the slot currently holds.
func (s *Store) SetManual(ctx context.Context, bindingID, date string, hours float64) error {
	if !ValidHours(hours) {
		return apperr.New("set hours", hours, apperr.ErrInvalidRange)
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return apperr.New("set hours", date, apperr.ErrInvalidDate)
	}
	return s.withTx(ctx, "set manual entry", func(tx *sql.Tx) error {
		if err := bindingExists(ctx, tx, bindingID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entries (binding_id, date, hours, source, commit_count, updated_at)
			VALUES (?, ?, ?, 'manual', 0, ?)
			ON CONFLICT (binding_id, date) DO UPDATE SET
				hours = excluded.hours,
				source = 'manual',
				updated_at = excluded.updated_at`,
			bindingID, date, hours, formatTime(s.now()))
		if err != nil {
			return ioErr("set manual entry", err)
		}
		s.logger.Debug("set manual entry", "binding", bindingID, "date", date, "hours", hours)
		return nil
	})
}

// ClearManual removes a manual override so the next scan re-infers the day.
// It reports whether an override existed.
func (s *Store) ClearManual(ctx context.Context, bindingID, date string) (bool, error) {
	var cleared bool
	err := s.withTx(ctx, "clear manual entry", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM entries WHERE binding_id = ? AND date = ? AND source = 'manual'`, bindingID, date)
		if err != nil {
			return ioErr("clear manual entry", err)
		}
		n, _ := res.RowsAffected()
		cleared = n > 0
		return nil
	})
	return cleared, err
}

// Entry returns the entry in one slot, if any.
func (s *Store) Entry(ctx context.Context, bindingID, date string) (model.WorkEntry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE binding_id = ? AND date = ?`, bindingID, date)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WorkEntry{}, false, nil
	}
	if err != nil {
		return model.WorkEntry{}, false, ioErr("get entry", err)
	}
	return e, true, nil
}

// EntriesForPeriod returns all entries dated inside p, ordered by date then
// binding.
func (s *Store) EntriesForPeriod(ctx context.Context, p model.Period) ([]model.WorkEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE date >= ? AND date <= ? ORDER BY date, binding_id`,
		p.FirstDay(), p.LastDay())
	if err != nil {
		return nil, ioErr("entries for period", err)
	}
	defer rows.Close()

	var entries []model.WorkEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, ioErr("entries for period", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("entries for period", err)
	}
	return entries, nil
}

func (s *Store) upsert(ctx context.Context, tx *sql.Tx, e model.WorkEntry) (Outcome, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE binding_id = ? AND date = ?`, e.BindingID, e.Date)
	existing, err := scanEntry(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := bindingExists(ctx, tx, e.BindingID); err != nil {
			return 0, err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entries (binding_id, date, hours, source, commit_count, first_commit, last_commit, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.BindingID, e.Date, e.Hours, string(e.Source), e.CommitCount,
			formatTime(e.FirstCommit), formatTime(e.LastCommit), formatTime(s.now()))
		if err != nil {
			return 0, ioErr("insert entry", err)
		}
		return Inserted, nil
	case err != nil:
		return 0, ioErr("read entry", err)
	}

	if existing.Source == model.SourceManual && e.Source == model.SourceInferred {
		return Superseded, nil
	}
	if sameEntry(existing, e) {
		return Unchanged, nil
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE entries SET hours = ?, source = ?, commit_count = ?, first_commit = ?, last_commit = ?, updated_at = ?
		WHERE binding_id = ? AND date = ?`,
		e.Hours, string(e.Source), e.CommitCount, formatTime(e.FirstCommit), formatTime(e.LastCommit),
		formatTime(s.now()), e.BindingID, e.Date)
	if err != nil {
		return 0, ioErr("update entry", err)
	}
	return Updated, nil
}

func sameEntry(a, b model.WorkEntry) bool {
	return a.Hours == b.Hours &&
		a.Source == b.Source &&
		a.CommitCount == b.CommitCount &&
		a.FirstCommit.Equal(b.FirstCommit) &&
		a.LastCommit.Equal(b.LastCommit)
}

func validateEntry(e model.WorkEntry) error {
	if !ValidHours(e.Hours) {
		return apperr.New("upsert entry", e.Hours, apperr.ErrInvalidRange)
	}
	if _, err := time.Parse(model.DateLayout, e.Date); err != nil {
		return apperr.New("upsert entry", e.Date, apperr.ErrInvalidDate)
	}
	if !e.Source.Valid() {
		return fmt.Errorf("upsert entry: unknown source %q", e.Source)
	}
	return nil
}

func bindingExists(ctx context.Context, tx *sql.Tx, id string) error {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bindings WHERE id = ?`, id).Scan(&n); err != nil {
		return ioErr("check binding", err)
	}
	if n == 0 {
		return apperr.New("check binding", id, apperr.ErrBindingNotFound)
	}
	return nil
}

func scanEntry(row scanner) (model.WorkEntry, error) {
	var (
		e           model.WorkEntry
		source      string
		first, last sql.NullString
	)
	if err := row.Scan(&e.BindingID, &e.Date, &e.Hours, &source, &e.CommitCount, &first, &last); err != nil {
		return model.WorkEntry{}, err
	}
	e.Source = model.Source(source)
	var err error
	if e.FirstCommit, err = parseTime(first); err != nil {
		return model.WorkEntry{}, fmt.Errorf("entry %s/%s first_commit: %w", e.BindingID, e.Date, err)
	}
	if e.LastCommit, err = parseTime(last); err != nil {
		return model.WorkEntry{}, fmt.Errorf("entry %s/%s last_commit: %w", e.BindingID, e.Date, err)
	}
	return e, nil
}
