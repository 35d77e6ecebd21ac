package store

import (
	"context"
	"database/sql"

	"github.com/Tiliavir/git-timesheets/internal/model"
)

// ScanResult is the inferred entries of one binding for one period.
type ScanResult struct {
	BindingID string
	Period    model.Period
	Entries   []model.WorkEntry
}

// ScanSummary counts what ApplyScan did.
type ScanSummary struct {
	Inserted   int
	Updated    int
	Unchanged  int
	Superseded int
	// Removed counts inferred entries deleted because their day no longer
	// has commits.
	Removed int
}

func (s *ScanSummary) add(o Outcome) {
	switch o {
	case Inserted:
		s.Inserted++
	case Updated:
		s.Updated++
	case Unchanged:
		s.Unchanged++
	case Superseded:
		s.Superseded++
	}
}

// ApplyScan writes the results of one scan in a single transaction: either
// every binding's entries land or none do. Inferred entries of a scanned
// binding and period that the scan no longer produced are deleted; manual
// entries are never touched. A cancelled ctx rolls the transaction back.
func (s *Store) ApplyScan(ctx context.Context, results []ScanResult) (ScanSummary, error) {
	for _, r := range results {
		for _, e := range r.Entries {
			if err := validateEntry(e); err != nil {
				return ScanSummary{}, err
			}
		}
	}

	var summary ScanSummary
	err := s.withTx(ctx, "apply scan", func(tx *sql.Tx) error {
		for _, r := range results {
			if err := ctx.Err(); err != nil {
				return err
			}
			keep := make(map[string]struct{}, len(r.Entries))
			for _, e := range r.Entries {
				outcome, err := s.upsert(ctx, tx, e)
				if err != nil {
					return err
				}
				summary.add(outcome)
				keep[e.Date] = struct{}{}
			}
			removed, err := removeStale(ctx, tx, r, keep)
			if err != nil {
				return err
			}
			summary.Removed += removed
		}
		return ctx.Err()
	})
	if err != nil {
		return ScanSummary{}, err
	}
	s.logger.Debug("applied scan",
		"bindings", len(results),
		"inserted", summary.Inserted,
		"updated", summary.Updated,
		"unchanged", summary.Unchanged,
		"superseded", summary.Superseded,
		"removed", summary.Removed)
	return summary, nil
}

func removeStale(ctx context.Context, tx *sql.Tx, r ScanResult, keep map[string]struct{}) (int, error) {
	if r.Period.Year == 0 {
		return 0, nil
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT date FROM entries WHERE binding_id = ? AND source = 'inferred' AND date >= ? AND date <= ?`,
		r.BindingID, r.Period.FirstDay(), r.Period.LastDay())
	if err != nil {
		return 0, ioErr("find stale entries", err)
	}
	var stale []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			rows.Close()
			return 0, ioErr("find stale entries", err)
		}
		if _, ok := keep[date]; !ok {
			stale = append(stale, date)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, ioErr("find stale entries", err)
	}

	for _, date := range stale {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entries WHERE binding_id = ? AND date = ? AND source = 'inferred'`,
			r.BindingID, date); err != nil {
			return 0, ioErr("remove stale entry", err)
		}
	}
	return len(stale), nil
}
