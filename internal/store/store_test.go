package store_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/git-timesheets/internal/apperr"
	"github.com/Tiliavir/git-timesheets/internal/model"
	"github.com/Tiliavir/git-timesheets/internal/store"
)

var march = model.Period{Year: 2024, Month: time.March}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "gts.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func bind(t *testing.T, s *store.Store, path, client, project string) model.Binding {
	t.Helper()
	b, err := s.CreateBinding(context.Background(), model.Binding{
		RepositoryPath: path,
		ClientName:     client,
		ProjectName:    project,
		Timezone:       "UTC",
	})
	require.NoError(t, err)
	return b
}

func inferred(bindingID, date string, hours float64) model.WorkEntry {
	return model.WorkEntry{BindingID: bindingID, Date: date, Hours: hours, Source: model.SourceInferred, CommitCount: 2}
}

func TestCreateBindingDuplicate(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	b := bind(t, s, "/src/shop", "Acme", "Shop")
	require.NotEmpty(t, b.ID)
	require.False(t, b.CreatedAt.IsZero())

	_, err := s.CreateBinding(ctx, model.Binding{RepositoryPath: "/src/shop", ClientName: "Acme", ProjectName: "Shop"})
	require.True(t, errors.Is(err, apperr.ErrDuplicateBinding), "got %v", err)

	// Same repository, different project is a separate binding.
	bind(t, s, "/src/shop", "Acme", "Ops")

	got, err := s.BindingsByPath(ctx, "/src/shop")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Ops", got[0].ProjectName)

	loaded, err := s.GetBinding(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, b.RepositoryPath, loaded.RepositoryPath)
	require.True(t, b.CreatedAt.Equal(loaded.CreatedAt))
}

func TestGetBindingNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.GetBinding(context.Background(), "missing")
	require.ErrorIs(t, err, apperr.ErrBindingNotFound)
}

func TestUpsertOutcomes(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	b := bind(t, s, "/src/shop", "Acme", "Shop")

	out, err := s.UpsertEntry(ctx, inferred(b.ID, "2024-03-05", 1.5))
	require.NoError(t, err)
	require.Equal(t, store.Inserted, out)

	out, err = s.UpsertEntry(ctx, inferred(b.ID, "2024-03-05", 1.5))
	require.NoError(t, err)
	require.Equal(t, store.Unchanged, out)

	out, err = s.UpsertEntry(ctx, inferred(b.ID, "2024-03-05", 2))
	require.NoError(t, err)
	require.Equal(t, store.Updated, out)

	require.NoError(t, s.SetManual(ctx, b.ID, "2024-03-05", 6))
	out, err = s.UpsertEntry(ctx, inferred(b.ID, "2024-03-05", 3))
	require.NoError(t, err)
	require.Equal(t, store.Superseded, out)

	e, ok, err := s.Entry(ctx, b.ID, "2024-03-05")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 6.0, e.Hours)
	require.Equal(t, model.SourceManual, e.Source)
}

func TestUpsertUnknownBinding(t *testing.T) {
	s := openStore(t)
	_, err := s.UpsertEntry(context.Background(), inferred("nope", "2024-03-05", 1))
	require.ErrorIs(t, err, apperr.ErrBindingNotFound)
}

func TestSetManualBounds(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	b := bind(t, s, "/src/shop", "Acme", "Shop")

	tests := []struct {
		hours   float64
		wantErr bool
	}{
		{-0.5, true},
		{0, false},
		{8, false},
		{24, false},
		{24.01, true},
		{25, true},
		{math.NaN(), true},
		{math.Inf(1), true},
	}
	for _, tt := range tests {
		err := s.SetManual(ctx, b.ID, "2024-03-06", tt.hours)
		if tt.wantErr {
			require.ErrorIs(t, err, apperr.ErrInvalidRange, "hours %v", tt.hours)
			require.Equal(t, 1, apperr.ExitCode(err), "hours %v", tt.hours)
			continue
		}
		require.NoError(t, err, "hours %v", tt.hours)
		e, _, err := s.Entry(ctx, b.ID, "2024-03-06")
		require.NoError(t, err)
		require.Equal(t, tt.hours, e.Hours)
	}

	require.ErrorIs(t, s.SetManual(ctx, b.ID, "2024-02-30", 1), apperr.ErrInvalidDate)
	require.ErrorIs(t, s.SetManual(ctx, "nope", "2024-03-06", 1), apperr.ErrBindingNotFound)

	_, err := s.UpsertEntry(ctx, inferred(b.ID, "2024-03-07", math.NaN()))
	require.ErrorIs(t, err, apperr.ErrInvalidRange)
}

func TestClearManualAllowsReinference(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	b := bind(t, s, "/src/shop", "Acme", "Shop")

	cleared, err := s.ClearManual(ctx, b.ID, "2024-03-05")
	require.NoError(t, err)
	require.False(t, cleared)

	require.NoError(t, s.SetManual(ctx, b.ID, "2024-03-05", 5))
	cleared, err = s.ClearManual(ctx, b.ID, "2024-03-05")
	require.NoError(t, err)
	require.True(t, cleared)

	out, err := s.UpsertEntry(ctx, inferred(b.ID, "2024-03-05", 1.5))
	require.NoError(t, err)
	require.Equal(t, store.Inserted, out)
}

func TestClearManualKeepsInferred(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	b := bind(t, s, "/src/shop", "Acme", "Shop")

	_, err := s.UpsertEntry(ctx, inferred(b.ID, "2024-03-05", 1.5))
	require.NoError(t, err)
	cleared, err := s.ClearManual(ctx, b.ID, "2024-03-05")
	require.NoError(t, err)
	require.False(t, cleared)

	_, ok, err := s.Entry(ctx, b.ID, "2024-03-05")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestApplyScanIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	b := bind(t, s, "/src/shop", "Acme", "Shop")

	results := []store.ScanResult{{
		BindingID: b.ID,
		Period:    march,
		Entries: []model.WorkEntry{
			inferred(b.ID, "2024-03-05", 1.5),
			inferred(b.ID, "2024-03-06", 0.25),
		},
	}}

	sum, err := s.ApplyScan(ctx, results)
	require.NoError(t, err)
	require.Equal(t, store.ScanSummary{Inserted: 2}, sum)

	sum, err = s.ApplyScan(ctx, results)
	require.NoError(t, err)
	require.Equal(t, store.ScanSummary{Unchanged: 2}, sum)

	entries, err := s.EntriesForPeriod(ctx, march)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestApplyScanRemovesStaleInferred(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	b := bind(t, s, "/src/shop", "Acme", "Shop")

	_, err := s.ApplyScan(ctx, []store.ScanResult{{
		BindingID: b.ID,
		Period:    march,
		Entries: []model.WorkEntry{
			inferred(b.ID, "2024-03-05", 1.5),
			inferred(b.ID, "2024-03-06", 2),
		},
	}})
	require.NoError(t, err)
	require.NoError(t, s.SetManual(ctx, b.ID, "2024-03-07", 4))
	// An entry outside the period survives a March rescan.
	_, err = s.UpsertEntry(ctx, inferred(b.ID, "2024-04-01", 1))
	require.NoError(t, err)

	sum, err := s.ApplyScan(ctx, []store.ScanResult{{
		BindingID: b.ID,
		Period:    march,
		Entries:   []model.WorkEntry{inferred(b.ID, "2024-03-05", 1.5)},
	}})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Removed)
	require.Equal(t, 1, sum.Unchanged)

	entries, err := s.EntriesForPeriod(ctx, march)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "2024-03-05", entries[0].Date)
	require.Equal(t, "2024-03-07", entries[1].Date)
	require.Equal(t, model.SourceManual, entries[1].Source)

	april, err := s.EntriesForPeriod(ctx, model.Period{Year: 2024, Month: time.April})
	require.NoError(t, err)
	require.Len(t, april, 1)
}

func TestApplyScanIsAtomic(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	b := bind(t, s, "/src/shop", "Acme", "Shop")

	_, err := s.ApplyScan(ctx, []store.ScanResult{
		{BindingID: b.ID, Period: march, Entries: []model.WorkEntry{inferred(b.ID, "2024-03-05", 1.5)}},
		{BindingID: "gone", Period: march, Entries: []model.WorkEntry{inferred("gone", "2024-03-05", 1)}},
	})
	require.ErrorIs(t, err, apperr.ErrBindingNotFound)

	entries, err := s.EntriesForPeriod(ctx, march)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestApplyScanCancelled(t *testing.T) {
	s := openStore(t)
	b := bind(t, s, "/src/shop", "Acme", "Shop")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ApplyScan(ctx, []store.ScanResult{
		{BindingID: b.ID, Period: march, Entries: []model.WorkEntry{inferred(b.ID, "2024-03-05", 1.5)}},
	})
	require.ErrorIs(t, err, context.Canceled)

	entries, err := s.EntriesForPeriod(context.Background(), march)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDeleteBindingRemovesEntries(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	b := bind(t, s, "/src/shop", "Acme", "Shop")
	other := bind(t, s, "/src/blog", "Acme", "Blog")

	_, err := s.UpsertEntry(ctx, inferred(b.ID, "2024-03-05", 1.5))
	require.NoError(t, err)
	require.NoError(t, s.SetManual(ctx, b.ID, "2024-03-06", 3))
	_, err = s.UpsertEntry(ctx, inferred(other.ID, "2024-03-05", 1))
	require.NoError(t, err)

	removed, err := s.DeleteBinding(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	entries, err := s.EntriesForPeriod(ctx, march)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, other.ID, entries[0].BindingID)

	_, err = s.DeleteBinding(ctx, b.ID)
	require.ErrorIs(t, err, apperr.ErrBindingNotFound)
}

func TestOpenLockedStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gts.db")
	first, err := store.Open(context.Background(), path, store.Options{})
	require.NoError(t, err)
	defer first.Close()

	_, err = store.Open(context.Background(), path, store.Options{LockTimeout: 100 * time.Millisecond})
	require.ErrorIs(t, err, apperr.ErrStoreLocked)
	require.Equal(t, 2, apperr.ExitCode(err))
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gts.db")
	ctx := context.Background()

	s, err := store.Open(ctx, path, store.Options{})
	require.NoError(t, err)
	b, err := s.CreateBinding(ctx, model.Binding{RepositoryPath: "/src/shop", ClientName: "Acme", ProjectName: "Shop"})
	require.NoError(t, err)
	first := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	e := inferred(b.ID, "2024-03-05", 1.5)
	e.FirstCommit = first
	e.LastCommit = first.Add(90 * time.Minute)
	_, err = s.UpsertEntry(ctx, e)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = store.Open(ctx, path, store.Options{})
	require.NoError(t, err)
	defer s.Close()
	got, ok, err := s.Entry(ctx, b.ID, "2024-03-05")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.FirstCommit.Equal(first))

	loaded, err := s.GetBinding(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, "UTC", loaded.Timezone)

	// Identical data from a second run is unchanged, not rewritten.
	out, err := s.UpsertEntry(ctx, e)
	require.NoError(t, err)
	require.Equal(t, store.Unchanged, out)
}
