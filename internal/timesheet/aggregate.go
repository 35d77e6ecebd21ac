// Package timesheet aggregates stored work entries into a Timesheet and
// renders it.
package timesheet

import (
	"context"
	"slices"
	"sort"

	"github.com/Tiliavir/git-timesheets/internal/model"
	"github.com/Tiliavir/git-timesheets/internal/timecalc"
)

// Filter restricts a timesheet to some clients and/or projects. Empty
// slices match everything.
type Filter struct {
	Clients  []string
	Projects []string
}

// Match reports whether b passes the filter.
func (f Filter) Match(b model.Binding) bool {
	if len(f.Clients) > 0 && !slices.Contains(f.Clients, b.ClientName) {
		return false
	}
	if len(f.Projects) > 0 && !slices.Contains(f.Projects, b.ProjectName) {
		return false
	}
	return true
}

// Build assembles the timesheet of period from bindings and entries.
// Entries outside the period, of unknown bindings, or excluded by f are
// dropped. Lines are ordered by project, then date, then client, then
// binding ID. Manual entries appear exactly as stored.
func Build(period model.Period, bindings []model.Binding, entries []model.WorkEntry, f Filter) model.Timesheet {
	byID := make(map[string]model.Binding, len(bindings))
	for _, b := range bindings {
		byID[b.ID] = b
	}

	ts := model.Timesheet{Period: period, Lines: []model.Line{}}
	for _, e := range entries {
		b, ok := byID[e.BindingID]
		if !ok || !f.Match(b) || !period.Contains(e.Date) {
			continue
		}
		ts.Lines = append(ts.Lines, model.Line{Binding: b, Entry: e})
		ts.TotalHours += e.Hours
	}
	ts.TotalHours = timecalc.RoundHours(ts.TotalHours)

	sort.SliceStable(ts.Lines, func(i, j int) bool {
		a, b := ts.Lines[i], ts.Lines[j]
		if a.Binding.ProjectName != b.Binding.ProjectName {
			return a.Binding.ProjectName < b.Binding.ProjectName
		}
		if a.Entry.Date != b.Entry.Date {
			return a.Entry.Date < b.Entry.Date
		}
		if a.Binding.ClientName != b.Binding.ClientName {
			return a.Binding.ClientName < b.Binding.ClientName
		}
		return a.Binding.ID < b.Binding.ID
	})
	return ts
}

// Source is the store view the Aggregator reads.
type Source interface {
	ListBindings(ctx context.Context) ([]model.Binding, error)
	EntriesForPeriod(ctx context.Context, p model.Period) ([]model.WorkEntry, error)
	Clients(ctx context.Context) ([]model.Client, error)
}

// Aggregator builds timesheets from the store.
type Aggregator struct {
	src Source
}

// NewAggregator creates an Aggregator reading from src.
func NewAggregator(src Source) *Aggregator {
	return &Aggregator{src: src}
}

// Aggregate returns the timesheet of period. An empty period yields an
// empty timesheet, not an error.
func (a *Aggregator) Aggregate(ctx context.Context, period model.Period, f Filter) (model.Timesheet, error) {
	bindings, err := a.src.ListBindings(ctx)
	if err != nil {
		return model.Timesheet{}, err
	}
	entries, err := a.src.EntriesForPeriod(ctx, period)
	if err != nil {
		return model.Timesheet{}, err
	}
	clients, err := a.src.Clients(ctx)
	if err != nil {
		return model.Timesheet{}, err
	}
	ts := Build(period, bindings, entries, f)
	attachClients(&ts, clients)
	return ts, nil
}

// attachClients copies the details of every client with a line in ts.
func attachClients(ts *model.Timesheet, clients []model.Client) {
	present := map[string]bool{}
	for _, l := range ts.Lines {
		present[l.Binding.ClientName] = true
	}
	ts.Clients = nil
	for _, c := range clients {
		if present[c.Name] && c.HasDetails() {
			ts.Clients = append(ts.Clients, c)
		}
	}
	sort.Slice(ts.Clients, func(i, j int) bool { return ts.Clients[i].Name < ts.Clients[j].Name })
}
