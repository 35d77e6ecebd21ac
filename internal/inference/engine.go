// Package inference turns commit timestamps into per-day work entries.
//
// A day's hours are the span between its first and last commit, clamped to
// [MinimumHours, MaximumHours]. Days are calendar days in the binding's
// time zone. The result depends only on the set of commits, never on the
// order they were read in.
package inference

import (
	"log/slog"
	"time"

	"github.com/Tiliavir/git-timesheets/internal/gitlog"
	"github.com/Tiliavir/git-timesheets/internal/model"
	"github.com/Tiliavir/git-timesheets/internal/timecalc"
)

// Rules are the clamping constants of the inference.
type Rules struct {
	MinimumHours  float64
	MaximumHours  float64
	MaxFutureSkew time.Duration
}

// DefaultRules returns the built-in clamp of 0.25h to 8h and a 24h skew.
func DefaultRules() Rules {
	return Rules{MinimumHours: 0.25, MaximumHours: 8, MaxFutureSkew: 24 * time.Hour}
}

// Options configures an Engine.
type Options struct {
	Rules  Rules
	Now    func() time.Time
	Logger *slog.Logger
}

// Engine infers work entries. It holds no state between calls.
type Engine struct {
	rules  Rules
	now    func() time.Time
	logger *slog.Logger
}

// NewEngine creates an Engine. Zero Rules mean DefaultRules.
func NewEngine(opts Options) *Engine {
	if opts.Rules == (Rules{}) {
		opts.Rules = DefaultRules()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{rules: opts.Rules, now: opts.Now, logger: opts.Logger}
}

// Result is the output of Infer for one binding.
type Result struct {
	// Entries holds one inferred entry per day with at least one commit,
	// ordered by date.
	Entries []model.WorkEntry
	// Excluded holds commits dated too far in the future to be trusted.
	Excluded []gitlog.Commit
}

// Infer groups commits into days for b. A zero period means every day;
// otherwise days outside period are dropped. commits is not modified.
func (e *Engine) Infer(b model.Binding, commits []gitlog.Commit, period model.Period) Result {
	sorted := make([]gitlog.Commit, len(commits))
	copy(sorted, commits)
	gitlog.SortCommits(sorted)

	loc := b.Location()
	limit := e.now().Add(e.rules.MaxFutureSkew)

	var res Result
	var current *model.WorkEntry
	for _, c := range sorted {
		if c.Time.After(limit) {
			res.Excluded = append(res.Excluded, c)
			e.logger.Warn("ignoring commit dated in the future",
				"binding", b.ID, "repository", b.RepositoryPath, "commit", c.Hash, "time", c.Time)
			continue
		}
		day := timecalc.DayKey(c.Time, loc)
		if period.Year != 0 && !period.Contains(day) {
			continue
		}
		if current == nil || current.Date != day {
			res.Entries = append(res.Entries, model.WorkEntry{
				BindingID:   b.ID,
				Date:        day,
				Source:      model.SourceInferred,
				FirstCommit: c.Time.UTC(),
			})
			current = &res.Entries[len(res.Entries)-1]
		}
		current.CommitCount++
		current.LastCommit = c.Time.UTC()
	}

	for i := range res.Entries {
		res.Entries[i].Hours = e.Hours(res.Entries[i].FirstCommit, res.Entries[i].LastCommit)
	}
	return res
}

// Hours clamps the span between first and last to the engine's rules and
// rounds it to two decimals.
func (e *Engine) Hours(first, last time.Time) float64 {
	span := last.Sub(first).Hours()
	if span < e.rules.MinimumHours {
		span = e.rules.MinimumHours
	}
	if span > e.rules.MaximumHours {
		span = e.rules.MaximumHours
	}
	return timecalc.RoundHours(span)
}
