package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Tiliavir/git-timesheets/internal/apperr"
	"github.com/Tiliavir/git-timesheets/internal/gitlog"
	"github.com/Tiliavir/git-timesheets/internal/model"
)

// DefaultWorkers is the scan concurrency used when none is configured.
const DefaultWorkers = 4

// ScannerOptions configures a Scanner.
type ScannerOptions struct {
	Source  gitlog.Source
	Engine  *Engine
	Workers int
	// Author overrides every binding's recorded author email as the commit
	// filter. Empty means use the binding's email, or no filter at all.
	Author string
	Logger *slog.Logger
}

// Scanner reads commits for many bindings in parallel and infers their
// entries. It never writes to the store.
type Scanner struct {
	source  gitlog.Source
	engine  *Engine
	workers int
	author  string
	logger  *slog.Logger
}

// NewScanner creates a Scanner.
func NewScanner(opts ScannerOptions) *Scanner {
	if opts.Source == nil {
		opts.Source = gitlog.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Engine == nil {
		opts.Engine = NewEngine(Options{Logger: opts.Logger})
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Scanner{
		source:  opts.Source,
		engine:  opts.Engine,
		workers: opts.Workers,
		author:  opts.Author,
		logger:  opts.Logger,
	}
}

// BindingResult is the inference output of one binding.
type BindingResult struct {
	Binding  model.Binding
	Entries  []model.WorkEntry
	Excluded int
}

// Failure records a binding whose repository could not be read.
type Failure struct {
	Binding model.Binding
	Err     error
}

// Report is the outcome of one scan. Results and Failures keep the order of
// the bindings passed to Scan.
type Report struct {
	Results  []BindingResult
	Failures []Failure
}

// Excluded returns the number of future-dated commits skipped over all bindings.
func (r Report) Excluded() int {
	n := 0
	for _, res := range r.Results {
		n += res.Excluded
	}
	return n
}

// Scan infers entries for every binding within period. A binding whose
// repository is unreadable is reported in Failures and skipped; Scan only
// fails when every binding failed or ctx was cancelled.
func (s *Scanner) Scan(ctx context.Context, bindings []model.Binding, period model.Period) (Report, error) {
	type slot struct {
		result BindingResult
		err    error
	}
	slots := make([]slot, len(bindings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, b := range bindings {
		g.Go(func() error {
			commits, err := s.source.Commits(gctx, b.RepositoryPath, gitlog.Query{Author: s.authorFor(b)})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slots[i].err = err
				return nil
			}
			res := s.engine.Infer(b, commits, period)
			slots[i].result = BindingResult{Binding: b, Entries: res.Entries, Excluded: len(res.Excluded)}
			s.logger.Debug("scanned repository",
				"binding", b.ID, "repository", b.RepositoryPath,
				"commits", len(commits), "days", len(res.Entries))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	var report Report
	for i, sl := range slots {
		if sl.err != nil {
			if !errors.Is(sl.err, apperr.ErrRepositoryUnavailable) {
				sl.err = fmt.Errorf("%w: %w", apperr.ErrRepositoryUnavailable, sl.err)
			}
			s.logger.Warn("skipping unreadable repository",
				"binding", bindings[i].ID, "repository", bindings[i].RepositoryPath, "err", sl.err)
			report.Failures = append(report.Failures, Failure{Binding: bindings[i], Err: sl.err})
			continue
		}
		report.Results = append(report.Results, sl.result)
	}

	if len(bindings) > 0 && len(report.Failures) == len(bindings) {
		return report, apperr.New("scan", fmt.Sprintf("%d repositories", len(bindings)), apperr.ErrRepositoryUnavailable)
	}
	return report, nil
}

func (s *Scanner) authorFor(b model.Binding) string {
	if s.author != "" {
		return s.author
	}
	return b.AuthorEmail
}
