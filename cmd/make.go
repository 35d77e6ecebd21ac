package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/git-timesheets/internal/gitlog"
	"github.com/Tiliavir/git-timesheets/internal/inference"
	"github.com/Tiliavir/git-timesheets/internal/model"
	"github.com/Tiliavir/git-timesheets/internal/registry"
	"github.com/Tiliavir/git-timesheets/internal/share"
	"github.com/Tiliavir/git-timesheets/internal/store"
	"github.com/Tiliavir/git-timesheets/internal/timecalc"
	"github.com/Tiliavir/git-timesheets/internal/timesheet"
)

var (
	makeMonth   int
	makeYear    int
	makeClient  string
	makeProject string
	makeFormat  string
	makeShare   bool
)

var makeCmd = &cobra.Command{
	Use:   "make",
	Short: "Scan bound repositories and print a monthly timesheet",
	Long: `make reads the commit history of every bound repository, infers the
hours worked per day for the month, stores them, and prints the timesheet.
Manual corrections made with 'gts edit' are kept. With --share the
timesheet is also uploaded and a time-limited link is printed.`,
	Args: cobra.NoArgs,
	RunE: runMake,
}

func init() {
	makeCmd.Flags().IntVarP(&makeMonth, "month", "m", 0, "Month (1-12)")
	makeCmd.Flags().IntVarP(&makeYear, "year", "y", 0, "Year (default: current year)")
	makeCmd.Flags().StringVarP(&makeClient, "client", "c", "", "Only these clients (comma-separated)")
	makeCmd.Flags().StringVarP(&makeProject, "project", "p", "", "Only these projects (comma-separated)")
	makeCmd.Flags().StringVarP(&makeFormat, "format", "f", "md", "Output format: md, csv, json")
	makeCmd.Flags().BoolVarP(&makeShare, "share", "s", false, "Upload the timesheet and print a share link")
	_ = makeCmd.MarkFlagRequired("month")
}

func runMake(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	now := time.Now()

	period, err := timecalc.ParsePeriod(yearOrCurrent(makeYear, now), makeMonth)
	if err != nil {
		return err
	}
	format, err := timesheet.ParseFormat(makeFormat)
	if err != nil {
		return err
	}
	filter := timesheet.Filter{Clients: splitList(makeClient), Projects: splitList(makeProject)}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	bindings, err := selectBindings(cmd, s, filter)
	if err != nil {
		return err
	}

	scanner := inference.NewScanner(inference.ScannerOptions{
		Source: gitlog.New(),
		Engine: inference.NewEngine(inference.Options{
			Rules: inference.Rules{
				MinimumHours:  s.cfg.Inference.MinimumHours,
				MaximumHours:  s.cfg.Inference.MaximumHours,
				MaxFutureSkew: s.cfg.Inference.MaxFutureSkew.Std(),
			},
			Logger: s.logger,
		}),
		Workers: s.cfg.Workers,
		Author:  s.cfg.Inference.Author,
		Logger:  s.logger,
	})
	report, err := scanner.Scan(ctx, bindings, period)
	for _, f := range report.Failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: skipped %s (%s): %v\n", f.Binding.RepositoryPath, f.Binding.Label(), f.Err)
	}
	if err != nil {
		return err
	}
	if n := report.Excluded(); n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: ignored %d commit(s) dated in the future\n", n)
	}

	summary, err := s.store.ApplyScan(ctx, scanResults(report, period))
	if err != nil {
		return err
	}
	s.logger.Debug("scan stored", "period", period.String(), "inserted", summary.Inserted,
		"updated", summary.Updated, "superseded", summary.Superseded, "removed", summary.Removed)

	ts, err := timesheet.NewAggregator(s.store).Aggregate(ctx, period, filter)
	if err != nil {
		return err
	}
	user := userName(s.cfg.Inference.Author, bindings)
	renderer := timesheet.Renderer{User: user, Now: func() time.Time { return now }}
	if err := renderer.Render(cmd.OutOrStdout(), ts, format); err != nil {
		return fmt.Errorf("writing timesheet: %w", err)
	}

	if !makeShare {
		return nil
	}
	client, err := share.NewClient(ctx, share.ClientOptions{
		Address: s.cfg.Share.Endpoint(),
		Token:   s.cfg.Share.Token,
		TTL:     s.cfg.Share.TTL.Std(),
		Timeout: s.cfg.Share.Timeout.Std(),
		Logger:  s.logger,
	})
	if err != nil {
		return err
	}
	link, err := client.Publish(ctx, timesheet.NewDocument(ts, user, now))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Shared: %s (expires %s)\n", link.URL, link.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

// selectBindings returns the bindings a make run scans: all of them, or
// those matching the client/project filter.
func selectBindings(cmd *cobra.Command, s *session, f timesheet.Filter) ([]model.Binding, error) {
	all, err := registry.New(s.store, nil).List(cmd.Context())
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No repositories bound yet. Run 'gts init' inside a repository first.")
	}
	var out []model.Binding
	for _, b := range all {
		if f.Match(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

func scanResults(report inference.Report, period model.Period) []store.ScanResult {
	results := make([]store.ScanResult, 0, len(report.Results))
	for _, r := range report.Results {
		results = append(results, store.ScanResult{BindingID: r.Binding.ID, Period: period, Entries: r.Entries})
	}
	return results
}

// userName picks the name shown on shared timesheets.
func userName(author string, bindings []model.Binding) string {
	if author != "" {
		return author
	}
	for _, b := range bindings {
		if b.AuthorName != "" {
			return b.AuthorName
		}
	}
	return ""
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func yearOrCurrent(year int, now time.Time) int {
	if year == 0 {
		return now.Year()
	}
	return year
}
