package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/git-timesheets/internal/apperr"
	"github.com/Tiliavir/git-timesheets/internal/model"
	"github.com/Tiliavir/git-timesheets/internal/registry"
	"github.com/Tiliavir/git-timesheets/internal/store"
	"github.com/Tiliavir/git-timesheets/internal/timecalc"
)

var (
	editDay     int
	editMonth   int
	editYear    int
	editHours   float64
	editPath    string
	editProject string
	editClear   bool
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Override the hours of one day",
	Long: `edit stores a manual number of hours for one day of the repository at
--path. Manual hours win over inferred hours in every later 'gts make'
until they are removed with --clear.`,
	Example: `  gts edit -d 6 -m 3 -y 2024 -H 6
  gts edit -d 6 -m 3 --clear`,
	Args: cobra.NoArgs,
	RunE: runEdit,
}

func init() {
	editCmd.Flags().IntVarP(&editDay, "day", "d", 0, "Day of month")
	editCmd.Flags().IntVarP(&editMonth, "month", "m", 0, "Month (1-12)")
	editCmd.Flags().IntVarP(&editYear, "year", "y", 0, "Year (default: current year)")
	// -h is taken by --help.
	editCmd.Flags().Float64VarP(&editHours, "hours", "H", 0, "Hours worked (0-24)")
	editCmd.Flags().StringVar(&editPath, "path", ".", "Repository root")
	editCmd.Flags().StringVarP(&editProject, "project", "p", "", "Project, when the repository has several")
	editCmd.Flags().BoolVar(&editClear, "clear", false, "Remove the manual override")
	_ = editCmd.MarkFlagRequired("day")
	_ = editCmd.MarkFlagRequired("month")
	editCmd.MarkFlagsMutuallyExclusive("hours", "clear")
}

func runEdit(cmd *cobra.Command, args []string) error {
	date, err := timecalc.ParseDay(yearOrCurrent(editYear, time.Now()), editMonth, editDay)
	if err != nil {
		return err
	}
	if !editClear {
		if !cmd.Flags().Changed("hours") {
			return fmt.Errorf("--hours is required unless --clear is given")
		}
		if !store.ValidHours(editHours) {
			return apperr.New("edit", editHours, apperr.ErrInvalidRange)
		}
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := resolveBinding(cmd, s, editPath, editProject)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if editClear {
		cleared, err := s.store.ClearManual(cmd.Context(), b.ID, date)
		if err != nil {
			return err
		}
		if !cleared {
			fmt.Fprintf(out, "No manual hours on %s for %s.\n", date, b.Label())
			return nil
		}
		fmt.Fprintf(out, "Cleared manual hours on %s for %s; the next 'gts make' re-infers the day.\n", date, b.Label())
		return nil
	}

	if err := s.store.SetManual(cmd.Context(), b.ID, date, editHours); err != nil {
		return err
	}
	fmt.Fprintf(out, "Set %s on %s for %s (%s).\n", timecalc.FormatHours(editHours), date, b.Label(), model.SourceManual)
	return nil
}

// resolveBinding finds the single binding of the repository at path,
// narrowed by project when the repository has several.
func resolveBinding(cmd *cobra.Command, s *session, path, project string) (model.Binding, error) {
	bindings, err := registry.New(s.store, nil).Resolve(cmd.Context(), path)
	if err != nil {
		return model.Binding{}, err
	}
	var matches []model.Binding
	for _, b := range bindings {
		if project == "" || b.ProjectName == project {
			matches = append(matches, b)
		}
	}
	switch len(matches) {
	case 0:
		abs, _ := registry.Normalize(path)
		if project != "" {
			abs += " (project " + project + ")"
		}
		return model.Binding{}, apperr.New("resolve binding", abs, apperr.ErrBindingNotFound)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, b := range matches {
			names[i] = b.Label()
		}
		return model.Binding{}, fmt.Errorf("repository is bound to several projects, choose one with --project: %s",
			strings.Join(names, ", "))
	}
}
