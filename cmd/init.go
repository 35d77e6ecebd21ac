package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/git-timesheets/internal/gitlog"
	"github.com/Tiliavir/git-timesheets/internal/registry"
)

// bindZone names the time zone recorded on new bindings and reports
// whether it was detected.
var bindZone = registry.DetectZone

var (
	initPath          string
	initClient        string
	initProject       string
	initProjectNumber string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bind a git repository to a client and project",
	Long: `init records that the repository at --path (default: the current
directory) is work for the given client and project. A repository may be
bound to several projects; each binding is scanned separately.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initPath, "path", ".", "Repository root")
	initCmd.Flags().StringVarP(&initClient, "client", "c", "", "Client name")
	initCmd.Flags().StringVarP(&initProject, "project", "p", "", "Project name")
	initCmd.Flags().StringVar(&initProjectNumber, "project-number", "", "Client's project or PO number")
	_ = initCmd.MarkFlagRequired("client")
	_ = initCmd.MarkFlagRequired("project")
}

func runInit(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	zone, detected := bindZone()
	if !detected {
		s.logger.Warn("could not determine the local time zone, recording UTC; set TZ to choose one")
	}
	reg := registry.New(s.store, gitlog.New()).WithZone(func() string { return zone })
	b, err := reg.Bind(cmd.Context(), initPath, initClient, initProject)
	if err != nil {
		return err
	}
	if initProjectNumber != "" {
		if err := s.store.SetProjectNumber(cmd.Context(), b.ID, initProjectNumber); err != nil {
			return err
		}
		b.ProjectNumber = strings.TrimSpace(initProjectNumber)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Bound %s to %s\n", b.RepositoryPath, b.Label())
	fmt.Fprintf(out, "  binding:  %s\n", b.ID)
	fmt.Fprintf(out, "  timezone: %s\n", b.Timezone)
	if b.ProjectNumber != "" {
		fmt.Fprintf(out, "  project number: %s\n", b.ProjectNumber)
	}
	if b.AuthorEmail != "" {
		fmt.Fprintf(out, "  author:   %s <%s>\n", b.AuthorName, b.AuthorEmail)
	}
	return nil
}
