package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/git-timesheets/internal/model"
	"github.com/Tiliavir/git-timesheets/internal/registry"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List bound repositories grouped by client",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	bindings, err := registry.New(s.store, nil).List(cmd.Context())
	if err != nil {
		return err
	}
	printBindings(cmd.OutOrStdout(), bindings)
	return nil
}

// printBindings groups bindings by client and prints them. bindings must
// be ordered by client.
func printBindings(w io.Writer, bindings []model.Binding) {
	if len(bindings) == 0 {
		fmt.Fprintln(w, "No repositories bound.")
		return
	}

	var currentClient string
	for i, b := range bindings {
		if i == 0 || b.ClientName != currentClient {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, b.ClientName)
			currentClient = b.ClientName
		}
		fmt.Fprintf(w, "  %-20s %s  (%s)", b.ProjectName, b.RepositoryPath, b.Timezone)
		if b.ProjectNumber != "" {
			fmt.Fprintf(w, "  #%s", b.ProjectNumber)
		}
		fmt.Fprintln(w)
	}
}
