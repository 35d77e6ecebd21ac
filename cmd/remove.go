package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/git-timesheets/internal/registry"
)

var (
	removeClient  string
	removeProject string
	removePath    string
)

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove bindings and their stored hours",
	Long: `remove deletes every binding of --client, optionally narrowed by
--project and --path, together with all hours stored for it.`,
	Args: cobra.NoArgs,
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().StringVarP(&removeClient, "client", "c", "", "Client name")
	removeCmd.Flags().StringVarP(&removeProject, "project", "p", "", "Only this project")
	removeCmd.Flags().StringVar(&removePath, "path", "", "Only this repository")
	_ = removeCmd.MarkFlagRequired("client")
}

func runRemove(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	removed, err := registry.New(s.store, nil).Unbind(cmd.Context(), registry.Filter{
		Client:  removeClient,
		Project: removeProject,
		Path:    removePath,
	})
	if err != nil {
		return err
	}
	for _, b := range removed {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", b.RepositoryPath, b.Label())
	}
	return nil
}
