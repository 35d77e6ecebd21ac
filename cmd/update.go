package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/git-timesheets/internal/apperr"
	"github.com/Tiliavir/git-timesheets/internal/registry"
)

var (
	updateClient           string
	updateAddress          string
	updateContact          string
	updateApproverName     string
	updateApproverEmail    string
	updateRequiresApproval bool
	updatePath             string
	updateProject          string
	updateProjectNumber    string
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update client details or a project number",
	Long: `update changes the details printed on a client's timesheets (address,
contact person, approver) or the project/PO number of one binding. Only the
flags given are changed.`,
	Example: `  gts update -c Acme --address "1 Main St" --contact "John Doe"
  gts update -c Acme --requires-approval --approver-name "Jane Roe" --approver-email jane@acme.test
  gts update -c Acme -p Shop --project-number PO-1234`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVarP(&updateClient, "client", "c", "", "Client name")
	updateCmd.Flags().StringVar(&updateAddress, "address", "", "Client address")
	updateCmd.Flags().StringVar(&updateContact, "contact", "", "Client contact person")
	updateCmd.Flags().StringVar(&updateApproverName, "approver-name", "", "Name of the person approving timesheets")
	updateCmd.Flags().StringVar(&updateApproverEmail, "approver-email", "", "Email of the person approving timesheets")
	updateCmd.Flags().BoolVar(&updateRequiresApproval, "requires-approval", false, "Timesheets need the approver's sign-off")
	updateCmd.Flags().StringVar(&updatePath, "path", "", "Repository of the binding (with --project-number)")
	updateCmd.Flags().StringVarP(&updateProject, "project", "p", "", "Project of the binding (with --project-number)")
	updateCmd.Flags().StringVar(&updateProjectNumber, "project-number", "", "Project or PO number; empty clears it")
	_ = updateCmd.MarkFlagRequired("client")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	clientChanged := flags.Changed("address") || flags.Changed("contact") ||
		flags.Changed("approver-name") || flags.Changed("approver-email") || flags.Changed("requires-approval")
	numberChanged := flags.Changed("project-number")
	if !clientChanged && !numberChanged {
		return fmt.Errorf("nothing to update; see 'gts update --help'")
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if clientChanged {
		c, _, err := s.store.Client(ctx, updateClient)
		if err != nil {
			return err
		}
		if flags.Changed("address") {
			c.Address = strings.TrimSpace(updateAddress)
		}
		if flags.Changed("contact") {
			c.ContactPerson = strings.TrimSpace(updateContact)
		}
		if flags.Changed("approver-name") {
			c.ApproverName = strings.TrimSpace(updateApproverName)
		}
		if flags.Changed("approver-email") {
			c.ApproverEmail = strings.TrimSpace(updateApproverEmail)
		}
		if flags.Changed("requires-approval") {
			c.RequiresApproval = updateRequiresApproval
		}
		if err := s.store.SaveClient(ctx, c); err != nil {
			return err
		}
		fmt.Fprintf(out, "Updated client %s\n", c.Name)
	}

	if numberChanged {
		matches, err := registry.New(s.store, nil).Select(ctx, registry.Filter{
			Client:  updateClient,
			Project: updateProject,
			Path:    updatePath,
		})
		if err != nil {
			return err
		}
		switch len(matches) {
		case 0:
			return apperr.New("update project number", updateClient, apperr.ErrBindingNotFound)
		case 1:
		default:
			return fmt.Errorf("%d bindings match, narrow with --project or --path", len(matches))
		}
		b := matches[0]
		if err := s.store.SetProjectNumber(ctx, b.ID, updateProjectNumber); err != nil {
			return err
		}
		if n := strings.TrimSpace(updateProjectNumber); n != "" {
			fmt.Fprintf(out, "Set project number %s on %s\n", n, b.Label())
		} else {
			fmt.Fprintf(out, "Cleared project number on %s\n", b.Label())
		}
	}
	return nil
}
