package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/taskboard/internal/client"
)

func newUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts (administrators only)",
	}

	cmd.AddCommand(newUsersListCommand())
	cmd.AddCommand(newRoleChangeCommand("promote", "Raise a user's role by one step"))
	cmd.AddCommand(newRoleChangeCommand("demote", "Lower a user's role by one step"))

	return cmd
}

func newUsersListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(cmd)
			if err != nil {
				return err
			}

			users, err := s.API.Users(cmd.Context())
			if err != nil {
				return apiError(err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tSTATUS")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.FullName, u.RoleName, u.AccountStatus)
			}
			return w.Flush()
		},
	}
}

func newRoleChangeCommand(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " USER_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := requireSession(cmd)
			if err != nil {
				return err
			}

			var resp *client.RoleChangeResponse
			if action == "promote" {
				resp, err = s.API.PromoteUser(cmd.Context(), id)
			} else {
				resp, err = s.API.DemoteUser(cmd.Context(), id)
			}
			if err != nil {
				return apiError(err)
			}

			msg := resp.Message
			if resp.User != nil {
				msg = fmt.Sprintf("%s (%s is now %s)", msg, resp.User.Email, resp.User.RoleName)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", msg)
			return nil
		},
	}
}
