package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/taskboard/internal/client"
	"github.com/devilmonastery/taskboard/internal/pkg/timeutil"
)

func newProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View and manage your account",
	}

	cmd.AddCommand(newProfileShowCommand())
	cmd.AddCommand(newProfileUpdateCommand())
	cmd.AddCommand(newChangePasswordCommand())
	cmd.AddCommand(newChangeEmailCommand())
	cmd.AddCommand(newDeleteAccountCommand())

	return cmd
}

func newProfileShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(cmd)
			if err != nil {
				return err
			}

			p, err := s.API.Profile(cmd.Context())
			if err != nil {
				return apiError(err)
			}

			tz := displayTimezone(getCliContext(cmd).Config)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Email:       %s\n", p.Email)
			fmt.Fprintf(out, "Name:        %s\n", p.FullName)
			fmt.Fprintf(out, "Role:        %s\n", p.RoleName)
			fmt.Fprintf(out, "Status:      %s\n", p.AccountStatus)
			if p.BirthDate != "" {
				fmt.Fprintf(out, "Birth date:  %s\n", p.BirthDate)
			}
			if p.BirthPlace != "" {
				fmt.Fprintf(out, "Birth place: %s\n", p.BirthPlace)
			}
			fmt.Fprintf(out, "Joined:      %s\n", timeutil.FormatExpiry(p.DateJoined, tz))
			if p.LastLogin != "" {
				fmt.Fprintf(out, "Last login:  %s\n", timeutil.FormatExpiry(p.LastLogin, tz))
			}
			return nil
		},
	}
}

func newProfileUpdateCommand() *cobra.Command {
	var name, surname, patronym, birthDate, birthPlace string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(cmd)
			if err != nil {
				return err
			}

			var in client.ProfileUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				in.Name = &name
			}
			if flags.Changed("surname") {
				in.Surname = &surname
			}
			if flags.Changed("patronym") {
				in.Patronym = &patronym
			}
			if flags.Changed("birth-date") {
				in.BirthDate = &birthDate
			}
			if flags.Changed("birth-place") {
				in.BirthPlace = &birthPlace
			}
			if in == (client.ProfileUpdate{}) {
				return fmt.Errorf("nothing to update")
			}

			p, err := s.API.UpdateProfile(cmd.Context(), in)
			if err != nil {
				return apiError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Profile updated for %s\n", p.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "First name")
	cmd.Flags().StringVar(&surname, "surname", "", "Surname")
	cmd.Flags().StringVar(&patronym, "patronym", "", "Patronym")
	cmd.Flags().StringVar(&birthDate, "birth-date", "", "Birth date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&birthPlace, "birth-place", "", "Birth place")

	return cmd
}

func newChangePasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "change-password",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(cmd)
			if err != nil {
				return err
			}

			var in client.ChangePasswordRequest
			if in.OldPassword, err = promptPassword(cmd, "Current password: "); err != nil {
				return err
			}
			if in.NewPassword, err = promptPassword(cmd, "New password: "); err != nil {
				return err
			}
			if in.NewPasswordRepeat, err = promptPassword(cmd, "Repeat new password: "); err != nil {
				return err
			}

			msg, err := s.API.ChangePassword(cmd.Context(), in)
			if err != nil {
				return apiError(err)
			}
			if msg == "" {
				msg = "Password changed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", msg)
			return nil
		},
	}
}

func newChangeEmailCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "change-email NEW_EMAIL",
		Short: "Change your account email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(cmd)
			if err != nil {
				return err
			}

			password, err := promptPassword(cmd, "Password: ")
			if err != nil {
				return err
			}

			resp, err := s.API.ChangeEmail(cmd.Context(), client.ChangeEmailRequest{
				NewEmail: args[0],
				Password: password,
			})
			if err != nil {
				return apiError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Email changed from %s to %s\n", resp.OldEmail, resp.NewEmail)
			return nil
		},
	}
}

func newDeleteAccountCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Permanently delete your account",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(cmd)
			if err != nil {
				return err
			}

			if !yes {
				answer, err := promptLine(cmd, fmt.Sprintf("Delete account %s? Type 'yes' to confirm: ", s.Tokens.Email()))
				if err != nil {
					return err
				}
				if answer != "yes" {
					return fmt.Errorf("aborted")
				}
			}

			msg, err := s.API.DeleteAccount(cmd.Context())
			if err != nil {
				return apiError(err)
			}
			if msg == "" {
				msg = "Account deleted"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", msg)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
