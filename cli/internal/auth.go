package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devilmonastery/taskboard/internal/client"
	"github.com/devilmonastery/taskboard/internal/pkg/timeutil"
)

// formatDuration formats a duration in a human-friendly way (e.g., "2 days, 3 hours and 45 minutes")
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if len(parts) == 0 && seconds > 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	switch len(parts) {
	case 0:
		return "0 seconds"
	case 1:
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
		Long:  `Manage the task board session for the current context`,
	}

	cmd.AddCommand(newAuthLoginCommand())
	cmd.AddCommand(newAuthRegisterCommand())
	cmd.AddCommand(newAuthLogoutCommand())
	cmd.AddCommand(newAuthStatusCommand())
	cmd.AddCommand(newAuthTokenCommand())
	cmd.AddCommand(newAuthRefreshCommand())
	cmd.AddCommand(newAuthValidateCommand())

	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to the task board",
		Long: `Authenticate with email and password.

Examples:
  # Prompt for email and password
  taskboard auth login

  # Provide the email, prompt for the password
  taskboard auth login --email ada@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := getCliContext(cmd).Session
			log := slog.Default().With("command", "login")

			var err error
			if email == "" {
				if email, err = promptLine(cmd, "Email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = promptPassword(cmd, "Password: "); err != nil {
					return err
				}
			}

			req := loginRequest(email, password)
			log.Debug("logging in", "email", email, "screen_size", req.ScreenSize, "timezone", req.Timezone)

			resp, err := s.Tokens.Login(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in as %s\n", resp.EmailAddress())
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email (if not provided, will prompt)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (if not provided, will prompt)")

	return cmd
}

// loginRequest fills in the client metadata the backend records on login
func loginRequest(email, password string) client.LoginRequest {
	screen := "unknown"
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		screen = fmt.Sprintf("%dx%d", w, h)
	}

	language := os.Getenv("LANG")
	if i := strings.IndexAny(language, "._"); i > 0 {
		language = language[:i]
	}
	if language == "" {
		language = "en"
	}

	return client.LoginRequest{
		Email:      email,
		Password:   password,
		ScreenSize: screen,
		Timezone:   timeutil.DetectTimezone(),
		Language:   language,
		ExtraMetadata: map[string]any{
			"client": "taskboard-cli",
			"os":     runtime.GOOS,
		},
	}
}

func newAuthRegisterCommand() *cobra.Command {
	var in client.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := getCliContext(cmd).Session

			var err error
			if in.Email == "" {
				if in.Email, err = promptLine(cmd, "Email: "); err != nil {
					return err
				}
			}
			if in.Password == "" {
				if in.Password, err = promptPassword(cmd, "Password: "); err != nil {
					return err
				}
				if in.PasswordRepeat, err = promptPassword(cmd, "Repeat password: "); err != nil {
					return err
				}
			}
			if in.PasswordRepeat == "" {
				in.PasswordRepeat = in.Password
			}

			resp, err := s.Tokens.Register(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Registered and logged in as %s\n", resp.EmailAddress())
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "First name")
	cmd.Flags().StringVar(&in.Surname, "surname", "", "Surname")
	cmd.Flags().StringVar(&in.Patronym, "patronym", "", "Patronym")
	cmd.Flags().StringVarP(&in.Email, "email", "e", "", "Account email (if not provided, will prompt)")
	cmd.Flags().StringVarP(&in.Password, "password", "p", "", "Password (if not provided, will prompt)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("surname")

	return cmd
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout from the task board",
		Long:  `Notify the backend and remove the stored credentials. Local credentials are removed even if the backend cannot be reached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(cmd)
			if err != nil {
				return err
			}

			if s.Tokens.Logout(cmd.Context()) {
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Successfully logged out")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Local credentials removed (backend could not be notified)")
			}
			return nil
		},
	}
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)
			s := cliCtx.Session
			out := cmd.OutOrStdout()

			state := s.Tokens.State()
			if state == client.NoCredential {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}

			fmt.Fprintf(out, "Context:   %s\n", cliCtx.Config.CurrentContext)
			fmt.Fprintf(out, "Server:    %s\n", s.Client.BaseURL())
			if email := s.Tokens.Email(); email != "" {
				fmt.Fprintf(out, "Email:     %s\n", email)
			}
			fmt.Fprintf(out, "State:     %s\n", state)

			if claims, err := s.Tokens.Claims(); err == nil && claims.UserID != "" {
				fmt.Fprintf(out, "User ID:   %s\n", claims.UserID)
			}

			raw := s.Tokens.ExpiresAt()
			if raw == "" {
				fmt.Fprintln(out, "⚠  Token expiry unknown - a refresh will be attempted on next request")
				return nil
			}
			fmt.Fprintf(out, "Expires:   %s\n", timeutil.FormatExpiry(raw, displayTimezone(cliCtx.Config)))

			expiry, err := client.ParseExpiry(raw)
			if err != nil {
				return nil
			}
			now := time.Now()
			if s.Tokens.IsExpired() {
				fmt.Fprintf(out, "⚠  Token expired %s ago - automatic refresh will be attempted on next request\n",
					formatDuration(now.Sub(expiry)))
			} else {
				fmt.Fprintf(out, "✓  Valid for %s\n", formatDuration(expiry.Sub(now)))
			}
			return nil
		},
	}
}

func newAuthTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a usable access token, refreshing it if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(cmd)
			if err != nil {
				return err
			}

			tok, err := s.Tokens.TokenSource(cmd.Context()).Token()
			if err != nil {
				return apiError(fmt.Errorf("%w: %w", client.ErrSessionExpired, err))
			}

			fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
			return nil
		},
	}
}

func newAuthRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(cmd)
			if err != nil {
				return err
			}

			if !s.Tokens.Refresh(cmd.Context()) {
				return apiError(client.ErrSessionExpired)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "✓ Token refreshed")
			return nil
		},
	}
}

func newAuthValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check with the backend that the session is usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(cmd)
			if err != nil {
				return err
			}

			profile, ok := s.Tokens.ValidateProfile(cmd.Context())
			if !ok {
				return apiError(client.ErrSessionExpired)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Session valid for %s (%s)\n", profile.Email, profile.RoleName)
			return nil
		},
	}
}

// displayTimezone returns the configured timezone, or the detected one
func displayTimezone(config *Config) string {
	if ctx, err := config.GetCurrentContext(); err == nil && ctx.Timezone != "" {
		return ctx.Timezone
	}
	return timeutil.DetectTimezone()
}

func promptLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := readLine(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readLine reads up to a newline one byte at a time, so consecutive prompts
// can share a piped stdin without a buffered reader swallowing input.
func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return sb.String(), nil
			}
			sb.WriteByte(buf[0])
		}
		if err == io.EOF && sb.Len() > 0 {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
	}
}

// promptPassword reads a password without echo when stdin is a terminal
func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLine(cmd, prompt)
	}

	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	passwordBytes, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr()) // newline after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(passwordBytes), nil
}
