package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retribution/retctl/internal/core"
	"github.com/retribution/retctl/internal/session"
)

// newLoginCmd creates the 'login' command.
func newLoginCmd() *cobra.Command {
	var username string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the credential",
		Long: `Validate a username and password against the backend and store the
credential for later commands.

The password is prompted without echo. Use --password-stdin to pipe it in:
  printf '%s' "$PW" | retctl login -u ops --password-stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			engine, err := newEngine(core.Options{})
			if err != nil {
				return err
			}
			defer engine.Close()

			if username == "" {
				if username, err = promptLine("Username: "); err != nil {
					return fmt.Errorf("failed to read username: %w", err)
				}
			}
			if username == "" {
				return errors.New("username is required")
			}

			var password string
			if passwordStdin {
				password, err = promptLine("")
			} else {
				password, err = promptPassword("Password: ")
			}
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			if err := engine.Session().Login(ctx, username, password); err != nil {
				if errors.Is(err, session.ErrInvalidLogin) {
					return session.ErrInvalidLogin
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s\n", engine.Config().ServerURL, username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted if omitted)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

// newLogoutCmd creates the 'logout' command.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(core.Options{})
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.Session().Logout(cmd.Context()); err != nil {
				return fmt.Errorf("failed to remove credential: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

// startControl builds an engine and makes sure the stored credential is
// accepted before a command runs.
func startControl(cmd *cobra.Command) (*core.Engine, error) {
	engine, err := newEngine(core.Options{})
	if err != nil {
		return nil, err
	}
	if err := engine.RequireControl(cmd.Context()); err != nil {
		engine.Close()
		return nil, err
	}
	return engine, nil
}
