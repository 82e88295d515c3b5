package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/branchd-dev/roleportal/internal/views"
)

// NewLoginCmd creates the login command
func NewLoginCmd(app *App) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and open your landing view",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, app, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set ROLEPORTAL_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set ROLEPORTAL_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, app *App, email, password string) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("ROLEPORTAL_EMAIL")
	}
	if password == "" {
		password = os.Getenv("ROLEPORTAL_PASSWORD")
	}

	// Prompt for password if not provided via flag or env var
	if password == "" && email != "" && app.Prompt.Interactive() {
		var err error
		if password, err = app.Prompt.Password("Password"); err != nil {
			return err
		}
	}

	fmt.Fprintf(app.Out, "Logging in to %s...\n", app.APIURL)

	ctx := cmd.Context()
	ctrl := app.controllers()
	store := app.store()

	outcome := ctrl.SubmitLogin(ctx, store, gateKey, views.LoginForm{Email: email, Password: password})
	if !outcome.IsRedirect() {
		return app.print(outcome)
	}

	s, _ := store.Read()
	fmt.Fprintf(app.Out, "✓ Login successful!\n")
	fmt.Fprintf(app.Out, "  User: %s (%s)\n", s.Profile.Name, s.Profile.Email)
	fmt.Fprintf(app.Out, "  Role: %s\n\n", s.Role)

	landing, err := ctrl.Follow(ctx, store, outcome)
	if err != nil {
		return err
	}
	return app.print(landing)
}
