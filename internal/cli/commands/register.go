package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/branchd-dev/roleportal/internal/session"
	"github.com/branchd-dev/roleportal/internal/views"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd(app *App) *cobra.Command {
	var form views.RegisterForm

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account on the API server.

Registering does not sign you in; run 'roleportal login' afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd, app, form)
		},
	}

	cmd.Flags().StringVar(&form.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&form.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&form.Password, "password", "", "Password (or set ROLEPORTAL_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&form.Role, "role", "", "Role: user or admin (prompts when interactive, defaults to user)")

	return cmd
}

func runRegister(cmd *cobra.Command, app *App, form views.RegisterForm) error {
	if form.Password == "" {
		form.Password = os.Getenv("ROLEPORTAL_PASSWORD")
	}

	if app.Prompt.Interactive() {
		if form.Password == "" {
			password, err := app.Prompt.Password("Password")
			if err != nil {
				return err
			}
			form.Password = password
		}
		if form.Role == "" {
			role, err := app.Prompt.Role()
			if err != nil {
				return err
			}
			form.Role = string(role)
		}
	}
	if form.Role == "" {
		form.Role = string(session.RoleUser)
	}

	outcome := app.controllers().SubmitRegister(cmd.Context(), app.store(), gateKey, form)
	return app.print(outcome)
}
