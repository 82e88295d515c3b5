package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/branchd-dev/roleportal/internal/guard"
	"github.com/branchd-dev/roleportal/internal/session"
	"github.com/branchd-dev/roleportal/internal/views"
)

// gateKey identifies this terminal for the submission gate
const gateKey = "cli"

// App carries what every command needs. The root command resolves APIURL
// before any subcommand runs.
type App struct {
	APIURL string
	Out    io.Writer
	Logger zerolog.Logger
	Prompt Prompter

	// NewStore returns the Session Store scoped to an API URL
	NewStore func(apiURL string) session.Store
	// NewClient returns the Session Client for an API URL
	NewClient func(apiURL string) views.AuthClient
}

func (a *App) controllers() *views.Controllers {
	return views.New(a.NewClient(a.APIURL), a.Logger)
}

func (a *App) store() session.Store {
	return a.NewStore(a.APIURL)
}

// open navigates to view, follows redirects and prints the page
func (a *App) open(ctx context.Context, view guard.View) error {
	outcome, err := a.controllers().Navigate(ctx, a.store(), view)
	if err != nil {
		return err
	}
	return a.print(outcome)
}

// print renders an outcome. Pages carrying an error are returned as errors
// after printing so the process exits non-zero.
func (a *App) print(outcome views.Outcome) error {
	switch page := outcome.Page.(type) {
	case views.LoginPage:
		if page.Error != "" {
			return errors.New(page.Error)
		}
		fmt.Fprintln(a.Out, "Not logged in. Run 'roleportal login' to sign in.")
	case views.RegisterPage:
		if page.Error != "" {
			return errors.New(page.Error)
		}
		if page.Success != "" {
			fmt.Fprintf(a.Out, "✓ %s\n", page.Success)
			return nil
		}
		fmt.Fprintln(a.Out, "Run 'roleportal register' to create an account.")
	case views.UserPage:
		printUser(a.Out, page)
	case views.AdminPage:
		return printAdmin(a.Out, page)
	default:
		return fmt.Errorf("nothing to show for %q", outcome.View)
	}
	return nil
}
