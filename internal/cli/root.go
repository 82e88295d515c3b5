package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/branchd-dev/roleportal/internal/cli/auth"
	"github.com/branchd-dev/roleportal/internal/cli/commands"
	"github.com/branchd-dev/roleportal/internal/cli/userconfig"
	"github.com/branchd-dev/roleportal/internal/client"
	"github.com/branchd-dev/roleportal/internal/guard"
	"github.com/branchd-dev/roleportal/internal/logger"
	"github.com/branchd-dev/roleportal/internal/session"
	"github.com/branchd-dev/roleportal/internal/views"
)

var version = "dev" // Will be set during build

// NewApp wires the production keyring store and HTTP client
func NewApp(out io.Writer, log zerolog.Logger) *commands.App {
	return &commands.App{
		Out:    out,
		Logger: log,
		Prompt: commands.TerminalPrompter{},
		NewStore: func(apiURL string) session.Store {
			return auth.NewKeyringStore(userconfig.Host(apiURL), log)
		},
		NewClient: func(apiURL string) views.AuthClient {
			return client.New(apiURL, 0)
		},
	}
}

// NewRootCmd builds the command tree around app
func NewRootCmd(app *commands.App) *cobra.Command {
	var apiFlag string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "roleportal",
		Short: "roleportal - role-based portal in your terminal",
		Long: `roleportal CLI - sign in to the authentication API and open the views
your role allows.

Admins land on the admin view with the list of registered users; everyone
else lands on the user view.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}

			// Skip API resolution for commands that do not talk to the API
			if cmd.Name() == "version" || cmd.Name() == "set-api" {
				return nil
			}

			apiURL, err := userconfig.ResolveAPIURL(apiFlag)
			if err != nil {
				return err
			}
			app.APIURL = apiURL
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "API URL (or set "+userconfig.EnvAPIURL+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log requests and session changes")
	rootCmd.SetOut(app.Out)

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(app.Out, "roleportal version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewLoginCmd(app))
	rootCmd.AddCommand(commands.NewRegisterCmd(app))
	rootCmd.AddCommand(commands.NewOpenCmd(app))
	rootCmd.AddCommand(commands.NewViewCmd(app, guard.ViewUser, "Open the user view"))
	rootCmd.AddCommand(commands.NewViewCmd(app, guard.ViewAdmin, "Open the admin view with all users"))
	rootCmd.AddCommand(commands.NewLogoutCmd(app))
	rootCmd.AddCommand(commands.NewConfigCmd(app))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	log := logger.New(os.Stderr, "warn", "console")
	if err := NewRootCmd(NewApp(os.Stdout, log)).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
