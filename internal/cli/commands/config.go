package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/branchd-dev/roleportal/internal/cli/userconfig"
)

// NewConfigCmd creates the config command
func NewConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the CLI configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set-api <url>",
		Short: "Set the API URL used by default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := userconfig.SetAPIURL(args[0]); err != nil {
				return err
			}
			path, _ := userconfig.GetConfigPath()
			fmt.Fprintf(app.Out, "✓ API URL saved to %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective API URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(app.Out, "api_url: %s\n", app.APIURL)
			return nil
		},
	})

	return cmd
}
