package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/branchd-dev/roleportal/internal/guard"
)

// NewOpenCmd creates the open command
func NewOpenCmd(app *App) *cobra.Command {
	names := make([]string, 0, len(guard.Views))
	for _, v := range guard.Views {
		names = append(names, string(v))
	}

	return &cobra.Command{
		Use:       "open <view>",
		Short:     "Open a view (" + strings.Join(names, ", ") + ")",
		Long:      "Open a view. Views you may not see redirect to the one you may; unknown views open login.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.open(cmd.Context(), guard.ResolveView(args[0]))
		},
	}
}

// NewViewCmd creates a shortcut command that opens a single view
func NewViewCmd(app *App, view guard.View, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(view),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.open(cmd.Context(), view)
		},
	}
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.controllers().Logout(app.store()); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "✓ Logged out")
			return nil
		},
	}
}
