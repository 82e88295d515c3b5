package commands

import (
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"github.com/branchd-dev/roleportal/internal/session"
)

// Prompter asks the user for input that was not given as flags
type Prompter interface {
	Interactive() bool
	Password(label string) (string, error)
	Role() (session.Role, error)
}

// TerminalPrompter reads from the controlling terminal
type TerminalPrompter struct{}

func (TerminalPrompter) Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (TerminalPrompter) Password(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

func (TerminalPrompter) Role() (session.Role, error) {
	prompt := promptui.Select{
		Label: "Role",
		Items: []session.Role{session.RoleUser, session.RoleAdmin},
	}
	_, result, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("role selection cancelled: %w", err)
	}
	return session.ParseRole(result)
}
