package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/branchd-dev/roleportal/internal/views"
)

func printUser(out io.Writer, page views.UserPage) {
	fmt.Fprintf(out, "Welcome, %s\n", page.Profile.Name)
	fmt.Fprintf(out, "  Name:  %s\n", page.Profile.Name)
	fmt.Fprintf(out, "  Email: %s\n", page.Profile.Email)
}

func printAdmin(out io.Writer, page views.AdminPage) error {
	fmt.Fprintf(out, "Admin dashboard (%s, %s)\n\n", page.Profile.Name, page.Profile.Email)

	if page.Error != "" {
		return errors.New(page.Error)
	}

	if len(page.Users) == 0 {
		fmt.Fprintln(out, "No users found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tCREATED")
	for _, u := range page.Users {
		created := "-"
		if !u.CreatedAt.IsZero() {
			created = u.CreatedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, strings.ToUpper(u.Role), created)
	}
	return w.Flush()
}
