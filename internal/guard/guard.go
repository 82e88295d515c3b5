// Package guard decides, for a stored session and a requested view, whether
// the view may render or where the visitor must be sent instead.
package guard

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/branchd-dev/roleportal/internal/client"
	"github.com/branchd-dev/roleportal/internal/session"
)

// View is an addressable view
type View string

const (
	ViewLogin    View = "login"
	ViewRegister View = "register"
	ViewUser     View = "user"
	ViewAdmin    View = "admin"
)

// Views lists every addressable view
var Views = []View{ViewLogin, ViewRegister, ViewUser, ViewAdmin}

// ResolveView maps a path segment to a view. Anything unknown is login.
func ResolveView(name string) View {
	v := View(strings.Trim(strings.ToLower(name), "/"))
	switch v {
	case ViewLogin, ViewRegister, ViewUser, ViewAdmin:
		return v
	default:
		return ViewLogin
	}
}

// Decision is the outcome of evaluating a view entry.
// When Redirect is empty the requested view renders.
type Decision struct {
	Redirect View
}

// Admitted reports whether the requested view may render
func (d Decision) Admitted() bool {
	return d.Redirect == ""
}

func render() Decision { return Decision{} }

func redirect(to View) Decision { return Decision{Redirect: to} }

func landing(r session.Role) View {
	if r == session.RoleAdmin {
		return ViewAdmin
	}
	return ViewUser
}

// Decide applies the admission table. present is false when nothing is
// stored; an incomplete session counts as absent.
func Decide(s session.Session, present bool, target View) Decision {
	authenticated := present && s.Complete()

	switch target {
	case ViewLogin:
		if !authenticated {
			return render()
		}
		return redirect(landing(s.Role))

	case ViewRegister:
		return render()

	case ViewUser:
		if authenticated && s.Role == session.RoleUser {
			return render()
		}
		return redirect(ViewLogin)

	case ViewAdmin:
		if authenticated && s.Role == session.RoleAdmin {
			return render()
		}
		return redirect(ViewLogin)

	default:
		return Decide(s, present, ViewLogin)
	}
}

// Landing returns the view a freshly authenticated session belongs on
func Landing(s session.Session) View {
	return Decide(s, true, ViewLogin).Redirect
}

// UserLister is the remote call used to reconcile an admin session
type UserLister interface {
	FetchUsers(ctx context.Context, token string) ([]client.UserRecord, error)
}

// Guard evaluates view entries against a store
type Guard struct {
	logger zerolog.Logger
}

// New creates a guard
func New(logger zerolog.Logger) *Guard {
	return &Guard{logger: logger}
}

// Enter reads the store and applies the admission table
func (g *Guard) Enter(store session.Store, target View) (session.Session, Decision) {
	s, present := store.Read()
	d := Decide(s, present, target)

	if present && !s.Complete() {
		g.logger.Debug().Str("view", string(target)).Msg("Ignoring incomplete stored session")
	}

	return s, d
}

// EnterAdmin is Enter for the admin view followed by a remote check. An
// Unauthorized answer clears the store and redirects to login even though
// the local table admitted the visitor. Other remote failures are returned
// with an admitting decision so the view can show a message.
func (g *Guard) EnterAdmin(ctx context.Context, store session.Store, lister UserLister) ([]client.UserRecord, Decision, error) {
	s, d := g.Enter(store, ViewAdmin)
	if !d.Admitted() {
		return nil, d, nil
	}

	users, err := lister.FetchUsers(ctx, s.Token)
	if err == nil {
		return users, d, nil
	}

	if client.IsUnauthorized(err) {
		g.logger.Warn().Err(err).Msg("Remote API rejected stored session, clearing it")
		if clearErr := store.Clear(); clearErr != nil {
			g.logger.Error().Err(clearErr).Msg("Failed to clear invalidated session")
		}
		return nil, redirect(ViewLogin), nil
	}

	return nil, d, err
}
