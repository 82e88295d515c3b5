package views

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/branchd-dev/roleportal/internal/client"
	"github.com/branchd-dev/roleportal/internal/guard"
	"github.com/branchd-dev/roleportal/internal/session"
)

const maxHops = 4

// AuthClient is the Session Client as seen by the controllers
type AuthClient interface {
	Login(ctx context.Context, email, password string) (session.Session, error)
	Register(ctx context.Context, name, email, password string, role session.Role) error
	FetchUsers(ctx context.Context, token string) ([]client.UserRecord, error)
}

// Controllers implements the login, register, user and admin views on top
// of an injected session store. Every entry consults the guard before any
// page model is built.
type Controllers struct {
	client    AuthClient
	guard     *guard.Guard
	gate      *Gate
	validator *validator.Validate
	logger    zerolog.Logger
}

// New creates the view controllers
func New(authClient AuthClient, logger zerolog.Logger) *Controllers {
	return &Controllers{
		client:    authClient,
		guard:     guard.New(logger),
		gate:      NewGate(),
		validator: validator.New(),
		logger:    logger,
	}
}

// Gate exposes the submission gate
func (c *Controllers) Gate() *Gate {
	return c.gate
}

// Enter dispatches a view entry to its controller
func (c *Controllers) Enter(ctx context.Context, store session.Store, view guard.View) Outcome {
	switch view {
	case guard.ViewRegister:
		return c.EnterRegister(store)
	case guard.ViewUser:
		return c.EnterUser(store)
	case guard.ViewAdmin:
		return c.EnterAdmin(ctx, store)
	default:
		return c.EnterLogin(store)
	}
}

// Navigate enters view and follows redirects until a page renders
func (c *Controllers) Navigate(ctx context.Context, store session.Store, view guard.View) (Outcome, error) {
	for hop := 0; hop < maxHops; hop++ {
		outcome := c.Enter(ctx, store, view)
		if !outcome.IsRedirect() {
			return outcome, nil
		}
		view = outcome.Redirect
	}
	return Outcome{}, fmt.Errorf("too many redirects while opening %s", view)
}

// Follow resolves a redirect outcome into a rendered one
func (c *Controllers) Follow(ctx context.Context, store session.Store, outcome Outcome) (Outcome, error) {
	if !outcome.IsRedirect() {
		return outcome, nil
	}
	return c.Navigate(ctx, store, outcome.Redirect)
}

// EnterLogin renders the login form unless a session already exists
func (c *Controllers) EnterLogin(store session.Store) Outcome {
	_, d := c.guard.Enter(store, guard.ViewLogin)
	if !d.Admitted() {
		return redirectTo(d.Redirect)
	}
	return renderPage(guard.ViewLogin, LoginPage{})
}

// SubmitLogin authenticates, stores the session and redirects to the
// landing view for the role the server assigned. key identifies the visitor.
func (c *Controllers) SubmitLogin(ctx context.Context, store session.Store, key string, form LoginForm) Outcome {
	form.Email = strings.TrimSpace(form.Email)
	page := LoginPage{Email: form.Email}

	if err := c.validator.Struct(form); err != nil {
		page.Error = validationMessage(err)
		return renderPage(guard.ViewLogin, page)
	}

	release, ok := c.gate.Acquire("login:" + key)
	if !ok {
		page.Error = MsgInFlight
		return renderPage(guard.ViewLogin, page)
	}
	defer release()

	s, err := c.client.Login(ctx, form.Email, form.Password)
	if err != nil {
		c.logger.Warn().Err(err).Str("email", form.Email).Str("kind", client.KindOf(err).String()).Msg("Login failed")
		page.Error = ErrorMessage(err)
		return renderPage(guard.ViewLogin, page)
	}

	if err := store.Write(s); err != nil {
		c.logger.Error().Err(err).Msg("Failed to store session")
		page.Error = MsgGeneric
		return renderPage(guard.ViewLogin, page)
	}

	c.logger.Info().Str("email", s.Profile.Email).Str("role", string(s.Role)).Msg("User logged in")

	return redirectTo(guard.Landing(s))
}

// EnterRegister renders the registration form. It is open to everyone.
func (c *Controllers) EnterRegister(store session.Store) Outcome {
	_, d := c.guard.Enter(store, guard.ViewRegister)
	if !d.Admitted() {
		return redirectTo(d.Redirect)
	}
	return renderPage(guard.ViewRegister, RegisterPage{Role: string(session.RoleUser)})
}

// SubmitRegister creates an account. It never touches the store.
func (c *Controllers) SubmitRegister(ctx context.Context, store session.Store, key string, form RegisterForm) Outcome {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	form.Role = strings.ToLower(strings.TrimSpace(form.Role))
	if form.Role == "" {
		form.Role = string(session.RoleUser)
	}

	page := RegisterPage{Name: form.Name, Email: form.Email, Role: form.Role}

	if err := c.validator.Struct(form); err != nil {
		page.Error = validationMessage(err)
		return renderPage(guard.ViewRegister, page)
	}

	release, ok := c.gate.Acquire("register:" + key)
	if !ok {
		page.Error = MsgInFlight
		return renderPage(guard.ViewRegister, page)
	}
	defer release()

	if err := c.client.Register(ctx, form.Name, form.Email, form.Password, session.Role(form.Role)); err != nil {
		c.logger.Warn().Err(err).Str("email", form.Email).Str("kind", client.KindOf(err).String()).Msg("Registration failed")
		page.Error = ErrorMessage(err)
		return renderPage(guard.ViewRegister, page)
	}

	c.logger.Info().Str("email", form.Email).Str("role", form.Role).Msg("User registered")

	return renderPage(guard.ViewRegister, RegisterPage{
		Role:    string(session.RoleUser),
		Success: MsgRegistered,
	})
}

// EnterUser renders the user landing view from the stored profile
func (c *Controllers) EnterUser(store session.Store) Outcome {
	s, d := c.guard.Enter(store, guard.ViewUser)
	if !d.Admitted() {
		return redirectTo(d.Redirect)
	}
	return renderPage(guard.ViewUser, UserPage{Profile: s.Profile})
}

// EnterAdmin renders the admin landing view with the live user list
func (c *Controllers) EnterAdmin(ctx context.Context, store session.Store) Outcome {
	users, d, err := c.guard.EnterAdmin(ctx, store, c.client)
	if !d.Admitted() {
		return redirectTo(d.Redirect)
	}

	s, _ := store.Read()
	page := AdminPage{Profile: s.Profile, Users: users}
	if err != nil {
		c.logger.Warn().Err(err).Str("kind", client.KindOf(err).String()).Msg("Failed to fetch users")
		page.Error = fmt.Sprintf("%s %s", MsgUsersFailed, ErrorMessage(err))
	}

	return renderPage(guard.ViewAdmin, page)
}

// Logout clears the store and returns to login. The remote API is not called.
// A failed clear is returned alongside the redirect.
func (c *Controllers) Logout(store session.Store) (Outcome, error) {
	if err := store.Clear(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to clear session")
		return redirectTo(guard.ViewLogin), fmt.Errorf("failed to clear session: %w", err)
	}
	c.logger.Info().Msg("User logged out")
	return redirectTo(guard.ViewLogin), nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return MsgGeneric
	}

	fe := verrs[0]
	if fe.Tag() == "oneof" {
		return MsgRoleInvalid
	}
	return fmt.Sprintf(msgFieldRequired, fe.Field())
}
