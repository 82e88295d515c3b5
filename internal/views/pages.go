package views

import (
	"github.com/branchd-dev/roleportal/internal/client"
	"github.com/branchd-dev/roleportal/internal/guard"
	"github.com/branchd-dev/roleportal/internal/session"
)

// Messages shown to the visitor
const (
	MsgUnreachable   = "Unable to reach the server. Please try again."
	MsgGeneric       = "Something went wrong. Please try again."
	MsgInFlight      = "A request is already in progress."
	MsgRateLimited   = "Too many attempts. Please wait and try again."
	MsgRegistered    = "Registration successful. You can now log in."
	MsgUsersFailed   = "Could not load users."
	MsgRoleInvalid   = "Role must be user or admin"
	msgFieldRequired = "%s is required"
)

// Outcome is the result of a controller call: either a redirect to another
// view or a page to render for View
type Outcome struct {
	Redirect guard.View
	View     guard.View
	Page     any
}

// IsRedirect reports whether the outcome navigates away
func (o Outcome) IsRedirect() bool {
	return o.Redirect != ""
}

func redirectTo(v guard.View) Outcome {
	return Outcome{Redirect: v}
}

func renderPage(v guard.View, page any) Outcome {
	return Outcome{View: v, Page: page}
}

// LoginForm is the submitted login form
type LoginForm struct {
	Email    string `form:"email" json:"email" validate:"required"`
	Password string `form:"password" json:"password" validate:"required"`
}

// RegisterForm is the submitted registration form
type RegisterForm struct {
	Name     string `form:"name" json:"name" validate:"required"`
	Email    string `form:"email" json:"email" validate:"required"`
	Password string `form:"password" json:"password" validate:"required"`
	Role     string `form:"role" json:"role" validate:"omitempty,oneof=user admin"`
}

// LoginPage is the model of the login view
type LoginPage struct {
	Email string
	Error string
}

// RegisterPage is the model of the register view
type RegisterPage struct {
	Name    string
	Email   string
	Role    string
	Error   string
	Success string
}

// UserPage is the model of the user landing view
type UserPage struct {
	Profile session.Profile
}

// AdminPage is the model of the admin landing view
type AdminPage struct {
	Profile session.Profile
	Users   []client.UserRecord
	Error   string
}

// ErrorMessage converts a Session Client error into visitor-facing text.
// Rejected messages pass through verbatim.
func ErrorMessage(err error) string {
	switch client.KindOf(err) {
	case client.Rejected:
		if msg := client.MessageOf(err); msg != "" {
			return msg
		}
		return MsgGeneric
	case client.Unreachable:
		return MsgUnreachable
	default:
		return MsgGeneric
	}
}
