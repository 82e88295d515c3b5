package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/branchd-dev/roleportal/internal/guard"
	"github.com/branchd-dev/roleportal/internal/session"
	"github.com/branchd-dev/roleportal/internal/views"
)

// SessionStatus is the guard decision reported by GET /api/session
type SessionStatus struct {
	View          guard.View       `json:"view"`
	Authenticated bool             `json:"authenticated"`
	Admitted      bool             `json:"admitted"`
	Redirect      guard.View       `json:"redirect,omitempty"`
	Role          session.Role     `json:"role,omitempty"`
	User          *session.Profile `json:"user,omitempty"`
}

// render writes a controller outcome: redirects become 303 See Other so a
// POST is never replayed, pages render their view template
func (s *Server) render(c *gin.Context, outcome views.Outcome) {
	if outcome.IsRedirect() {
		c.Redirect(http.StatusSeeOther, "/"+string(outcome.Redirect))
		return
	}
	c.HTML(http.StatusOK, templateName(outcome.View), outcome.Page)
}

func (s *Server) enterView(view guard.View) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		s.render(c, s.views.Enter(c.Request.Context(), s.sessionStore(c), view))
	}
}

func (s *Server) submitLogin(c *gin.Context) {
	var form views.LoginForm
	if err := c.ShouldBind(&form); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to bind login form")
	}

	key := s.visitorKey(c)
	s.render(c, s.views.SubmitLogin(c.Request.Context(), s.sessionStore(c), key, form))
}

func (s *Server) submitRegister(c *gin.Context) {
	var form views.RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to bind register form")
	}

	key := s.visitorKey(c)
	s.render(c, s.views.SubmitRegister(c.Request.Context(), s.sessionStore(c), key, form))
}

func (s *Server) logout(c *gin.Context) {
	// the failure is logged by the controller; the visitor still lands on login
	outcome, _ := s.views.Logout(s.sessionStore(c))
	s.render(c, outcome)
}

// sessionStatus answers whether the current session may open ?view=. The
// admin user list is not fetched; a revoked token is only detected when the
// admin view itself is entered.
func (s *Server) sessionStatus(c *gin.Context) {
	view := guard.ResolveView(c.Query("view"))

	sess, present := s.sessionStore(c).Read()
	d := guard.Decide(sess, present, view)

	status := SessionStatus{
		View:          view,
		Authenticated: present && sess.Complete(),
		Admitted:      d.Admitted(),
		Redirect:      d.Redirect,
	}
	if status.Authenticated {
		profile := sess.Profile
		status.Role = sess.Role
		status.User = &profile
	}

	c.JSON(http.StatusOK, status)
}
