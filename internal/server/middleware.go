package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/branchd-dev/roleportal/internal/guard"
	"github.com/branchd-dev/roleportal/internal/session"
	"github.com/branchd-dev/roleportal/internal/views"
)

const storeContextKey = "session_store"

// sessionStore opens the visitor's Session Store once per request
func (s *Server) sessionStore(c *gin.Context) session.Store {
	if v, ok := c.Get(storeContextKey); ok {
		if store, ok := v.(session.Store); ok {
			return store
		}
	}

	store := s.sessions.Open(c.Writer, c.Request)
	c.Set(storeContextKey, store)
	return store
}

// visitorKey identifies the browser for the submission gate. Requests whose
// visitor cookie cannot be issued fall back to the client IP.
func (s *Server) visitorKey(c *gin.Context) string {
	id, err := s.visitors.ID(c.Writer, c.Request)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to resolve visitor id, using client IP")
		return "ip:" + c.ClientIP()
	}
	return id
}

// rateLimitMiddleware throttles form submissions per client IP. A throttled
// submission re-renders the form and never reaches the remote API.
func (s *Server) rateLimitMiddleware(view guard.View) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		key := string(view) + ":" + c.ClientIP()
		if s.limiter.allow(key) {
			c.Next()
			return
		}

		s.logger.Warn().Str("client_ip", c.ClientIP()).Str("view", string(view)).Msg("Submission rate limited")

		var page any
		switch view {
		case guard.ViewRegister:
			page = views.RegisterPage{
				Name:  c.PostForm("name"),
				Email: c.PostForm("email"),
				Role:  c.DefaultPostForm("role", string(session.RoleUser)),
				Error: views.MsgRateLimited,
			}
		default:
			page = views.LoginPage{Email: c.PostForm("email"), Error: views.MsgRateLimited}
		}

		c.HTML(http.StatusTooManyRequests, templateName(view), page)
		c.Abort()
	}
}
