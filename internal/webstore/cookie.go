package webstore

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"

	"github.com/branchd-dev/roleportal/internal/session"
)

// CookieBackend keeps the whole session in one signed and encrypted cookie
type CookieBackend struct {
	cookies *sessions.CookieStore
	name    string
	maxAge  int
	logger  zerolog.Logger
}

// NewCookieBackend creates a cookie-backed session backend
func NewCookieBackend(opts Options, logger zerolog.Logger) *CookieBackend {
	return &CookieBackend{
		cookies: newCookieStore(opts),
		name:    opts.CookieName,
		maxAge:  opts.MaxAge,
		logger:  logger,
	}
}

func (b *CookieBackend) Name() string {
	return "cookie"
}

// Open binds a store to the request
func (b *CookieBackend) Open(w http.ResponseWriter, r *http.Request) session.Store {
	return &cookieStore{backend: b, w: w, r: r}
}

type cookieStore struct {
	backend *CookieBackend
	w       http.ResponseWriter
	r       *http.Request
}

// load returns the request's session. gorilla caches it per request, so a
// write followed by a read in the same request sees the written values. A
// cookie that no longer decodes (rotated keys) comes back as a fresh session
// together with the decode error.
func (s *cookieStore) load() (*sessions.Session, error) {
	sess, err := s.backend.cookies.Get(s.r, s.backend.name)
	if sess == nil {
		return nil, fmt.Errorf("failed to load session cookie: %w", err)
	}
	if err != nil {
		s.backend.logger.Debug().Err(err).Msg("Discarding undecodable session cookie")
	}
	return sess, nil
}

func (s *cookieStore) Write(sess session.Session) error {
	cookie, err := s.load()
	if err != nil {
		return err
	}

	values, err := session.ToValues(sess)
	if err != nil {
		return err
	}

	cookie.Values[session.KeyToken] = values.Token
	cookie.Values[session.KeyRole] = values.Role
	cookie.Values[session.KeyUser] = values.User
	cookie.Options.MaxAge = s.backend.maxAge

	if err := cookie.Save(s.r, s.w); err != nil {
		return fmt.Errorf("failed to save session cookie: %w", err)
	}
	return nil
}

func (s *cookieStore) Read() (session.Session, bool) {
	cookie, err := s.load()
	if err != nil {
		logReadError(s.backend.logger, s.backend.Name(), err)
		return session.Session{}, false
	}

	return session.FromValues(session.Values{
		Token: stringValue(cookie.Values, session.KeyToken),
		Role:  stringValue(cookie.Values, session.KeyRole),
		User:  stringValue(cookie.Values, session.KeyUser),
	})
}

func (s *cookieStore) Clear() error {
	cookie, err := s.load()
	if err != nil {
		return err
	}

	if cookie.IsNew && len(cookie.Values) == 0 {
		if _, err := s.r.Cookie(s.backend.name); err != nil {
			return nil
		}
	}

	delete(cookie.Values, session.KeyToken)
	delete(cookie.Values, session.KeyRole)
	delete(cookie.Values, session.KeyUser)
	cookie.Options.MaxAge = -1

	if err := cookie.Save(s.r, s.w); err != nil {
		return fmt.Errorf("failed to clear session cookie: %w", err)
	}
	return nil
}
