package webstore

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/branchd-dev/roleportal/internal/session"
)

const (
	visitorCookieSuffix = "_visitor"
	visitorKey          = "vid"
)

// Backend opens the Session Store of the visitor behind a request
type Backend interface {
	Open(w http.ResponseWriter, r *http.Request) session.Store
	Name() string
}

// Options configures the browser cookies
type Options struct {
	CookieName string
	HashKey    []byte
	BlockKey   []byte
	Secure     bool
	// MaxAge of the session cookie in seconds. 0 keeps the cookie for the
	// browser session only.
	MaxAge int
}

func newCookieStore(opts Options) *sessions.CookieStore {
	store := sessions.NewCookieStore(opts.HashKey, opts.BlockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   opts.MaxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Visitors assigns every browser a stable anonymous id held in a signed
// cookie. The id keys the redis backend and the submission gate.
type Visitors struct {
	cookies *sessions.CookieStore
	name    string
}

// NewVisitors creates the visitor id tracker
func NewVisitors(opts Options) *Visitors {
	cookies := newCookieStore(opts)
	// the visitor id outlives login sessions so the gate key stays stable
	cookies.Options.MaxAge = 0
	return &Visitors{cookies: cookies, name: opts.CookieName + visitorCookieSuffix}
}

// ID returns the visitor id, issuing a new one when absent
func (v *Visitors) ID(w http.ResponseWriter, r *http.Request) (string, error) {
	sess, err := v.cookies.Get(r, v.name)
	if sess == nil {
		return "", fmt.Errorf("failed to load visitor cookie: %w", err)
	}

	if id, ok := sess.Values[visitorKey].(string); ok && id != "" {
		return id, nil
	}

	id := ulid.Make().String()
	sess.Values[visitorKey] = id
	if err := sess.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save visitor cookie: %w", err)
	}

	return id, nil
}

// errStore is returned when a request's store cannot be opened. It reads
// as absent and refuses writes.
type errStore struct {
	err error
}

func (s errStore) Write(session.Session) error {
	return s.err
}

func (s errStore) Read() (session.Session, bool) {
	return session.Session{}, false
}

func (s errStore) Clear() error {
	return nil
}

var errNoVisitor = errors.New("visitor id unavailable")

// stringValue reads a string out of gorilla session values
func stringValue(values map[interface{}]interface{}, key string) string {
	s, _ := values[key].(string)
	return s
}

func logReadError(logger zerolog.Logger, backend string, err error) {
	logger.Warn().Err(err).Str("backend", backend).Msg("Failed to read session, treating as absent")
}
