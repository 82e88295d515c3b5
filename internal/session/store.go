package session

import "sync"

// Store holds at most one Session.
//
// Implementations are bound to their scope (a browser visitor, a terminal
// user, a test) when constructed, so the methods take no addressing
// arguments. Read never fails: storage errors are reported as absent.
type Store interface {
	Write(s Session) error
	Read() (Session, bool)
	Clear() error
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu      sync.Mutex
	session Session
	present bool
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Write(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	m.present = true
	return nil
}

func (m *MemoryStore) Read() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.present
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = Session{}
	m.present = false
	return nil
}

// Values is the raw three-key layout shared by key/value backed stores
type Values struct {
	Token string
	Role  string
	User  string
}

// Empty reports whether no key is set
func (v Values) Empty() bool {
	return v.Token == "" && v.Role == "" && v.User == ""
}

// ToValues flattens a session into its stored key layout
func ToValues(s Session) (Values, error) {
	user, err := EncodeProfile(s.Profile)
	if err != nil {
		return Values{}, err
	}
	return Values{Token: s.Token, Role: string(s.Role), User: user}, nil
}

// FromValues rebuilds a session from stored keys. A role outside the known
// set is kept verbatim so callers see an incomplete session rather than a
// silently rewritten one. A corrupt profile degrades to an empty profile.
func FromValues(v Values) (Session, bool) {
	if v.Empty() {
		return Session{}, false
	}
	profile, err := DecodeProfile(v.User)
	if err != nil {
		profile = Profile{}
	}
	return Session{Token: v.Token, Role: Role(v.Role), Profile: profile}, true
}
