package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the server-assigned role carried by a session
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole normalizes a role string. Unknown values return an error.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Profile is the denormalized display copy of the authenticated user
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the client-side authentication state.
// Token and Role grant access; Profile is display-only.
type Session struct {
	Token   string  `json:"token"`
	Role    Role    `json:"role"`
	Profile Profile `json:"user"`
}

// Complete reports whether both authority fields are populated.
// An incomplete session must be handled exactly like no session.
func (s Session) Complete() bool {
	return s.Token != "" && s.Role.Valid()
}

// Store keys. The three values are always written and cleared together.
const (
	KeyToken = "token"
	KeyRole  = "role"
	KeyUser  = "user"
)

// EncodeProfile serializes a profile for the "user" key
func EncodeProfile(p Profile) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal profile: %w", err)
	}
	return string(data), nil
}

// DecodeProfile parses the "user" key. An empty value yields a zero profile.
func DecodeProfile(raw string) (Profile, error) {
	var p Profile
	if raw == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	return p, nil
}
