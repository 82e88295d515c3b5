package auth

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/branchd-dev/roleportal/internal/session"
)

var testSession = session.Session{
	Token:   "t1",
	Role:    session.RoleAdmin,
	Profile: session.Profile{Name: "A", Email: "a@b.com"},
}

func TestKeyringStore_RoundTrip(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore("api.example.com", zerolog.Nop())

	_, present := store.Read()
	assert.False(t, present)

	require.NoError(t, store.Write(testSession))
	got, present := store.Read()
	require.True(t, present)
	assert.Equal(t, testSession, got)

	token, err := keyring.Get(service, "token@api.example.com")
	require.NoError(t, err)
	assert.Equal(t, "t1", token)
}

func TestKeyringStore_HostsAreIsolated(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, NewKeyringStore("a.example.com", zerolog.Nop()).Write(testSession))

	_, present := NewKeyringStore("b.example.com", zerolog.Nop()).Read()
	assert.False(t, present)
}

func TestKeyringStore_Clear(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore("api.example.com", zerolog.Nop())

	require.NoError(t, store.Clear(), "clearing an empty store")

	require.NoError(t, store.Write(testSession))
	require.NoError(t, store.Clear())
	_, present := store.Read()
	assert.False(t, present)

	require.NoError(t, store.Clear())
}

func TestKeyringStore_PartialEntries(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set(service, "token@api.example.com", "t1"))

	got, present := NewKeyringStore("api.example.com", zerolog.Nop()).Read()
	require.True(t, present)
	assert.False(t, got.Complete())
}

func TestKeyringStore_KeyringFailure(t *testing.T) {
	keyring.MockInitWithError(errors.New("keychain locked"))
	defer keyring.MockInit()

	store := NewKeyringStore("api.example.com", zerolog.Nop())
	_, present := store.Read()
	assert.False(t, present)
	assert.Error(t, store.Write(testSession))
	assert.Error(t, store.Clear())
}

// failOnSet wraps a keychain and fails Set for a single entry
type failOnSet struct {
	Keychain
	user string
}

func (f failOnSet) Set(service, user, password string) error {
	if user == f.user {
		return errors.New("keychain write refused")
	}
	return f.Keychain.Set(service, user, password)
}

func TestKeyringStore_FailedWriteLeavesNoMixedSession(t *testing.T) {
	keyring.MockInit()
	const host = "api.example.com"

	require.NoError(t, NewKeyringStore(host, zerolog.Nop()).Write(testSession))

	store := NewKeyringStoreWith(failOnSet{Keychain: Default, user: "role@" + host}, host, zerolog.Nop())
	err := store.Write(session.Session{
		Token:   "t2",
		Role:    session.RoleUser,
		Profile: session.Profile{Name: "U", Email: "u@b.com"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save role")

	_, present := store.Read()
	assert.False(t, present, "the new token must not pair with the old admin role")

	_, err = keyring.Get(service, "token@"+host)
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}
