package auth

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/zalando/go-keyring"

	"github.com/branchd-dev/roleportal/internal/session"
)

const (
	service = "roleportal-cli"
)

// getKeyringKey returns a unique key for one session field per API host
func getKeyringKey(field, host string) string {
	return fmt.Sprintf("%s@%s", field, host)
}

// KeyringStore keeps the terminal session in the OS keychain/credential
// manager, one entry per field, scoped to the API host
type KeyringStore struct {
	host     string
	keychain Keychain
	logger   zerolog.Logger
}

// NewKeyringStore returns the session store for an API host
func NewKeyringStore(host string, logger zerolog.Logger) *KeyringStore {
	return NewKeyringStoreWith(Default, host, logger)
}

// NewKeyringStoreWith returns the session store for an API host on keychain
func NewKeyringStoreWith(keychain Keychain, host string, logger zerolog.Logger) *KeyringStore {
	return &KeyringStore{host: host, keychain: keychain, logger: logger}
}

// Write replaces all three entries. If any entry fails to save, the
// entries already written are cleared so a stale role or profile never
// pairs with a new token.
func (k *KeyringStore) Write(s session.Session) error {
	values, err := session.ToValues(s)
	if err != nil {
		return err
	}

	fields := []struct{ name, value string }{
		{session.KeyToken, values.Token},
		{session.KeyRole, values.Role},
		{session.KeyUser, values.User},
	}
	for _, f := range fields {
		if err := k.keychain.Set(service, getKeyringKey(f.name, k.host), f.value); err != nil {
			if clearErr := k.Clear(); clearErr != nil {
				k.logger.Error().Err(clearErr).Str("host", k.host).Msg("Failed to clear partially written session")
			}
			return fmt.Errorf("failed to save %s: %w", f.name, err)
		}
	}
	return nil
}

// Read loads the session. Keyring failures read as absent.
func (k *KeyringStore) Read() (session.Session, bool) {
	var values session.Values
	var err error

	if values.Token, err = k.get(session.KeyToken); err != nil {
		return k.absent(err)
	}
	if values.Role, err = k.get(session.KeyRole); err != nil {
		return k.absent(err)
	}
	if values.User, err = k.get(session.KeyUser); err != nil {
		return k.absent(err)
	}

	return session.FromValues(values)
}

// Clear removes all entries. Missing entries are not an error.
func (k *KeyringStore) Clear() error {
	for _, field := range []string{session.KeyToken, session.KeyRole, session.KeyUser} {
		if err := k.keychain.Delete(service, getKeyringKey(field, k.host)); err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				continue // Already deleted
			}
			return fmt.Errorf("failed to delete %s: %w", field, err)
		}
	}
	return nil
}

// get returns "" for a missing entry
func (k *KeyringStore) get(field string) (string, error) {
	value, err := k.keychain.Get(service, getKeyringKey(field, k.host))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load %s: %w", field, err)
	}
	return value, nil
}

func (k *KeyringStore) absent(err error) (session.Session, bool) {
	k.logger.Warn().Err(err).Str("host", k.host).Msg("Failed to read session from keyring, treating as absent")
	return session.Session{}, false
}
