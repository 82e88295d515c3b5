package auth

import "github.com/zalando/go-keyring"

// Keychain defines the secret storage operations used by KeyringStore.
// This allows tests to fail individual calls.
type Keychain interface {
	Set(service, user, password string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

// osKeychain implements Keychain using the OS keyring
type osKeychain struct{}

var Default Keychain = osKeychain{}

func (osKeychain) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}

func (osKeychain) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}

func (osKeychain) Delete(service, user string) error {
	return keyring.Delete(service, user)
}
