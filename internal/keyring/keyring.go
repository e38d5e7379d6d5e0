// Package keyring keeps master passwords in the OS keyring, keyed by username.
package keyring

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const serviceName = "pwvault"

// ErrNotFound is returned when no password is stored for the user
var ErrNotFound = keyring.ErrNotFound

// SavePassword stores a master password in the OS keyring
func SavePassword(username string, password []byte) error {
	return keyring.Set(serviceName, username, string(password))
}

// GetPassword retrieves a master password from the OS keyring
func GetPassword(username string) ([]byte, error) {
	password, err := keyring.Get(serviceName, username)
	if err != nil {
		return nil, err
	}
	return []byte(password), nil
}

// DeletePassword removes a master password from the OS keyring. Deleting a
// password that is not stored is not an error.
func DeletePassword(username string) error {
	err := keyring.Delete(serviceName, username)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// HasPassword checks if a password is stored in the keyring
func HasPassword(username string) bool {
	_, err := keyring.Get(serviceName, username)
	return err == nil
}
