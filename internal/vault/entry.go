package vault

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Entry is one stored credential.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	ServiceName string    `json:"serviceName"`
	Username    string    `json:"username,omitempty"`
	// Secret is kept in plaintext inside the vault envelope; the field
	// name is part of the file format.
	Secret string `json:"encryptedPassword"`
}

// NewEntry creates an entry with a fresh random ID
func NewEntry(serviceName, username, secret string) Entry {
	return Entry{
		ID:          uuid.New(),
		ServiceName: serviceName,
		Username:    username,
		Secret:      secret,
	}
}

// Validate checks the fields required before an entry is persisted
func (e Entry) Validate() error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.ServiceName) == "" {
		return fmt.Errorf("%w: service name is required", ErrInvalidEntry)
	}
	if e.Secret == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidEntry)
	}
	return nil
}

func (e Entry) String() string {
	if e.Username == "" {
		return e.ServiceName
	}
	return e.ServiceName + " " + e.Username
}

func indexOf(entries []Entry, id uuid.UUID) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}
