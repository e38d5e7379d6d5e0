package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/pwvault/internal/core"
	"github.com/illarion/pwvault/internal/crypto"
	"github.com/illarion/pwvault/internal/keyring"
)

// KeyringSave verifies the master password and saves it to the OS keyring
func KeyringSave(ctx context.Context) {
	m, _ := openManager()
	defer m.Close()

	username := currentUser()

	password, _, err := GetPassword(fmt.Sprintf("Master password for %s: ", username))
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	// Verify password is correct
	sess, err := m.Verify(ctx, username, password)
	if err != nil {
		HandleError(err)
	}
	m.Logout(sess)

	if err := keyring.SavePassword(username, password); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		Exit(1)
	}

	fmt.Println("Password saved to keyring")
}

// KeyringDelete removes the user's password from the OS keyring
func KeyringDelete() {
	username := currentUser()

	if !keyring.HasPassword(username) {
		fmt.Println("No password stored in keyring")
		return
	}
	if err := keyring.DeletePassword(username); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to delete from keyring: %s\n", err)
		Exit(1)
	}

	fmt.Println("Password removed from keyring")
}

// KeyringStatus checks if a password is stored in the keyring
func KeyringStatus() {
	username := currentUser()

	if keyring.HasPassword(username) {
		fmt.Println("Password: stored in keyring")
	} else {
		fmt.Println("Password: not stored")
	}
	if os.Getenv(core.PasswordEnv) != "" {
		fmt.Printf("Note: %s is set and takes precedence\n", core.PasswordEnv)
	}
}
