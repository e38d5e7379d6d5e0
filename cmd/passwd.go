package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/pwvault/internal/crypto"
	"github.com/illarion/pwvault/internal/keyring"
)

// Passwd changes the user's master password
func Passwd(ctx context.Context) {
	m, cfg := openManager()
	defer m.Close()

	username := currentUser()
	sess, _ := Login(ctx, m, cfg, username)
	defer m.Logout(sess)

	// PWVAULT_PASSWORD holds the current password here, so always prompt
	newPassword, err := GetNewPassword("New master password: ", username, false)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(newPassword)

	if err := m.ChangePassword(ctx, sess, newPassword); err != nil {
		HandleError(err)
	}

	// Keep a cached keyring password in step with the vault
	if cfg.Keyring && keyring.HasPassword(username) {
		if err := keyring.SavePassword(username, newPassword); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to update keyring: %s\n", err)
		} else {
			fmt.Println("Keyring updated with new password")
		}
	}

	fmt.Println("Password changed successfully")
}
