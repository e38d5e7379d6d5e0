package cmd

import (
	"context"
	"fmt"

	"github.com/illarion/pwvault/internal/crypto"
)

// Register creates a new user with an empty vault
func Register(ctx context.Context) {
	m, cfg := openManager()
	defer m.Close()

	username := currentUser()
	if m.Exists(username) {
		fmt.Printf("User %s already exists\n", username)
		fmt.Println("Use 'pwvault login' to open the existing vault")
		Exit(1)
	}

	password, err := GetNewPassword("Choose master password: ", username, true)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	sess, err := m.Register(ctx, username, password)
	if err != nil {
		HandleError(err)
	}
	defer m.Logout(sess)

	fmt.Printf("User %s registered\n", username)
	fmt.Printf("Vault: %s\n", sess.VaultPath)

	OfferToSavePassword(cfg, sess)
}

// LoginCheck verifies the master password and reports the vault size
func LoginCheck(ctx context.Context) {
	m, cfg := openManager()
	defer m.Close()

	username := currentUser()
	sess, source := Login(ctx, m, cfg, username)
	defer m.Logout(sess)

	entries, err := m.LoadVault(ctx, sess)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Logged in as %s (%d entries)\n", username, len(entries))
	if source == SourcePrompt {
		OfferToSavePassword(cfg, sess)
	}
}
