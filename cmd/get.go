package cmd

import (
	"context"
	"fmt"

	"github.com/illarion/pwvault/internal/core"
)

// Get prints one entry, including its password
func Get(ctx context.Context, ref string, passwordOnly bool) {
	m, cfg := openManager()
	defer m.Close()

	sess, _ := Login(ctx, m, cfg, currentUser())
	defer m.Logout(sess)

	entries, err := m.LoadVault(ctx, sess)
	if err != nil {
		HandleError(err)
	}
	entry, err := core.MatchEntry(entries, ref)
	if err != nil {
		HandleError(err)
	}

	if passwordOnly {
		fmt.Println(entry.Secret)
		return
	}

	fmt.Printf("ID:       %s\n", entry.ID)
	fmt.Printf("Service:  %s\n", entry.ServiceName)
	fmt.Printf("Username: %s\n", entry.Username)
	fmt.Printf("Password: %s\n", entry.Secret)
}
