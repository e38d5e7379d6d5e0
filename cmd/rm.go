package cmd

import (
	"context"
	"fmt"

	"github.com/illarion/pwvault/internal/core"
)

// Remove deletes entries from the user's vault
func Remove(ctx context.Context, refs []string) {
	if len(refs) == 0 {
		fmt.Println("Usage: pwvault rm <id> [id...]")
		Exit(1)
	}

	m, cfg := openManager()
	defer m.Close()

	sess, _ := Login(ctx, m, cfg, currentUser())
	defer m.Logout(sess)

	entries, err := m.LoadVault(ctx, sess)
	if err != nil {
		HandleError(err)
	}

	for _, ref := range refs {
		entry, err := core.MatchEntry(entries, ref)
		if err != nil {
			HandleError(err)
		}
		if err := m.DeleteEntry(ctx, entry.ID, sess); err != nil {
			HandleError(err)
		}
		fmt.Printf("Removed %s (%s)\n", entry, core.ShortID(entry.ID))
	}
}
