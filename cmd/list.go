package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/illarion/pwvault/internal/core"
	"github.com/illarion/pwvault/internal/vault"
)

// List shows the entries of the user's vault
func List(ctx context.Context, show bool) {
	m, cfg := openManager()
	defer m.Close()

	sess, _ := Login(ctx, m, cfg, currentUser())
	defer m.Logout(sess)

	entries, err := m.LoadVault(ctx, sess)
	if err != nil {
		HandleError(err)
	}

	if len(entries) == 0 {
		fmt.Println("Vault is empty")
		fmt.Println("Use 'pwvault set --service <name>' to add an entry")
		return
	}

	printEntries(entries, show)
}

func printEntries(entries []vault.Entry, show bool) {
	serviceWidth, userWidth := len("SERVICE"), len("USERNAME")
	for _, e := range entries {
		serviceWidth = max(serviceWidth, len(e.ServiceName))
		userWidth = max(userWidth, len(e.Username))
	}

	header := fmt.Sprintf("%-8s  %-*s  %-*s", "ID", serviceWidth, "SERVICE", userWidth, "USERNAME")
	if show {
		header += "  PASSWORD"
	}
	fmt.Println(strings.TrimRight(header, " "))

	for _, e := range entries {
		line := fmt.Sprintf("%-8s  %-*s  %-*s", core.ShortID(e.ID), serviceWidth, e.ServiceName, userWidth, e.Username)
		if show {
			line += "  " + e.Secret
		}
		fmt.Println(strings.TrimRight(line, " "))
	}
}
