package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/illarion/pwvault/internal/core"
	"github.com/illarion/pwvault/internal/crypto"
	"github.com/illarion/pwvault/internal/vault"
)

var errEmptySecret = errors.New("entry password is empty")

// SetOptions are the fields given to the set command. Empty fields keep
// the current value when an existing entry is updated.
type SetOptions struct {
	ID      string
	Service string
	Login   string
	Reveal  bool
}

// Set adds an entry, or updates the entry named by opts.ID
func Set(ctx context.Context, opts SetOptions) {
	if opts.ID == "" && strings.TrimSpace(opts.Service) == "" {
		fmt.Println("Usage: pwvault set [--id <id>] --service <name> [--login <username>]")
		Exit(1)
	}

	m, cfg := openManager()
	defer m.Close()

	sess, _ := Login(ctx, m, cfg, currentUser())
	defer m.Logout(sess)

	var old, entry vault.Entry
	if opts.ID != "" {
		entries, err := m.LoadVault(ctx, sess)
		if err != nil {
			HandleError(err)
		}
		old, err = core.MatchEntry(entries, opts.ID)
		if err != nil {
			HandleError(err)
		}
		entry = old
	} else {
		entry = core.NewEntry("", "", "")
	}

	if opts.Service != "" {
		entry.ServiceName = opts.Service
	}
	if opts.Login != "" {
		entry.Username = opts.Login
	}

	secret, err := readSecret(opts.ID != "")
	if err != nil {
		HandleError(err)
	}
	if secret != nil {
		entry.Secret = string(secret)
		crypto.ClearBytes(secret)
	}

	if err := m.UpsertEntry(ctx, entry, sess); err != nil {
		HandleError(err)
	}

	if opts.ID == "" {
		fmt.Printf("Added %s (%s)\n", entry, core.ShortID(entry.ID))
		return
	}

	change := core.DescribeChange(old, entry, opts.Reveal)
	if change == "" {
		fmt.Println("No changes")
		return
	}
	fmt.Printf("Updated %s:\n%s", core.ShortID(entry.ID), change)
}

// readSecret reads the entry password from a confirmed prompt, or one line
// of stdin when it is not a terminal. It returns nil to keep the current
// password when updating and nothing was entered.
func readSecret(updating bool) ([]byte, error) {
	if !core.IsTerminal() {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			if updating {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to read entry password from stdin: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if updating {
				return nil, nil
			}
			return nil, errEmptySecret
		}
		return []byte(line), nil
	}

	prompt := "Entry password: "
	if updating {
		prompt = "New entry password (empty to keep): "
	}
	secret, err := core.ReadPassword(prompt)
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		if updating {
			return nil, nil
		}
		return nil, errEmptySecret
	}

	confirm, err := core.ReadPassword("Confirm entry password: ")
	if err != nil {
		crypto.ClearBytes(secret)
		return nil, err
	}
	defer crypto.ClearBytes(confirm)

	if !crypto.ConstantTimeCompare(secret, confirm) {
		crypto.ClearBytes(secret)
		return nil, core.ErrPasswordMismatch
	}
	return secret, nil
}
