package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/illarion/pwvault/internal/git"
)

// Status shows the users directory and every registered user (no password required)
func Status(ctx context.Context) {
	m, _ := openManager()
	defer m.Close()

	status, err := m.Status(ctx)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Users directory: %s\n", status.Dir)
	if status.Format == "gcm" {
		fmt.Printf("Encryption: AES-256-GCM, PBKDF2-SHA256 (%d iterations)\n", status.Iterations)
	} else {
		fmt.Printf("Encryption: AES-256-CBC, PBKDF2-SHA256 (%d iterations)\n", status.Iterations)
	}
	if status.IndexEnabled {
		fmt.Printf("Account index: enabled (since %s)\n", formatTime(status.IndexCreated))
	} else {
		fmt.Println("Account index: disabled")
	}

	fmt.Println()
	if len(status.Users) == 0 {
		fmt.Println("No users registered")
		fmt.Println("Run 'pwvault -u <name> register' to create one")
	} else {
		fmt.Println("Users:")
		for _, u := range status.Users {
			if !u.VaultExists {
				fmt.Printf("  %s (no vault file)\n", u.Username)
				continue
			}
			fmt.Printf("  %s (%s, %s, modified %s)\n", u.Username, formatSize(u.VaultSize), u.Format, formatTime(u.VaultModified))
			if a := u.Account; a != nil {
				fmt.Printf("      logins: %d, failed: %d, last login: %s\n", a.Logins, a.FailedLogins, formatTime(a.LastLogin))
			}
			if u.ModifiedOutside {
				fmt.Println("      WARNING: vault was changed outside pwvault since its last write")
			}
		}
	}

	if len(status.Orphans) > 0 {
		fmt.Println()
		fmt.Printf("Stale index records (no hash file): %s\n", strings.Join(status.Orphans, ", "))
		fmt.Println("Run 'pwvault compact' to remove them")
	}

	if status.Git != nil {
		fmt.Print(git.FormatStatus(status.Git))
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}

// formatSize formats a file size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
