package core

import (
	"strings"

	"github.com/illarion/pwvault/internal/vault"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const secretMask = "********"

// DescribeChange renders a line diff between two versions of an entry.
// Secrets are masked unless reveal is set. Returns an empty string if the
// entries are identical.
func DescribeChange(old, updated vault.Entry, reveal bool) string {
	oldText := entryText(old, reveal, false)
	newText := entryText(updated, reveal, old.Secret != updated.Secret)
	if oldText == newText {
		return ""
	}

	dmp := diffmatchpatch.New()

	// Line-mode diff
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var result strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			result.WriteString(prefix)
			result.WriteString(line)
		}
	}
	return result.String()
}

func entryText(e vault.Entry, reveal, secretChanged bool) string {
	secret := e.Secret
	if !reveal {
		secret = secretMask
		if secretChanged {
			secret += " (changed)"
		}
	}

	var b strings.Builder
	b.WriteString("service:  " + e.ServiceName + "\n")
	b.WriteString("username: " + e.Username + "\n")
	b.WriteString("password: " + secret + "\n")
	return b.String()
}
