package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Status contains git exposure information for a users directory
type Status struct {
	IsRepo    bool
	Tracked   []string // Artifacts tracked by git (bad)
	Unignored []string // Artifacts not in .gitignore (warning)
	Protected []string // Artifacts untracked and ignored (good)
}

// IsGitRepo checks if the directory is inside a git repository
func IsGitRepo(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	err := cmd.Run()
	return err == nil
}

// IsTracked checks if a file is tracked by git
func IsTracked(dir, path string) bool {
	cmd := exec.Command("git", "ls-files", "--", path)
	cmd.Dir = dir
	output, err := cmd.Output()

	if err != nil {
		return false
	}

	return len(strings.TrimSpace(string(output))) > 0
}

// IsIgnored checks if a file is ignored by git (handles all .gitignore files)
func IsIgnored(dir, path string) bool {
	cmd := exec.Command("git", "check-ignore", "-q", "--", path)
	cmd.Dir = dir

	// git check-ignore returns exit code 0 if file is ignored
	return cmd.Run() == nil
}

// CheckArtifacts checks the given file names, relative to dir
func CheckArtifacts(dir string, files []string) *Status {
	status := &Status{}
	if !IsGitRepo(dir) {
		return status
	}
	status.IsRepo = true

	for _, file := range files {
		switch {
		case IsTracked(dir, file):
			status.Tracked = append(status.Tracked, file)
		case !IsIgnored(dir, file):
			status.Unignored = append(status.Unignored, file)
		default:
			status.Protected = append(status.Protected, file)
		}
	}

	return status
}

// FormatStatus formats git status for display
func FormatStatus(status *Status) string {
	if !status.IsRepo {
		return ""
	}

	var result strings.Builder
	result.WriteString("\nGit:\n")

	if len(status.Tracked) > 0 {
		result.WriteString(fmt.Sprintf("   error: %d vault file(s) tracked by git:\n", len(status.Tracked)))
		for _, file := range status.Tracked {
			result.WriteString(fmt.Sprintf("      - %s (run: git rm --cached %s)\n", file, file))
		}
	}

	for _, file := range status.Unignored {
		result.WriteString(fmt.Sprintf("   warning: %s not in .gitignore\n", file))
	}

	if len(status.Tracked) == 0 && len(status.Unignored) == 0 && len(status.Protected) > 0 {
		result.WriteString(fmt.Sprintf("   ok: %d vault file(s) ignored by git\n", len(status.Protected)))
	}

	return result.String()
}
