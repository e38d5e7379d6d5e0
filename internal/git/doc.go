// Package git checks whether vault artifacts are exposed to git.
//
// Checks performed:
//   - Whether the users directory is inside a git work tree
//   - Whether hash or vault files are tracked by git (should not be)
//   - Whether hash or vault files are in .gitignore (should be)
//
// Vault files are encrypted, but committing them publishes material for
// offline guessing of the master password.
package git
