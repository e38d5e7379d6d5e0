package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/illarion/pwvault/internal/config"
	"github.com/illarion/pwvault/internal/core"
	"github.com/illarion/pwvault/internal/crypto"
	"github.com/illarion/pwvault/internal/keyring"
	"github.com/illarion/pwvault/internal/registry"
	"github.com/illarion/pwvault/internal/security"
	"github.com/illarion/pwvault/internal/session"
	"github.com/illarion/pwvault/internal/vault"
)

// UserEnv names the default user for every command
const UserEnv = "PWVAULT_USER"

// PasswordSource describes where a master password came from
type PasswordSource int

const (
	SourcePrompt PasswordSource = iota
	SourceEnv
	SourceKeyring
)

// Globals are the options given before the command name
type Globals struct {
	User       string
	ConfigPath string
	Verbose    bool
}

var globals Globals

// Configure sets the global options for the following command
func Configure(g Globals) {
	globals = g
}

// Exit wipes protected memory and exits
func Exit(code int) {
	memguard.Purge()
	os.Exit(code)
}

// loadConfig loads the configuration or exits
func loadConfig() config.Config {
	cfg, err := config.Load(globals.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		Exit(1)
	}
	if globals.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg
}

// openManager opens the configured users directory or exits
func openManager() (*core.Manager, config.Config) {
	cfg := loadConfig()
	log := cfg.Logger(os.Stderr)

	m, err := core.New(cfg.UsersDir, core.Options{
		Engine:      cfg.Engine(),
		BcryptCost:  cfg.BcryptCost,
		MinStrength: cfg.MinStrength,
		Index:       cfg.Index,
		Logger:      &log,
	})
	if err != nil {
		HandleError(err)
	}
	return m, cfg
}

// currentUser returns the user from -u or PWVAULT_USER, or exits
func currentUser() string {
	user := globals.User
	if user == "" {
		user = os.Getenv(UserEnv)
	}
	if user == "" {
		fmt.Fprintf(os.Stderr, "Error: no user given\n")
		fmt.Fprintf(os.Stderr, "Use -u <name> or set %s\n", UserEnv)
		Exit(1)
	}
	if err := security.ValidateUsername(user); err != nil {
		HandleError(err)
	}
	return user
}

// GetPassword retrieves password from environment or prompts user
// The caller is responsible for calling crypto.ClearBytes on the returned password
func GetPassword(prompt string) ([]byte, PasswordSource, error) {
	// Try environment variable first
	if password := core.GetPasswordFromEnv(); password != nil {
		return password, SourceEnv, nil
	}

	// Prompt user
	password, err := core.ReadPassword(prompt)
	if err != nil {
		return nil, SourcePrompt, err
	}
	return password, SourcePrompt, nil
}

// GetNewPassword retrieves a new master password from a confirmed prompt,
// or from PWVAULT_PASSWORD when fromEnv is set, and reports its estimated
// strength.
func GetNewPassword(prompt, username string, fromEnv bool) ([]byte, error) {
	var password []byte
	if fromEnv {
		password = core.GetPasswordFromEnv()
	}
	if password == nil {
		var err error
		password, err = core.ReadPasswordConfirm(prompt)
		if err != nil {
			return nil, err
		}
	}

	if len(password) > 0 {
		s := security.EstimateStrength(password, username)
		fmt.Fprintf(os.Stderr, "Password strength: %s (crack time: %s)\n", s.Label(), s.CrackTime)
	}
	return password, nil
}

// Login verifies the user's master password. The password is taken from
// PWVAULT_PASSWORD, the OS keyring, or a prompt, in that order. A keyring
// password that no longer matches is removed and the user is prompted once.
func Login(ctx context.Context, m *core.Manager, cfg config.Config, username string) (*session.Session, PasswordSource) {
	if password := core.GetPasswordFromEnv(); password != nil {
		defer crypto.ClearBytes(password)
		sess, err := m.Verify(ctx, username, password)
		if err != nil {
			HandleError(err)
		}
		return sess, SourceEnv
	}

	if cfg.Keyring {
		if password, err := keyring.GetPassword(username); err == nil {
			sess, err := m.Verify(ctx, username, password)
			crypto.ClearBytes(password)
			if err == nil {
				return sess, SourceKeyring
			}
			if !errors.Is(err, registry.ErrInvalidCredentials) {
				HandleError(err)
			}
			fmt.Fprintln(os.Stderr, "warning: password in keyring is out of date, removing it")
			keyring.DeletePassword(username)
		}
	}

	password, err := core.ReadPassword(fmt.Sprintf("Master password for %s: ", username))
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	sess, err := m.Verify(ctx, username, password)
	if err != nil {
		HandleError(err)
	}
	return sess, SourcePrompt
}

// OfferToSavePassword asks to cache the session's password in the OS keyring
func OfferToSavePassword(cfg config.Config, sess *session.Session) {
	if !cfg.Keyring || !core.IsTerminal() || keyring.HasPassword(sess.Username) {
		return
	}
	if !Confirm("Save password to OS keyring?") {
		return
	}
	err := sess.WithPassword(func(password []byte) error {
		return keyring.SavePassword(sess.Username, password)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to save to keyring: %s\n", err)
		return
	}
	fmt.Println("Password saved to keyring")
}

// Confirm asks a yes/no question on the terminal, defaulting to no
func Confirm(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// HandleError handles common errors consistently
func HandleError(err error) {
	switch {
	case errors.Is(err, registry.ErrInvalidCredentials):
		fmt.Fprintf(os.Stderr, "Error: invalid username or password\n")
	case errors.Is(err, registry.ErrDuplicateUser):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Use 'pwvault login' to open the existing vault\n")
	case errors.Is(err, registry.ErrInvalidUsername):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	case errors.Is(err, registry.ErrWeakPassword):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Choose a longer password or lower minStrength in the config\n")
	case errors.Is(err, vault.ErrLoadFailed):
		fmt.Fprintf(os.Stderr, "Error: vault could not be opened (corrupt file or wrong password)\n")
	case errors.Is(err, vault.ErrNotFound), errors.Is(err, core.ErrAmbiguousID):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Use 'pwvault list' to see entry ids\n")
	case errors.Is(err, core.ErrNotAuthenticated):
		fmt.Fprintf(os.Stderr, "Error: not logged in\n")
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(os.Stderr, "Error: interrupted\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	Exit(1)
}
