package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/illarion/pwvault/internal/crypto"
	"github.com/illarion/pwvault/internal/registry"
	"github.com/illarion/pwvault/internal/session"
	"github.com/illarion/pwvault/internal/storage"
	"github.com/illarion/pwvault/internal/vault"
	"github.com/rs/zerolog"
)

const (
	DirPermSecure = 0700 // Directory: owner rwx only
	IndexFile     = "accounts.db"
)

var (
	ErrNotAuthenticated = session.ErrNotAuthenticated
	ErrNoIndex          = errors.New("account index not enabled")
)

// Manager is the entry point for front ends. It owns the registry, the
// vault store and the optional account index of one users directory.
type Manager struct {
	registry *registry.Registry
	store    *vault.Store
	accounts *storage.Storage
	log      zerolog.Logger
}

// Options configures a Manager
type Options struct {
	Engine      crypto.Engine
	BcryptCost  int  // zero means registry.DefaultBcryptCost
	MinStrength int  // zxcvbn score required for new master passwords
	Index       bool // keep the account index in the users directory
	Logger      *zerolog.Logger
}

// New opens the users directory at dir, creating it if needed.
func New(dir string, opts Options) (*Manager, error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	if err := os.MkdirAll(dir, DirPermSecure); err != nil {
		return nil, fmt.Errorf("failed to create users directory: %w", err)
	}

	m := &Manager{
		store: vault.New(vault.WithEngine(opts.Engine), vault.WithLogger(log)),
		log:   log,
	}

	if opts.Index {
		accounts, err := storage.OpenInitialized(filepath.Join(dir, IndexFile))
		if err != nil {
			return nil, err
		}
		m.accounts = accounts
	}

	regOpts := []registry.Option{
		registry.WithLogger(log),
		registry.WithMinStrength(opts.MinStrength),
	}
	if opts.BcryptCost != 0 {
		regOpts = append(regOpts, registry.WithBcryptCost(opts.BcryptCost))
	}
	if m.accounts != nil {
		regOpts = append(regOpts, registry.WithAccounts(m.accounts))
	}

	reg, err := registry.New(dir, m.store, regOpts...)
	if err != nil {
		m.Close()
		return nil, err
	}
	m.registry = reg

	return m, nil
}

// Close releases the users directory and the account index
func (m *Manager) Close() error {
	var errs []error
	if m.registry != nil {
		errs = append(errs, m.registry.Close())
	}
	if m.accounts != nil {
		errs = append(errs, m.accounts.Close())
	}
	return errors.Join(errs...)
}

// Dir returns the absolute users directory path
func (m *Manager) Dir() string {
	return m.registry.Dir()
}

// Engine returns the envelope configuration used for writes
func (m *Manager) Engine() crypto.Engine {
	return m.store.Engine()
}

// Exists reports whether username is registered
func (m *Manager) Exists(username string) bool {
	return m.registry.Exists(username)
}

// Register creates a user with an empty vault and returns a session
func (m *Manager) Register(ctx context.Context, username string, password []byte) (*session.Session, error) {
	sess, err := m.registry.Register(ctx, username, password)
	if err != nil {
		return nil, err
	}
	m.recordVault(sess)
	return sess, nil
}

// Verify checks the master password and returns a session
func (m *Manager) Verify(ctx context.Context, username string, password []byte) (*session.Session, error) {
	return m.registry.Verify(ctx, username, password)
}

// LoadVault returns all entries of the session's vault
func (m *Manager) LoadVault(ctx context.Context, sess *session.Session) ([]vault.Entry, error) {
	var entries []vault.Entry
	err := sess.WithPassword(func(password []byte) error {
		var err error
		entries, err = m.store.Load(ctx, sess.VaultPath, password)
		return err
	})
	return entries, err
}

// GetEntry returns one entry of the session's vault
func (m *Manager) GetEntry(ctx context.Context, id uuid.UUID, sess *session.Session) (vault.Entry, error) {
	var entry vault.Entry
	err := sess.WithPassword(func(password []byte) error {
		var err error
		entry, err = m.store.Get(ctx, id, sess.VaultPath, password)
		return err
	})
	return entry, err
}

// UpsertEntry adds entry, or replaces the entry with the same ID
func (m *Manager) UpsertEntry(ctx context.Context, entry vault.Entry, sess *session.Session) error {
	err := sess.WithPassword(func(password []byte) error {
		return m.store.Upsert(ctx, entry, sess.VaultPath, password)
	})
	if err != nil {
		return err
	}
	m.recordVault(sess)
	return nil
}

// DeleteEntry removes the entry with the given ID
func (m *Manager) DeleteEntry(ctx context.Context, id uuid.UUID, sess *session.Session) error {
	err := sess.WithPassword(func(password []byte) error {
		return m.store.Delete(ctx, id, sess.VaultPath, password)
	})
	if err != nil {
		return err
	}
	m.recordVault(sess)
	return nil
}

// ChangePassword re-encrypts the vault and replaces the master password
func (m *Manager) ChangePassword(ctx context.Context, sess *session.Session, newPassword []byte) error {
	if err := m.registry.ChangePassword(ctx, sess, newPassword); err != nil {
		return err
	}
	m.recordVault(sess)
	return nil
}

// Logout wipes the session's password
func (m *Manager) Logout(sess *session.Session) {
	sess.Destroy()
}

// Compact compacts the account index to reclaim unused space
func (m *Manager) Compact() error {
	if m.accounts == nil {
		return ErrNoIndex
	}
	return m.accounts.Compact()
}

// NewEntry creates an entry with a fresh ID
func NewEntry(serviceName, username, secret string) vault.Entry {
	return vault.NewEntry(serviceName, username, secret)
}

// recordVault stores the vault's size and format in the account index
func (m *Manager) recordVault(sess *session.Session) {
	if m.accounts == nil {
		return
	}

	info, format, err := inspectVault(sess.VaultPath)
	if err != nil {
		m.log.Warn().Err(err).Str("user", sess.Username).Msg("failed to inspect vault")
		return
	}

	err = m.accounts.UpdateVault(sess.Username, storage.VaultInfo{
		Path:     sess.VaultPath,
		Size:     info.Size(),
		Format:   format.String(),
		Modified: info.ModTime(),
	})
	if err != nil {
		m.log.Warn().Err(err).Str("user", sess.Username).Msg("account index update failed")
	}
}

// inspectVault reads the file's envelope format without decrypting it
func inspectVault(path string) (os.FileInfo, crypto.Format, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	return info, crypto.DetectFormat(string(data)), nil
}
