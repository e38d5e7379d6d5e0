package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/illarion/pwvault/internal/crypto"
	"github.com/illarion/pwvault/internal/security"
	"github.com/illarion/pwvault/internal/session"
	"github.com/illarion/pwvault/internal/storage"
	"github.com/illarion/pwvault/internal/vault"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	HashSuffix  = "_master.hash"
	VaultSuffix = ".json"

	DefaultBcryptCost = bcrypt.DefaultCost
	filePerm          = 0600
)

var (
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUsername    = security.ErrInvalidUsername
	ErrEmptyPassword      = errors.New("password is empty")
	ErrPasswordTooLong    = errors.New("password is longer than 72 bytes")
	ErrWeakPassword       = errors.New("password is too weak")
	ErrIO                 = errors.New("registry i/o error")
)

// Registry creates and verifies users in one users directory
type Registry struct {
	dir      *security.UsersDir
	store    *vault.Store
	accounts *storage.Storage
	log      zerolog.Logger

	cost        int
	minStrength int

	dummyOnce sync.Once
	dummyHash []byte
}

// Option configures a Registry
type Option func(*Registry)

// WithBcryptCost sets the cost of new hashes
func WithBcryptCost(cost int) Option {
	return func(r *Registry) {
		r.cost = cost
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// WithAccounts records registrations and logins in the account index
func WithAccounts(accounts *storage.Storage) Option {
	return func(r *Registry) {
		r.accounts = accounts
	}
}

// WithMinStrength rejects new master passwords scoring below score (0-4)
func WithMinStrength(score int) Option {
	return func(r *Registry) {
		r.minStrength = score
	}
}

// New opens the registry over an existing users directory
func New(dir string, store *vault.Store, opts ...Option) (*Registry, error) {
	users, err := security.OpenUsersDir(dir)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		dir:   users,
		store: store,
		log:   zerolog.Nop(),
		cost:  DefaultBcryptCost,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Close releases the users directory
func (r *Registry) Close() error {
	return r.dir.Close()
}

// Dir returns the absolute users directory path
func (r *Registry) Dir() string {
	return r.dir.Path()
}

// Register creates the hash artifact and an empty vault for a new user and
// returns an authenticated session. The password slice is not modified.
func (r *Registry) Register(ctx context.Context, username string, password []byte) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := security.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := r.checkNewPassword(username, password); err != nil {
		return nil, err
	}

	hash, err := r.hash(password)
	if err != nil {
		return nil, err
	}

	hashName := username + HashSuffix
	if err := r.dir.CreateExclusive(hashName, hash, filePerm); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUser, username)
		}
		r.log.Error().Err(err).Str("user", username).Msg("hash write failed")
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	vaultPath, err := r.VaultPath(username)
	if err != nil {
		r.dir.Remove(hashName)
		return nil, err
	}

	// A vault left behind by an earlier user of the same name is replaced
	if err := r.store.Bootstrap(ctx, vaultPath, password); err != nil {
		if rmErr := r.dir.Remove(hashName); rmErr != nil {
			r.log.Error().Err(rmErr).Str("user", username).Msg("failed to roll back hash artifact")
		}
		return nil, err
	}

	r.log.Info().Str("user", username).Msg("user registered")
	if r.accounts != nil {
		if err := r.accounts.RecordRegistration(username, time.Now()); err != nil {
			r.log.Warn().Err(err).Str("user", username).Msg("account index update failed")
		}
	}

	return session.New(username, vaultPath, bytes.Clone(password)), nil
}

// Verify checks the master password and returns an authenticated session.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (r *Registry) Verify(ctx context.Context, username string, password []byte) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := security.ValidateUsername(username); err != nil {
		return nil, err
	}

	if len(password) == 0 {
		// Never a valid master password, whatever the hash artifact holds
		bcrypt.CompareHashAndPassword(r.dummy(), password)
		r.recordLogin(username, false)
		return nil, ErrInvalidCredentials
	}

	if err := r.checkPassword(username, password); err != nil {
		r.recordLogin(username, false)
		return nil, err
	}

	vaultPath, err := r.VaultPath(username)
	if err != nil {
		return nil, err
	}

	ok, err := r.dir.Exists(username + VaultSuffix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if !ok {
		r.log.Warn().Str("user", username).Msg("vault missing, creating empty vault")
		if err := r.store.Bootstrap(ctx, vaultPath, password); err != nil {
			return nil, err
		}
	}

	r.recordLogin(username, true)
	r.log.Debug().Str("user", username).Msg("user verified")
	return session.New(username, vaultPath, bytes.Clone(password)), nil
}

// ChangePassword re-encrypts the session's vault under newPassword and
// replaces the hash artifact. On success the session holds the new password.
func (r *Registry) ChangePassword(ctx context.Context, sess *session.Session, newPassword []byte) error {
	var oldPassword []byte
	err := sess.WithPassword(func(password []byte) error {
		oldPassword = bytes.Clone(password)
		return nil
	})
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(oldPassword)

	if err := r.checkNewPassword(sess.Username, newPassword); err != nil {
		return err
	}

	if err := r.checkPassword(sess.Username, oldPassword); err != nil {
		return err
	}

	hash, err := r.hash(newPassword)
	if err != nil {
		return err
	}

	if err := r.store.Rekey(ctx, sess.VaultPath, oldPassword, newPassword); err != nil {
		return err
	}

	if err := r.dir.WriteFileAtomic(sess.Username+HashSuffix, hash, filePerm); err != nil {
		r.log.Error().Err(err).Str("user", sess.Username).Msg("hash write failed, restoring vault key")
		if rbErr := r.store.Rekey(context.Background(), sess.VaultPath, newPassword, oldPassword); rbErr != nil {
			r.log.Error().Err(rbErr).Str("user", sess.Username).Msg("failed to restore vault key")
		}
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	sess.Replace(bytes.Clone(newPassword))
	r.log.Info().Str("user", sess.Username).Msg("master password changed")
	return nil
}

// Exists reports whether username has a hash artifact
func (r *Registry) Exists(username string) bool {
	if security.ValidateUsername(username) != nil {
		return false
	}
	ok, err := r.dir.Exists(username + HashSuffix)
	return err == nil && ok
}

// Users lists registered usernames in sorted order
func (r *Registry) Users() ([]string, error) {
	names, err := r.dir.List()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	var users []string
	for _, name := range names {
		if user, ok := strings.CutSuffix(name, HashSuffix); ok && security.ValidateUsername(user) == nil {
			users = append(users, user)
		}
	}
	sort.Strings(users)
	return users, nil
}

// VaultPath returns the vault file path for username
func (r *Registry) VaultPath(username string) (string, error) {
	if err := security.ValidateUsername(username); err != nil {
		return "", err
	}
	return r.dir.Join(username + VaultSuffix)
}

func (r *Registry) checkNewPassword(username string, password []byte) error {
	if len(password) == 0 {
		return ErrEmptyPassword
	}
	if r.minStrength > 0 {
		if s := security.EstimateStrength(password, username); s.Score < r.minStrength {
			return fmt.Errorf("%w: %s, estimated crack time %s", ErrWeakPassword, s.Label(), s.CrackTime)
		}
	}
	return nil
}

// checkPassword compares password with the stored hash of username
func (r *Registry) checkPassword(username string, password []byte) error {
	stored, err := r.dir.ReadFile(username + HashSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Spend the same time as a real comparison
			bcrypt.CompareHashAndPassword(r.dummy(), password)
			return ErrInvalidCredentials
		}
		r.log.Error().Err(err).Str("user", username).Msg("hash read failed")
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	err = bcrypt.CompareHashAndPassword(bytes.TrimSpace(stored), password)
	if err == nil {
		return nil
	}
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		r.log.Warn().Err(err).Str("user", username).Msg("hash artifact is unreadable")
	}
	return ErrInvalidCredentials
}

func (r *Registry) hash(password []byte) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword(password, r.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func (r *Registry) dummy() []byte {
	r.dummyOnce.Do(func() {
		r.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("pwvault"), r.cost)
	})
	return r.dummyHash
}

func (r *Registry) recordLogin(username string, ok bool) {
	if r.accounts == nil {
		return
	}
	if err := r.accounts.RecordLogin(username, ok, time.Now()); err != nil {
		r.log.Warn().Err(err).Str("user", username).Msg("account index update failed")
	}
}
