package registry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/illarion/pwvault/internal/session"
	"github.com/illarion/pwvault/internal/storage"
	"github.com/illarion/pwvault/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newRegistry(t *testing.T, opts ...Option) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	r, err := New(dir, vault.New(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, dir
}

func destroyOnCleanup(t *testing.T, sess *session.Session) {
	t.Helper()
	t.Cleanup(sess.Destroy)
}

func TestNewRequiresExistingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), vault.New())
	assert.Error(t, err)
}

func TestRegisterCreatesHashAndEmptyVault(t *testing.T) {
	ctx := context.Background()
	r, dir := newRegistry(t)

	sess, err := r.Register(ctx, "alice", []byte("Str0ng!Pass"))
	require.NoError(t, err)
	destroyOnCleanup(t, sess)

	assert.Equal(t, "alice", sess.Username)
	assert.Equal(t, filepath.Join(r.Dir(), "alice.json"), sess.VaultPath)
	assert.True(t, sess.Authenticated())

	hash, err := os.ReadFile(filepath.Join(dir, "alice_master.hash"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(hash), "$2a$"), "bcrypt hash expected, got %q", hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword(hash, []byte("Str0ng!Pass")))

	info, err := os.Stat(filepath.Join(dir, "alice_master.hash"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := vault.New().Load(ctx, sess.VaultPath, []byte("Str0ng!Pass"))
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.True(t, r.Exists("alice"))
}

func TestAliceEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := vault.New()
	dir := t.TempDir()
	r, err := New(dir, store, WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	defer r.Close()

	sess, err := r.Register(ctx, "alice", []byte("Str0ng!Pass"))
	require.NoError(t, err)

	entry := vault.NewEntry("github.com", "alice", "s3cret")
	require.NoError(t, store.Upsert(ctx, entry, sess.VaultPath, sess.Password()))
	sess.Destroy()

	sess, err = r.Verify(ctx, "alice", []byte("Str0ng!Pass"))
	require.NoError(t, err)
	destroyOnCleanup(t, sess)

	entries, err := store.Load(ctx, sess.VaultPath, sess.Password())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry, entries[0])
}

func TestRegisterDuplicateUser(t *testing.T) {
	ctx := context.Background()
	r, dir := newRegistry(t)

	sess, err := r.Register(ctx, "bob", []byte("first-Passw0rd"))
	require.NoError(t, err)
	sess.Destroy()

	before, err := os.ReadFile(filepath.Join(dir, "bob_master.hash"))
	require.NoError(t, err)

	_, err = r.Register(ctx, "bob", []byte("second-Passw0rd"))
	assert.ErrorIs(t, err, ErrDuplicateUser)

	after, err := os.ReadFile(filepath.Join(dir, "bob_master.hash"))
	require.NoError(t, err)
	assert.Equal(t, before, after, "existing hash artifact must be unchanged")

	sess, err = r.Verify(ctx, "bob", []byte("first-Passw0rd"))
	require.NoError(t, err)
	sess.Destroy()
}

func TestVerifyUnknownUserCreatesNothing(t *testing.T) {
	r, dir := newRegistry(t)

	_, err := r.Verify(context.Background(), "carol", []byte("anything"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = os.Stat(filepath.Join(dir, "carol.json"))
	assert.True(t, os.IsNotExist(err), "no vault file may be created for an unknown user")
	assert.False(t, r.Exists("carol"))
}

func TestVerifyWrongPassword(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)

	sess, err := r.Register(ctx, "alice", []byte("Str0ng!Pass"))
	require.NoError(t, err)
	sess.Destroy()

	_, err = r.Verify(ctx, "alice", []byte("wrong"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = r.Verify(ctx, "alice", nil)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyRejectsEmptyPasswordEvenIfHashMatches(t *testing.T) {
	ctx := context.Background()
	store, err := storage.OpenInitialized(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	defer store.Close()
	r, dir := newRegistry(t, WithAccounts(store))

	// A hand-made artifact for the empty password
	hash, err := bcrypt.GenerateFromPassword([]byte(""), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dave"+HashSuffix), hash, 0600))
	require.NoError(t, store.RecordRegistration("dave", time.Now()))

	for _, password := range [][]byte{nil, {}} {
		sess, err := r.Verify(ctx, "dave", password)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Nil(t, sess)
	}

	_, err = os.Stat(filepath.Join(dir, "dave.json"))
	assert.True(t, os.IsNotExist(err), "no vault may be created on a rejected login")

	account, err := store.GetAccount("dave")
	require.NoError(t, err)
	assert.Equal(t, 0, account.Logins)
	assert.Equal(t, 2, account.FailedLogins)
}

func TestVerifyRecreatesMissingVault(t *testing.T) {
	ctx := context.Background()
	r, dir := newRegistry(t)

	sess, err := r.Register(ctx, "alice", []byte("Str0ng!Pass"))
	require.NoError(t, err)
	sess.Destroy()
	require.NoError(t, os.Remove(filepath.Join(dir, "alice.json")))

	sess, err = r.Verify(ctx, "alice", []byte("Str0ng!Pass"))
	require.NoError(t, err)
	destroyOnCleanup(t, sess)

	entries, err := vault.New().Load(ctx, sess.VaultPath, sess.Password())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.FileExists(t, filepath.Join(dir, "alice.json"))
}

func TestRegisterRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	r, dir := newRegistry(t)

	for _, name := range []string{"", "..", "../alice", "a/b", " alice"} {
		_, err := r.Register(ctx, name, []byte("Str0ng!Pass"))
		assert.ErrorIs(t, err, ErrInvalidUsername, "username %q", name)
	}

	_, err := r.Register(ctx, "alice", nil)
	assert.ErrorIs(t, err, ErrEmptyPassword)

	_, err = r.Register(ctx, "alice", bytes.Repeat([]byte("x"), 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected registrations must not leave files")
}

func TestRegisterWeakPassword(t *testing.T) {
	r, _ := newRegistry(t, WithMinStrength(3))

	_, err := r.Register(context.Background(), "alice", []byte("password"))
	assert.ErrorIs(t, err, ErrWeakPassword)
	assert.False(t, r.Exists("alice"))

	sess, err := r.Register(context.Background(), "alice", []byte("correct-horse-battery-staple-91!"))
	require.NoError(t, err)
	sess.Destroy()
}

func TestRegisterRollsBackOnVaultFailure(t *testing.T) {
	r, dir := newRegistry(t)

	// A non-empty directory where the vault belongs makes the rename fail
	blocker := filepath.Join(dir, "alice.json")
	require.NoError(t, os.Mkdir(blocker, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(blocker, "x"), []byte("x"), 0600))

	_, err := r.Register(context.Background(), "alice", []byte("Str0ng!Pass"))
	assert.ErrorIs(t, err, vault.ErrIO)
	assert.NoFileExists(t, filepath.Join(dir, "alice_master.hash"))
}

func TestRegisterDoesNotWipeCallerPassword(t *testing.T) {
	r, _ := newRegistry(t)
	password := []byte("Str0ng!Pass")

	sess, err := r.Register(context.Background(), "alice", password)
	require.NoError(t, err)
	destroyOnCleanup(t, sess)

	assert.Equal(t, "Str0ng!Pass", string(password))
	assert.Equal(t, "Str0ng!Pass", string(sess.Password()))
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	store := vault.New()
	r, err := New(t.TempDir(), store, WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	defer r.Close()

	sess, err := r.Register(ctx, "alice", []byte("old-Passw0rd"))
	require.NoError(t, err)
	destroyOnCleanup(t, sess)

	entry := vault.NewEntry("github.com", "alice", "s3cret")
	require.NoError(t, store.Upsert(ctx, entry, sess.VaultPath, sess.Password()))

	require.NoError(t, r.ChangePassword(ctx, sess, []byte("new-Passw0rd")))
	assert.Equal(t, "new-Passw0rd", string(sess.Password()))

	_, err = r.Verify(ctx, "alice", []byte("old-Passw0rd"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	fresh, err := r.Verify(ctx, "alice", []byte("new-Passw0rd"))
	require.NoError(t, err)
	defer fresh.Destroy()

	entries, err := store.Load(ctx, fresh.VaultPath, fresh.Password())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry, entries[0])

	_, err = store.Load(ctx, fresh.VaultPath, []byte("old-Passw0rd"))
	assert.ErrorIs(t, err, vault.ErrLoadFailed)
}

func TestChangePasswordRequiresSession(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)

	assert.ErrorIs(t, r.ChangePassword(ctx, nil, []byte("x")), session.ErrNotAuthenticated)

	sess, err := r.Register(ctx, "alice", []byte("Str0ng!Pass"))
	require.NoError(t, err)
	sess.Destroy()
	assert.ErrorIs(t, r.ChangePassword(ctx, sess, []byte("x")), session.ErrNotAuthenticated)
}

func TestAccountsRecorded(t *testing.T) {
	ctx := context.Background()
	accounts, err := storage.OpenInitialized(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	defer accounts.Close()

	r, _ := newRegistry(t, WithAccounts(accounts))

	sess, err := r.Register(ctx, "alice", []byte("Str0ng!Pass"))
	require.NoError(t, err)
	sess.Destroy()

	sess, err = r.Verify(ctx, "alice", []byte("Str0ng!Pass"))
	require.NoError(t, err)
	sess.Destroy()

	_, err = r.Verify(ctx, "alice", []byte("wrong"))
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = r.Verify(ctx, "carol", []byte("wrong"))
	require.ErrorIs(t, err, ErrInvalidCredentials)

	account, err := accounts.GetAccount("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, account.Logins)
	assert.Equal(t, 1, account.FailedLogins)

	_, err = accounts.GetAccount("carol")
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	r, dir := newRegistry(t)

	for _, name := range []string{"carol", "alice"} {
		sess, err := r.Register(ctx, name, []byte("Str0ng!Pass"))
		require.NoError(t, err)
		sess.Destroy()
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))

	users, err := r.Users()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, users)
}
