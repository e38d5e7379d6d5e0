package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/illarion/pwvault/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPassword = []byte("Str0ng!Pass")

func newVaultPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "alice.json")
}

func TestLoadMissingVaultIsEmpty(t *testing.T) {
	s := New()

	entries, err := s.Load(context.Background(), newVaultPath(t), testPassword)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := New().Load(context.Background(), "", testPassword)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestUpsertAppendsAndReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := newVaultPath(t)

	first := NewEntry("github.com", "alice", "s3cret")
	second := NewEntry("example.org", "", "hunter2")
	require.NoError(t, s.Upsert(ctx, first, path, testPassword))
	require.NoError(t, s.Upsert(ctx, second, path, testPassword))

	updated := first
	updated.Secret = "rotated"
	require.NoError(t, s.Upsert(ctx, updated, path, testPassword))

	entries, err := s.Load(ctx, path, testPassword)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, updated, entries[0], "replaced entry keeps its position")
	assert.Equal(t, second, entries[1])
}

func TestUpsertSameIDTwiceKeepsOneEntry(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := newVaultPath(t)

	e := NewEntry("github.com", "alice", "one")
	require.NoError(t, s.Upsert(ctx, e, path, testPassword))
	e.Secret = "two"
	e.Username = "alice2"
	require.NoError(t, s.Upsert(ctx, e, path, testPassword))

	entries, err := s.Load(ctx, path, testPassword)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "two", entries[0].Secret)
	assert.Equal(t, "alice2", entries[0].Username)
}

func TestUpsertRejectsInvalidEntries(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := newVaultPath(t)

	err := s.Upsert(ctx, Entry{ServiceName: "x", Secret: "y"}, path, testPassword)
	assert.ErrorIs(t, err, ErrInvalidEntry)

	err = s.Upsert(ctx, NewEntry("  ", "u", "y"), path, testPassword)
	assert.ErrorIs(t, err, ErrInvalidEntry)

	err = s.Upsert(ctx, NewEntry("svc", "u", ""), path, testPassword)
	assert.ErrorIs(t, err, ErrInvalidEntry)

	err = s.Upsert(ctx, NewEntry("svc", "u", "y"), "", testPassword)
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no vault file should be created")
}

func TestDeleteUnknownIDLeavesVaultUntouched(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := newVaultPath(t)

	require.NoError(t, s.Upsert(ctx, NewEntry("github.com", "alice", "s3cret"), path, testPassword))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = s.Delete(ctx, uuid.New(), path, testPassword)
	assert.ErrorIs(t, err, ErrNotFound)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := s.Load(ctx, path, testPassword)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDeleteOnMissingVault(t *testing.T) {
	path := newVaultPath(t)

	err := New().Delete(context.Background(), uuid.New(), path, testPassword)
	assert.ErrorIs(t, err, ErrNotFound)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeleteRemovesEntry(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := newVaultPath(t)

	a := NewEntry("a", "", "1")
	b := NewEntry("b", "", "2")
	c := NewEntry("c", "", "3")
	for _, e := range []Entry{a, b, c} {
		require.NoError(t, s.Upsert(ctx, e, path, testPassword))
	}

	require.NoError(t, s.Delete(ctx, b.ID, path, testPassword))

	entries, err := s.Load(ctx, path, testPassword)
	require.NoError(t, err)
	assert.Equal(t, []Entry{a, c}, entries)
}

func TestWrongPasswordIsLoadFailure(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := newVaultPath(t)

	require.NoError(t, s.Upsert(ctx, NewEntry("github.com", "alice", "s3cret"), path, testPassword))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	entries, err := s.Load(ctx, path, []byte("wrong password"))
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Nil(t, entries)

	err = s.Upsert(ctx, NewEntry("other", "", "x"), path, []byte("wrong password"))
	assert.ErrorIs(t, err, ErrLoadFailed)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed upsert must not modify the vault")
}

func TestLoadRejectsNonEntryPayload(t *testing.T) {
	path := newVaultPath(t)
	env, err := crypto.Encrypt([]byte(`{"not":"a list"}`), testPassword)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(env), 0600))

	_, err = New().Load(context.Background(), path, testPassword)
	assert.ErrorIs(t, err, ErrLoadFailed)
}

func TestLoadNullPayloadIsEmpty(t *testing.T) {
	path := newVaultPath(t)
	env, err := crypto.Encrypt([]byte(`null`), testPassword)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(env), 0600))

	entries, err := New().Load(context.Background(), path, testPassword)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestFileFormat(t *testing.T) {
	ctx := context.Background()
	path := newVaultPath(t)
	e := NewEntry("github.com", "", "s3cret")
	require.NoError(t, New().Upsert(ctx, e, path, testPassword))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	plain, err := crypto.Decrypt(string(raw), testPassword)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(plain, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, e.ID.String(), decoded[0]["id"])
	assert.Equal(t, "github.com", decoded[0]["serviceName"])
	assert.Equal(t, "s3cret", decoded[0]["encryptedPassword"])
	assert.NotContains(t, decoded[0], "username", "empty username is omitted")

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(FilePermSecure), info.Mode().Perm())
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := newVaultPath(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Upsert(ctx, NewEntry(fmt.Sprintf("svc-%d", i), "", "x"), path, testPassword))
	}

	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "alice.json", files[0].Name())
}

func TestWriteIntoMissingDirectoryFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "alice.json")

	err := New().Upsert(context.Background(), NewEntry("svc", "", "x"), path, testPassword)
	assert.ErrorIs(t, err, ErrIO)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := newVaultPath(t)

	err := New().Upsert(ctx, NewEntry("svc", "", "x"), path, testPassword)
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestConcurrentUpsertsAreSerialized(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := newVaultPath(t)

	const writers = 12
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Upsert(ctx, NewEntry(fmt.Sprintf("svc-%d", i), "", "x"), path, testPassword)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries, err := s.Load(ctx, path, testPassword)
	require.NoError(t, err)
	assert.Len(t, entries, writers)
}

func TestGetEntry(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := newVaultPath(t)
	e := NewEntry("github.com", "alice", "s3cret")
	require.NoError(t, s.Upsert(ctx, e, path, testPassword))

	got, err := s.Get(ctx, e.ID, path, testPassword)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = s.Get(ctx, uuid.New(), path, testPassword)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBootstrapWritesEmptyList(t *testing.T) {
	ctx := context.Background()
	path := newVaultPath(t)
	require.NoError(t, New().Bootstrap(ctx, path, testPassword))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	plain, err := crypto.Decrypt(string(raw), testPassword)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(plain))
}

func TestRekey(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := newVaultPath(t)
	e := NewEntry("github.com", "alice", "s3cret")
	require.NoError(t, s.Upsert(ctx, e, path, testPassword))

	newPassword := []byte("An0ther!Pass")
	require.NoError(t, s.Rekey(ctx, path, testPassword, newPassword))

	_, err := s.Load(ctx, path, testPassword)
	assert.ErrorIs(t, err, ErrLoadFailed)

	entries, err := s.Load(ctx, path, newPassword)
	require.NoError(t, err)
	assert.Equal(t, []Entry{e}, entries)

	err = s.Rekey(ctx, path, []byte("nope"), testPassword)
	assert.ErrorIs(t, err, ErrLoadFailed)
}

func TestWritesMigrateToConfiguredFormat(t *testing.T) {
	ctx := context.Background()
	path := newVaultPath(t)
	legacy := New()
	modern := New(WithEngine(crypto.Engine{Format: crypto.FormatGCM, Iterations: 1000}))

	a := NewEntry("a", "", "1")
	require.NoError(t, legacy.Upsert(ctx, a, path, testPassword))

	b := NewEntry("b", "", "2")
	require.NoError(t, modern.Upsert(ctx, b, path, testPassword))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "v2$1000$"))

	// Either store reads both formats
	entries, err := legacy.Load(ctx, path, testPassword)
	require.NoError(t, err)
	assert.Equal(t, []Entry{a, b}, entries)
}

func TestLoadAcceptsLegacyFieldCase(t *testing.T) {
	path := newVaultPath(t)
	id := uuid.New()
	payload := fmt.Sprintf(`[{"Id":%q,"ServiceName":"svc","Username":"u","EncryptedPassword":"p"}]`, id)
	env, err := crypto.Encrypt([]byte(payload), testPassword)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(env), 0600))

	entries, err := New().Load(context.Background(), path, testPassword)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{ID: id, ServiceName: "svc", Username: "u", Secret: "p"}, entries[0])
}
