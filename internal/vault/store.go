package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/illarion/pwvault/internal/crypto"
	"github.com/rs/zerolog"
)

const FilePermSecure = 0600 // File: owner rw only

var (
	ErrInvalidPath  = errors.New("vault path is empty")
	ErrInvalidEntry = errors.New("invalid entry")
	ErrNotFound     = errors.New("entry not found")
	ErrLoadFailed   = errors.New("failed to open vault")
	ErrIO           = errors.New("vault i/o error")
)

// Store reads and rewrites vault files. It keeps no vault state between
// calls; path and password are passed to every operation.
type Store struct {
	engine crypto.Engine
	log    zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Store
type Option func(*Store)

// WithEngine sets the envelope format used for writes
func WithEngine(engine crypto.Engine) Option {
	return func(s *Store) {
		s.engine = engine
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// New creates a Store. Without options it writes unversioned CBC envelopes
// and does not log.
func New(opts ...Option) *Store {
	s := &Store{
		log:   zerolog.Nop(),
		locks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the engine used for writes
func (s *Store) Engine() crypto.Engine {
	return s.engine
}

// Load returns the entries of the vault at path. A vault file that does not
// exist yet is an empty vault, not an error. A vault that cannot be
// decrypted or parsed yields ErrLoadFailed.
func (s *Store) Load(ctx context.Context, path string, password []byte) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, ErrInvalidPath
	}
	return s.read(path, password)
}

// Get returns the entry with the given id
func (s *Store) Get(ctx context.Context, id uuid.UUID, path string, password []byte) (Entry, error) {
	entries, err := s.Load(ctx, path, password)
	if err != nil {
		return Entry{}, err
	}
	if i := indexOf(entries, id); i >= 0 {
		return entries[i], nil
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Upsert replaces the entry with the same id in place, or appends it.
func (s *Store) Upsert(ctx context.Context, entry Entry, path string, password []byte) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	err := s.mutate(ctx, path, password, func(entries []Entry) ([]Entry, error) {
		if i := indexOf(entries, entry.ID); i >= 0 {
			entries[i] = entry
			return entries, nil
		}
		return append(entries, entry), nil
	})
	if err != nil {
		return err
	}

	s.log.Debug().Str("path", path).Str("entry", entry.ID.String()).Msg("entry saved")
	return nil
}

// Delete removes the entry with the given id. ErrNotFound is returned, and
// the file left untouched, when no such entry exists.
func (s *Store) Delete(ctx context.Context, id uuid.UUID, path string, password []byte) error {
	err := s.mutate(ctx, path, password, func(entries []Entry) ([]Entry, error) {
		i := indexOf(entries, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return slices.Delete(entries, i, i+1), nil
	})
	if err != nil {
		return err
	}

	s.log.Debug().Str("path", path).Str("entry", id.String()).Msg("entry deleted")
	return nil
}

// Bootstrap writes an empty vault to path, replacing any existing file
func (s *Store) Bootstrap(ctx context.Context, path string, password []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return ErrInvalidPath
	}

	unlock := s.lock(path)
	defer unlock()

	return s.write(ctx, path, []Entry{}, password)
}

// Rekey re-encrypts the vault at path under newPassword
func (s *Store) Rekey(ctx context.Context, path string, oldPassword, newPassword []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return ErrInvalidPath
	}

	unlock := s.lock(path)
	defer unlock()

	entries, err := s.read(path, oldPassword)
	if err != nil {
		return err
	}
	return s.write(ctx, path, entries, newPassword)
}

// mutate is the single read-modify-write cycle behind every entry change
func (s *Store) mutate(ctx context.Context, path string, password []byte, fn func([]Entry) ([]Entry, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return ErrInvalidPath
	}

	unlock := s.lock(path)
	defer unlock()

	entries, err := s.read(path, password)
	if err != nil {
		return err
	}

	entries, err = fn(entries)
	if err != nil {
		return err
	}

	return s.write(ctx, path, entries, password)
}

func (s *Store) read(path string, password []byte) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Entry{}, nil
		}
		s.log.Error().Err(err).Str("path", path).Msg("vault read failed")
		return nil, fmt.Errorf("%w: %w: %w", ErrLoadFailed, ErrIO, err)
	}

	plain, err := s.engine.Decrypt(string(data), password)
	if err != nil {
		s.log.Debug().Err(err).Str("path", path).Msg("vault decrypt failed")
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	defer crypto.ClearBytes(plain)

	var entries []Entry
	if err := json.Unmarshal(plain, &entries); err != nil {
		s.log.Debug().Str("path", path).Msg("vault payload is not an entry list")
		return nil, fmt.Errorf("%w: failed to parse entries: %w", ErrLoadFailed, err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (s *Store) write(ctx context.Context, path string, entries []Entry, password []byte) error {
	if entries == nil {
		entries = []Entry{}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}
	defer crypto.ClearBytes(data)

	envelope, err := s.engine.Encrypt(data, password)
	if err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("vault encrypt failed")
		return err
	}

	// Last point where the caller can still back out
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := writeFileAtomic(path, []byte(envelope), FilePermSecure); err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("vault write failed")
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// lock serializes rewrites of one vault file within this process
func (s *Store) lock(path string) func() {
	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}

	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
