package security

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/illarion/pwvault/internal/crypto"
)

const MaxUsernameLength = 64

var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrPathEscapes     = errors.New("path escapes users directory")
	ErrEmptyPath       = errors.New("empty path not allowed")
)

// UsersDir confines every file operation on per-user artifacts to one
// directory using Go's os.Root API, so a crafted username cannot reach
// files outside of it.
type UsersDir struct {
	root *os.Root
	path string
}

// OpenUsersDir opens an existing users directory. Creating the directory is
// left to the caller.
func OpenUsersDir(path string) (*UsersDir, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open users directory: %w", err)
	}

	return &UsersDir{
		root: root,
		path: absPath,
	}, nil
}

// Close releases the directory handle
func (d *UsersDir) Close() error {
	if d.root != nil {
		return d.root.Close()
	}
	return nil
}

// Path returns the absolute directory path
func (d *UsersDir) Path() string {
	return d.path
}

// Join returns the absolute path of a validated file name inside the directory
func (d *UsersDir) Join(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(d.path, name), nil
}

// ValidateUsername rejects names that are empty, too long, contain control
// characters or path separators, or are not a single local path element.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if len(name) > MaxUsernameLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidUsername, MaxUsernameLength)
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: leading or trailing whitespace", ErrInvalidUsername)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character", ErrInvalidUsername)
		}
	}
	if err := validateName(name); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUsername, err)
	}
	return nil
}

// validateName accepts only a single local path element
func validateName(name string) error {
	if name == "" {
		return ErrEmptyPath
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}
	if !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}
	return nil
}

// ReadFile reads a file inside the directory
func (d *UsersDir) ReadFile(name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return d.root.ReadFile(name)
}

// Exists reports whether name exists inside the directory
func (d *UsersDir) Exists(name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, fmt.Errorf("invalid path: %w", err)
	}
	_, err := d.root.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// CreateExclusive writes a new file and fails with fs.ErrExist when name is
// already present, leaving the existing file untouched.
func (d *UsersDir) CreateExclusive(name string, data []byte, perm os.FileMode) error {
	if err := validateName(name); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	f, err := d.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		d.root.Remove(name)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		d.root.Remove(name)
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		d.root.Remove(name)
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

// WriteFileAtomic replaces name through a temp file and rename inside the directory
func (d *UsersDir) WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	if err := validateName(name); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	suffix, err := crypto.GenerateRandom(8)
	if err != nil {
		return fmt.Errorf("failed to generate temp name: %w", err)
	}
	tmpName := "." + name + "-" + hex.EncodeToString(suffix) + ".tmp"

	f, err := d.root.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		d.root.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		d.root.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		d.root.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := d.root.Rename(tmpName, name); err != nil {
		d.root.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// List returns the names of the regular files in the directory
func (d *UsersDir) List() ([]string, error) {
	f, err := d.root.Open(".")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Remove deletes name inside the directory
func (d *UsersDir) Remove(name string) error {
	if err := validateName(name); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return d.root.Remove(name)
}
