package core

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/illarion/pwvault/internal/crypto"
	"github.com/illarion/pwvault/internal/git"
	"github.com/illarion/pwvault/internal/registry"
	"github.com/illarion/pwvault/internal/storage"
)

// UserStatus describes one registered user
type UserStatus struct {
	Username      string
	VaultExists   bool
	VaultSize     int64
	VaultModified time.Time
	Format        string
	Account       *storage.Account // nil without index record

	// ModifiedOutside is set when the vault's size or modification time
	// differs from what pwvault last recorded in the index.
	ModifiedOutside bool
}

// StatusInfo contains status information for the users directory
type StatusInfo struct {
	Dir          string
	Format       string // envelope format used for writes
	Iterations   int
	IndexEnabled bool
	IndexCreated time.Time
	Users        []UserStatus
	Orphans      []string // index records whose hash artifact is gone
	Git          *git.Status
}

// Status reports on every registered user (no password required)
func (m *Manager) Status(ctx context.Context) (*StatusInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	engine := m.store.Engine()
	status := &StatusInfo{
		Dir:          m.Dir(),
		Format:       engine.Format.String(),
		Iterations:   crypto.LegacyIterations,
		IndexEnabled: m.accounts != nil,
	}
	if engine.Format == crypto.FormatGCM {
		status.Iterations = engine.Iterations
		if status.Iterations <= 0 {
			status.Iterations = crypto.DefaultIterations
		}
	}

	if m.accounts != nil {
		if created, err := m.accounts.GetCreated(); err == nil {
			status.IndexCreated = created
		}
	}

	users, err := m.registry.Users()
	if err != nil {
		return nil, err
	}

	var artifacts []string
	for _, username := range users {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		us := UserStatus{Username: username}
		artifacts = append(artifacts, username+registry.HashSuffix)

		path, err := m.registry.VaultPath(username)
		if err != nil {
			continue
		}
		info, format, err := inspectVault(path)
		switch {
		case err == nil:
			us.VaultExists = true
			us.VaultSize = info.Size()
			us.VaultModified = info.ModTime()
			us.Format = format.String()
			artifacts = append(artifacts, username+registry.VaultSuffix)
		case !errors.Is(err, fs.ErrNotExist):
			m.log.Warn().Err(err).Str("user", username).Msg("failed to inspect vault")
		}

		if m.accounts != nil {
			account, err := m.accounts.GetAccount(username)
			if err == nil {
				us.Account = account
			} else if !errors.Is(err, storage.ErrAccountNotFound) {
				m.log.Warn().Err(err).Str("user", username).Msg("account index read failed")
			}

			recorded, err := m.accounts.GetVault(username)
			if err != nil {
				m.log.Warn().Err(err).Str("user", username).Msg("account index read failed")
			} else if recorded != nil {
				us.ModifiedOutside = !us.VaultExists ||
					recorded.Size != us.VaultSize ||
					!recorded.Modified.Equal(us.VaultModified)
			}
		}

		status.Users = append(status.Users, us)
	}

	if m.accounts != nil {
		orphans, err := m.orphans()
		if err != nil {
			return nil, err
		}
		status.Orphans = orphans
	}

	if gitStatus := git.CheckArtifacts(status.Dir, artifacts); gitStatus.IsRepo {
		status.Git = gitStatus
	}

	return status, nil
}

// Prune removes index records of users whose hash artifact no longer
// exists and returns their names.
func (m *Manager) Prune(ctx context.Context) ([]string, error) {
	if m.accounts == nil {
		return nil, ErrNoIndex
	}

	orphans, err := m.orphans()
	if err != nil {
		return nil, err
	}
	for _, username := range orphans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.accounts.RemoveAccount(username); err != nil {
			return nil, err
		}
		m.log.Info().Str("user", username).Msg("removed stale index record")
	}
	return orphans, nil
}

func (m *Manager) orphans() ([]string, error) {
	accounts, err := m.accounts.ListAccounts()
	if err != nil {
		return nil, err
	}

	var orphans []string
	for _, a := range accounts {
		if !m.registry.Exists(a.Username) {
			orphans = append(orphans, a.Username)
		}
	}
	return orphans, nil
}
