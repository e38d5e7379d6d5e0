package storage

import (
	"time"
)

// Account records activity for a registered user
type Account struct {
	Username     string    `json:"username"`
	Created      time.Time `json:"created"`
	LastLogin    time.Time `json:"lastLogin,omitempty"`
	Logins       int       `json:"logins"`
	FailedLogins int       `json:"failedLogins"`
	LastFailure  time.Time `json:"lastFailure,omitempty"`
}

// VaultInfo describes the last write of a user's vault file
type VaultInfo struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Format   string    `json:"format"`
	Modified time.Time `json:"modified"`
}

func (a *Account) recordLogin(ok bool, at time.Time) {
	if ok {
		a.Logins++
		a.LastLogin = at
		return
	}
	a.FailedLogins++
	a.LastFailure = at
}
