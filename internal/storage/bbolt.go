package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket   = []byte("config")   // Schema version, timestamps
	AccountsBucket = []byte("accounts") // Per-user login activity
	VaultsBucket   = []byte("vaults")   // Per-user vault file info
)

// Config keys
var (
	ConfigVersion = []byte("version")
	ConfigCreated = []byte("created")
)

const (
	SchemaVersion = "1"
	openTimeout   = 2 * time.Second
)

var ErrAccountNotFound = errors.New("account not found")

// Storage provides the BBolt-based account index
type Storage struct {
	db *bolt.DB
}

// Open opens or creates an account index. It waits briefly for the file
// lock when another process holds the database.
func Open(path string) (*Storage, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Storage{db: db}, nil
}

// OpenInitialized opens the index and makes sure its buckets exist
func OpenInitialized(path string) (*Storage, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Storage) Path() string {
	return s.db.Path()
}

// Initialize creates the bucket structure. Safe to call on an existing index.
func (s *Storage) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, AccountsBucket, VaultsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if config.Get(ConfigVersion) != nil {
			return nil
		}
		if err := config.Put(ConfigVersion, []byte(SchemaVersion)); err != nil {
			return err
		}

		created, _ := time.Now().MarshalBinary()
		return config.Put(ConfigCreated, created)
	})
}

// IsInitialized checks if the database has been initialized
func (s *Storage) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

// GetCreated retrieves the index creation time
func (s *Storage) GetCreated() (time.Time, error) {
	var created time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		data := config.Get(ConfigCreated)
		if data == nil {
			return fmt.Errorf("created time not found")
		}
		return created.UnmarshalBinary(data)
	})
	return created, err
}

// RecordRegistration creates the account record for a new user, replacing
// any stale record with the same name.
func (s *Storage) RecordRegistration(username string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(AccountsBucket), username, Account{
			Username: username,
			Created:  at,
		})
	})
}

// RecordLogin counts a successful or failed login. Unknown users are not
// recorded, so failed guesses cannot grow the index.
func (s *Storage) RecordLogin(username string, ok bool, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(AccountsBucket)
		var account Account
		found, err := getJSON(accounts, username, &account)
		if err != nil {
			return err
		}
		if !found {
			if !ok {
				return nil
			}
			// Registered before the index existed
			account = Account{Username: username, Created: at}
		}
		account.recordLogin(ok, at)
		return putJSON(accounts, username, account)
	})
}

// GetAccount returns the account record for username
func (s *Storage) GetAccount(username string) (*Account, error) {
	var account Account
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(AccountsBucket)
		if accounts == nil {
			return fmt.Errorf("accounts bucket not found")
		}
		var err error
		found, err = getJSON(accounts, username, &account)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

// ListAccounts returns all account records ordered by username
func (s *Storage) ListAccounts() ([]Account, error) {
	var list []Account
	err := s.db.View(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(AccountsBucket)
		if accounts == nil {
			return fmt.Errorf("accounts bucket not found")
		}
		return accounts.ForEach(func(k, v []byte) error {
			var account Account
			if err := json.Unmarshal(v, &account); err != nil {
				return err
			}
			list = append(list, account)
			return nil
		})
	})
	return list, err
}

// UpdateVault stores information about the latest vault write
func (s *Storage) UpdateVault(username string, info VaultInfo) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(VaultsBucket), username, info)
	})
}

// GetVault returns the vault information for username, or nil if none
func (s *Storage) GetVault(username string) (*VaultInfo, error) {
	var info *VaultInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		vaults := tx.Bucket(VaultsBucket)
		if vaults == nil {
			return fmt.Errorf("vaults bucket not found")
		}
		var v VaultInfo
		found, err := getJSON(vaults, username, &v)
		if err != nil || !found {
			return err
		}
		info = &v
		return nil
	})
	return info, err
}

// RemoveAccount deletes all index records for username
func (s *Storage) RemoveAccount(username string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(AccountsBucket).Delete([]byte(username)); err != nil {
			return err
		}
		return tx.Bucket(VaultsBucket).Delete([]byte(username))
	})
}

func putJSON(bucket *bolt.Bucket, key string, v any) error {
	if bucket == nil {
		return fmt.Errorf("bucket not found")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(key), data)
}

func getJSON(bucket *bolt.Bucket, key string, v any) (bool, error) {
	data := bucket.Get([]byte(key))
	if data == nil {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

// Compact creates a compacted copy of the database, removing unused space.
func (s *Storage) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	// Create new database
	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	// Copy all buckets
	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	// Reopen database
	s.db, err = bolt.Open(srcPath, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	return nil
}
