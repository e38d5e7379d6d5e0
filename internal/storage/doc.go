// Package storage provides the BBolt account index for pwvault.
//
// Database structure uses three buckets:
//   - config: schema version and creation time
//   - accounts: per-user registration and login activity
//   - vaults: per-user vault file location, size, envelope format and last write
//
// Everything here is unencrypted so that pwvault status works without a
// password. Master passwords, hashes and entry contents are never stored in
// the index; the hash artifact and the vault file stay the source of truth.
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
