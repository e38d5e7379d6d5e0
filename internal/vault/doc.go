// Package vault persists a user's credential entries as one encrypted file.
//
// The file always holds a single envelope (see package crypto) wrapping the
// JSON array of every entry. There are no per-record ciphertexts: each
// mutation loads the whole vault, changes the in-memory slice and rewrites
// the file through an atomic temp-file rename, so a failed or interrupted
// write leaves the previous envelope in place.
//
// Writes to the same path through one Store are serialized. Separate
// processes writing the same vault are not coordinated and the last writer
// wins.
package vault
