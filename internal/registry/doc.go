// Package registry manages pwvault users.
//
// A user is two files in the users directory:
//   - <name>_master.hash: bcrypt hash of the master password
//   - <name>.json: the encrypted vault
//
// Register creates both, Verify checks a master password against the hash and
// opens a session. The hash artifact is created exclusively, so two
// registrations of the same name cannot both succeed.
package registry
