// Package security confines access to per-user files and rates master
// passwords.
//
// UsersDir wraps an os.Root for the users directory. Every file name is
// checked to be a single local path element before any operation, and the
// os.Root itself refuses to follow paths or symlinks out of the directory.
//
// EstimateStrength wraps zxcvbn for master password feedback at
// registration time.
package security
