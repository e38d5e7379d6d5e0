// Package core provides the pwvault operations used by front ends.
//
// Manager ties together:
//   - the user registry (register, verify, change password)
//   - the vault store (load, get, upsert, delete entries)
//   - the optional bbolt account index (login activity, vault metadata)
//
// Every vault operation takes the session returned by Register or Verify and
// fails with ErrNotAuthenticated once the session is logged out.
package core
