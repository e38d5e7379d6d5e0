// Package crypto provides cryptographic operations for pwvault.
//
// Key derivation uses PBKDF2-HMAC-SHA256 with:
//   - 16-byte random salt per envelope (stored in the envelope)
//   - 10,000 iterations for unversioned envelopes; this count is not
//     recorded anywhere and must stay fixed
//
// Envelope formats:
//   - Unversioned (default): base64(salt || iv || AES-256-CBC/PKCS#7 ciphertext).
//     There is no integrity tag: a wrong password is detected only through
//     padding validation, and a corrupted ciphertext may decrypt to garbage.
//   - v2: "v2$<iterations>$" + base64(salt || nonce || AES-256-GCM ciphertext || tag).
//     Authenticated, and the iteration count travels with the envelope.
//
// Decrypt recognises both layouts, so vaults move to the configured format
// on their next write.
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call Encryptor.Destroy() when done with encryption operations
package crypto
