// Package password implements salted password hashing for authcore
// credentials.
//
// # Design
//
// Hashing is split from storage: the caller persists the salt and the
// algorithm tag next to the hash, and every verification recomputes the
// derivation under the recorded algorithm. That keeps old credentials
// verifiable after the default scheme is upgraded — new hashes simply carry
// the new tag.
//
// Two algorithms are supported: argon2id (the default for new credentials)
// and scrypt (accepted as a recorded legacy tag). Both are memory-hard
// derivations from golang.org/x/crypto; a single fast hash is deliberately
// not an option.
//
// # What this package must NOT do
//
//   - Perform I/O beyond reading crypto/rand for salts.
//   - Log, retain, or echo password material.
//   - Compare hashes with anything other than a constant-time comparison.
package password
