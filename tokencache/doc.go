// Package tokencache caches resolved token identities in Redis.
//
// Resolving a token is expensive — signature verification plus a record-store
// lookup — and the same bearer token arrives on every request of a session.
// The cache stores the resolved [Identity] keyed by a SHA-256 digest of the
// token string (the raw token never becomes a Redis key) with a bounded TTL.
//
// Logout and revocation delete the entry before touching anything else, so a
// revoked token can never be served from a stale cache hit. Delete is
// idempotent.
package tokencache
