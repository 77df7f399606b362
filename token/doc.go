// Package token issues and verifies the engine's self-signed RS256 tokens.
//
// # Design
//
// The issuer/subject/audience triple is deployment configuration baked into
// the [Service] at build time; callers only supply the minimal user identity
// payload and a lifetime. Verification enforces a fixed RS256 allow-list —
// a token carrying any other algorithm is rejected before its signature is
// even considered.
//
// Failures are classified by sentinel ([ErrMalformed], [ErrExpired],
// [ErrSignature], [ErrClaims]) so hosts can log the distinction while still
// treating every one of them as "invalid token" at the API boundary.
package token
