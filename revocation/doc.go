// Package revocation decides whether a structurally valid token must still
// be rejected.
//
// The decision is split in two. A Redis-backed [DenyList] records individual
// token strings revoked by logout or an explicit revoke call. On top of
// that, an injectable [Policy] lets deployments consult an external
// revocation service; the default policy never revokes. Policy calls are
// expected to be context-bounded by the caller so a slow revocation backend
// cannot stall unrelated verifications.
package revocation
