// Package authcore is an embeddable authentication and token core.
//
// It owns credential hashing, RS256 token issue and verification, federated
// token verification against a provider JWKS endpoint, revocation checking,
// and the login/logout/resolve orchestration around them. It deliberately
// does not own user records: callers plug in a [CredentialStore] and a
// [SessionStore] backed by whatever database the host application uses, and
// a Redis client that the engine uses for its token-resolution cache and
// revocation deny list.
//
// Build an engine once and share it:
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(redisClient).
//		WithCredentialStore(credStore).
//		WithSessionStore(sessStore).
//		Build()
//
// All engine methods are safe for concurrent use. Failures surface as
// *[Error] sentinels ([ErrInvalidCredentials], [ErrInvalidToken], ...) that
// callers match with errors.Is; underlying causes stay reachable through
// errors.Unwrap but never leak into user-facing messages.
package authcore
