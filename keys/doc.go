// Package keys loads the RSA key material used to sign and verify locally
// issued tokens.
//
// Key material is read from PEM files once at construction and is immutable
// afterwards, so a Provider is safe to share read-only across all concurrent
// callers. Paths are resolved against a configured root directory when they
// are not absolute, matching how deployments point the engine at mounted
// secrets.
package keys
