// Package federated verifies bearer tokens issued by an external identity
// provider.
//
// A token is first decoded without signature verification to discover its
// key id, then verified against the public key resolved through the jwks
// resolver. Issuer, audience, expiry, and the algorithm allow-list are all
// enforced. The provider's subject convention — a provider prefix in front
// of the real external identifier, such as "auth0|" — is stripped according
// to configuration, not assumption.
package federated
