// Package jwks resolves federated-provider RSA signing keys by key id.
//
// # Design
//
// The resolver owns a small bounded cache (default 5 entries, 24h TTL —
// matching how identity providers rotate keys rarely but not never). A miss
// fetches the provider's published key set over HTTPS, under a bounded
// timeout, and inserts the matching key, evicting the least-recently-fetched
// entry on overflow. Expired entries are refetched lazily on next access,
// never eagerly.
//
// Concurrent misses for the same key id are coalesced through singleflight
// so a burst of verifications cannot fan out into duplicate network fetches.
//
// Each Resolver is an isolated instance with its own cache and HTTP client;
// there is deliberately no process-wide shared resolver.
package jwks
