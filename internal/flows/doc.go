// Package flows contains the engine's orchestration logic as pure functions
// over injected dependency sets.
//
// Each flow receives everything it touches — store lookups, hashing, token
// issuance, metrics, audit — as function fields on a Deps struct, so the
// flows know nothing about Redis, RSA keys, or the host application's
// database. The root engine wires real implementations once at build time;
// tests wire fakes per case.
package flows
