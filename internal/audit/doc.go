// Package audit defines the audit event model and delivery machinery.
//
// Events describe security-relevant outcomes (login, logout, token
// resolution, revocation, credential changes) and carry identifiers only:
// subject id, organization id, correlation id. Passwords, token strings, and
// derived key material must never appear in an event, not even in metadata.
//
// Delivery is asynchronous: the engine emits into a [Dispatcher], which
// forwards to a caller-supplied [Sink] on a dedicated goroutine so a slow
// sink cannot stall an authentication call.
package audit
