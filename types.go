package authcore

import (
	"context"
	"time"

	"github.com/loopwire/authcore/tokencache"
)

// Credential is the stored password-derived material for a subject, plus the
// account flags the login state machine checks. The engine never persists it
// directly; records are owned by the caller's [CredentialStore].
type Credential struct {
	SubjectID   string
	Username    string
	Email       string
	OrgID       string
	FederatedID string

	PasswordHash string
	Salt         []byte
	Algorithm    string

	Active       bool
	Disabled     bool
	RegisteredAt time.Time
}

// CredentialUpdate carries the fields UpdateCredential replaces atomically.
// Hash, salt, and algorithm always travel together so a credential can never
// end up with a hash computed under a different salt or scheme.
type CredentialUpdate struct {
	PasswordHash string
	Salt         []byte
	Algorithm    string
}

// Session links an issued token to the subject and organization it was
// issued for. Created on login, deleted on logout, never mutated.
type Session struct {
	SubjectID string
	Token     string
	OrgID     string
	CreatedAt time.Time
}

// Identity is the narrowed projection returned by token resolution. It never
// carries hash, salt, or any other credential field.
type Identity = tokencache.Identity

// CredentialStore is the record-store contract the engine consumes for
// credential records. Implementations back it with whatever database the
// host application uses; all methods must honor ctx deadlines.
//
// Find methods return (nil, nil) when no record matches. Writes keyed by a
// unique identifier are assumed idempotent on retry.
type CredentialStore interface {
	FindByLoginIdentifier(ctx context.Context, usernameOrEmail string) (*Credential, error)
	FindBySubjectID(ctx context.Context, subjectID string) (*Credential, error)
	FindByFederatedID(ctx context.Context, federatedID string) (*Credential, error)
	InsertCredential(ctx context.Context, record *Credential) (*Credential, error)
	UpdateCredential(ctx context.Context, subjectID string, update CredentialUpdate) (bool, error)
}

// SessionStore is the record-store contract for session records.
// DeleteSession reports whether a record existed; deleting an absent session
// is not an error.
type SessionStore interface {
	InsertSession(ctx context.Context, record *Session) (*Session, error)
	DeleteSession(ctx context.Context, subjectID, token string) (bool, error)
}
