package flows

import (
	"context"
	"time"
)

// NewUserParams carries the caller-supplied fields for account creation.
type NewUserParams struct {
	Username string
	Email    string
	Password string
	OrgID    string
}

// AccountMetrics carries metric IDs used by the account-creation flow.
type AccountMetrics struct {
	CreationSuccess   int
	CreationDuplicate int
}

// AccountEvents carries audit event names used by the account-creation flow.
type AccountEvents struct {
	AccountCreate string
}

// AccountErrors carries host-level sentinel errors used by the
// account-creation flow.
type AccountErrors struct {
	EngineNotReady error
	DuplicateUser  error
	Validation     error
}

// AccountDeps captures account-creation dependencies.
type AccountDeps struct {
	Algorithm string
	Now       func() time.Time

	FindByLoginIdentifier func(ctx context.Context, identifier string) (*CredentialRecord, error)
	NewSubjectID          func() string
	GenerateSalt          func() ([]byte, error)
	HashPassword          func(password string, salt []byte) (string, error)
	InsertCredential      func(ctx context.Context, record *CredentialRecord) (*CredentialRecord, error)
	WrapInternal          func(error) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, subjectID, orgID string, err error, meta func() map[string]string)

	Metrics AccountMetrics
	Events  AccountEvents
	Errors  AccountErrors
}

// RunCreateUser creates a password credential: duplicate check on both
// username and email, fresh salt, hash, insert. New accounts start inactive
// until verification marks them active.
func RunCreateUser(ctx context.Context, params NewUserParams, deps AccountDeps) (*CredentialRecord, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.WrapInternal == nil {
		deps.WrapInternal = func(err error) error { return err }
	}
	if deps.FindByLoginIdentifier == nil ||
		deps.NewSubjectID == nil ||
		deps.GenerateSalt == nil ||
		deps.HashPassword == nil ||
		deps.InsertCredential == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(reason string, err error) (*CredentialRecord, error) {
		deps.EmitAudit(ctx, deps.Events.AccountCreate, false, "", params.OrgID, err, func() map[string]string {
			return map[string]string{
				"username": params.Username,
				"reason":   reason,
			}
		})
		return nil, err
	}

	if params.Username == "" || params.Email == "" || params.Password == "" {
		return fail("empty_input", deps.Errors.Validation)
	}

	for _, identifier := range []string{params.Username, params.Email} {
		existing, err := deps.FindByLoginIdentifier(ctx, identifier)
		if err != nil {
			return fail("store_failure", deps.WrapInternal(err))
		}
		if existing != nil {
			deps.MetricInc(deps.Metrics.CreationDuplicate)
			return fail("duplicate", deps.Errors.DuplicateUser)
		}
	}

	salt, err := deps.GenerateSalt()
	if err != nil {
		return fail("salt_generation", deps.WrapInternal(err))
	}
	hash, err := deps.HashPassword(params.Password, salt)
	if err != nil {
		return fail("hash_failure", deps.WrapInternal(err))
	}
	params.Password = ""

	record, err := deps.InsertCredential(ctx, &CredentialRecord{
		SubjectID:    deps.NewSubjectID(),
		Username:     params.Username,
		Email:        params.Email,
		OrgID:        params.OrgID,
		PasswordHash: hash,
		Salt:         salt,
		Algorithm:    deps.Algorithm,
		RegisteredAt: deps.Now(),
	})
	if err != nil {
		return fail("insert_failed", deps.WrapInternal(err))
	}

	deps.MetricInc(deps.Metrics.CreationSuccess)
	deps.EmitAudit(ctx, deps.Events.AccountCreate, true, record.SubjectID, record.OrgID, nil, func() map[string]string {
		return map[string]string{"username": record.Username}
	})
	return record, nil
}
