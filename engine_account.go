package authcore

import (
	"context"

	"github.com/google/uuid"

	"github.com/loopwire/authcore/internal/audit"
	"github.com/loopwire/authcore/internal/flows"
	"github.com/loopwire/authcore/password"
)

// NewUser carries the caller-supplied fields for account creation.
type NewUser struct {
	Username string
	Email    string
	Password string
	OrgID    string
}

// CreateUser registers a password credential. Username and email must both
// be unused; a conflict returns [ErrDuplicateUser]. New accounts start
// inactive until activation marks them verified.
func (e *Engine) CreateUser(ctx context.Context, params NewUser) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	record, err := flows.RunCreateUser(ctx, flows.NewUserParams{
		Username: params.Username,
		Email:    params.Email,
		Password: params.Password,
		OrgID:    params.OrgID,
	}, e.accountDeps())
	if err != nil {
		return nil, err
	}
	return &Identity{
		SubjectID:    record.SubjectID,
		Username:     record.Username,
		Email:        record.Email,
		OrgID:        record.OrgID,
		Active:       record.Active,
		Disabled:     record.Disabled,
		RegisteredAt: record.RegisteredAt,
	}, nil
}

// ChangePassword re-verifies the old password and replaces hash, salt, and
// algorithm atomically. A wrong old password returns [ErrWrongPassword];
// every other failure returns the generic [ErrPasswordChangeFailed].
func (e *Engine) ChangePassword(ctx context.Context, subjectID, oldPassword, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunChangePassword(ctx, subjectID, oldPassword, newPassword, e.passwordDeps())
}

func (e *Engine) accountDeps() flows.AccountDeps {
	return flows.AccountDeps{
		Algorithm:             string(password.AlgorithmArgon2id),
		FindByLoginIdentifier: e.findByLoginIdentifier,
		NewSubjectID:          uuid.NewString,
		GenerateSalt:          e.hasher.GenerateSalt,
		HashPassword:          e.hashDefault,
		InsertCredential:      e.insertCredential,
		WrapInternal:          wrapInternal,
		MetricInc:             e.metricInc,
		EmitAudit:             e.emitAudit,
		Metrics: flows.AccountMetrics{
			CreationSuccess:   int(MetricAccountCreationSuccess),
			CreationDuplicate: int(MetricAccountCreationDuplicate),
		},
		Events: flows.AccountEvents{AccountCreate: audit.EventAccountCreate},
		Errors: flows.AccountErrors{
			EngineNotReady: ErrEngineNotReady,
			DuplicateUser:  ErrDuplicateUser,
			Validation:     ErrValidation,
		},
	}
}

func (e *Engine) passwordDeps() flows.PasswordDeps {
	return flows.PasswordDeps{
		Algorithm:        string(password.AlgorithmArgon2id),
		FindBySubjectID:  e.findBySubjectID,
		VerifyPassword:   e.verifyRecordPassword,
		GenerateSalt:     e.hasher.GenerateSalt,
		HashPassword:     e.hashDefault,
		UpdateCredential: e.updateCredential,
		MetricInc:        e.metricInc,
		EmitAudit:        e.emitAudit,
		Metrics: flows.PasswordMetrics{
			ChangeSuccess:    int(MetricPasswordChangeSuccess),
			ChangeInvalidOld: int(MetricPasswordChangeInvalidOld),
		},
		Events: flows.PasswordEvents{PasswordChange: audit.EventPasswordChange},
		Errors: flows.PasswordErrors{
			EngineNotReady: ErrEngineNotReady,
			WrongPassword:  ErrWrongPassword,
			ChangeFailed:   ErrPasswordChangeFailed,
		},
	}
}

func (e *Engine) hashDefault(plaintext string, salt []byte) (string, error) {
	return e.hasher.Hash(plaintext, salt, password.AlgorithmArgon2id)
}

func (e *Engine) updateCredential(ctx context.Context, subjectID, hash string, salt []byte, algorithm string) (bool, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	return e.credentials.UpdateCredential(sctx, subjectID, CredentialUpdate{
		PasswordHash: hash,
		Salt:         salt,
		Algorithm:    algorithm,
	})
}
