package flows

import (
	"context"
	"time"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Token     string
	SubjectID string
	Username  string
	OrgID     string
}

// LoginMetrics carries metric IDs used by the login flows.
type LoginMetrics struct {
	LoginSuccess   int
	LoginFailure   int
	SessionCreated int
}

// LoginEvents carries audit event names used by the login flows.
type LoginEvents struct {
	Login string
}

// LoginErrors carries host-level sentinel errors used by the login flows.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	AccountNotVerified error
	AccountDisabled    error
}

// LoginDeps captures password-login dependencies.
type LoginDeps struct {
	Now func() time.Time

	FindByLoginIdentifier func(context.Context, string) (*CredentialRecord, error)
	VerifyPassword        func(password string, record *CredentialRecord) (bool, error)
	IssueToken            func(record *CredentialRecord) (string, error)
	SaveSession           func(ctx context.Context, record *CredentialRecord, token string) error
	WrapInternal          func(error) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, subjectID, orgID string, err error, meta func() map[string]string)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin executes the password login state machine: credential lookup,
// activation check, disabled check, password verification, token issuance,
// session persistence. The order is fixed; an account's flags are reported
// before its password is ever compared.
func RunLogin(ctx context.Context, identifier, password string, deps LoginDeps) (*LoginResult, error) {
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
		deps.VerifyPassword == nil ||
		deps.IssueToken == nil ||
		deps.SaveSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(subjectID, orgID, reason string, err error) (*LoginResult, error) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.Login, false, subjectID, orgID, err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     reason,
			}
		})
		return nil, err
	}

	if identifier == "" || password == "" {
		return fail("", "", "empty_input", deps.Errors.InvalidCredentials)
	}

	record, err := deps.FindByLoginIdentifier(ctx, identifier)
	if err != nil {
		return fail("", "", "store_failure", deps.WrapInternal(err))
	}
	if record == nil {
		// Reported as invalid credentials so responses cannot be used to
		// enumerate accounts; the audit reason keeps the distinction.
		return fail("", "", "user_not_found", deps.Errors.InvalidCredentials)
	}
	if !record.Active {
		return fail(record.SubjectID, record.OrgID, "account_not_verified", deps.Errors.AccountNotVerified)
	}
	if record.Disabled {
		return fail(record.SubjectID, record.OrgID, "account_disabled", deps.Errors.AccountDisabled)
	}

	ok, err := deps.VerifyPassword(password, record)
	if err != nil {
		return fail(record.SubjectID, record.OrgID, "verify_failure", deps.WrapInternal(err))
	}
	if !ok {
		return fail(record.SubjectID, record.OrgID, "password_mismatch", deps.Errors.InvalidCredentials)
	}
	password = ""

	token, err := deps.IssueToken(record)
	if err != nil {
		return fail(record.SubjectID, record.OrgID, "token_issuance", deps.WrapInternal(err))
	}

	if err := deps.SaveSession(ctx, record, token); err != nil {
		return fail(record.SubjectID, record.OrgID, "session_save_failed", deps.WrapInternal(err))
	}

	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.Login, true, record.SubjectID, record.OrgID, nil, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
		}
	})

	return &LoginResult{
		Token:     token,
		SubjectID: record.SubjectID,
		Username:  record.Username,
		OrgID:     record.OrgID,
	}, nil
}
