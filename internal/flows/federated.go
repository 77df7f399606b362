package flows

import (
	"context"
	"time"

	"github.com/loopwire/authcore/tokencache"
)

// FederatedClaims is the flow-local result of a verified provider token.
// ExternalID already has the provider subject prefix stripped.
type FederatedClaims struct {
	ExternalID string
	Email      string
	Claims     map[string]any
}

// FederatedMetrics carries metric IDs used by the federated flows.
type FederatedMetrics struct {
	LoginSuccess   int
	LoginFailure   int
	ResolveSuccess int
	ResolveFailure int
	SessionCreated int
}

// FederatedEvents carries audit event names used by the federated flows.
type FederatedEvents struct {
	Login   string
	Resolve string
}

// FederatedErrors carries host-level sentinel errors used by the federated
// flows.
type FederatedErrors struct {
	EngineNotReady     error
	UserNotFound       error
	AccountNotVerified error
	AccountDisabled    error
}

// FederatedDeps captures federated verification and sign-up dependencies.
type FederatedDeps struct {
	Now func() time.Time

	// VerifyToken resolves the provider signing key, checks the signature
	// and registered claims, and strips the subject prefix. The returned
	// error is already classified into a host sentinel.
	VerifyToken func(ctx context.Context, token string) (*FederatedClaims, error)

	FindByFederatedID func(ctx context.Context, federatedID string) (*CredentialRecord, error)
	InsertCredential  func(ctx context.Context, record *CredentialRecord) (*CredentialRecord, error)
	NewSubjectID      func() string
	IssueToken        func(record *CredentialRecord) (string, error)
	SaveSession       func(ctx context.Context, record *CredentialRecord, token string) error
	WrapInternal      func(error) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, subjectID, orgID string, err error, meta func() map[string]string)

	Metrics FederatedMetrics
	Events  FederatedEvents
	Errors  FederatedErrors
}

// RunFederatedResolve verifies a provider-issued token and projects the
// linked local account. Unlinked subjects report UserNotFound; callers
// decide whether that triggers sign-up.
func RunFederatedResolve(ctx context.Context, token string, deps FederatedDeps) (*tokencache.Identity, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.WrapInternal == nil {
		deps.WrapInternal = func(err error) error { return err }
	}
	if deps.VerifyToken == nil || deps.FindByFederatedID == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(subjectID, reason string, err error) (*tokencache.Identity, error) {
		deps.MetricInc(deps.Metrics.ResolveFailure)
		deps.EmitAudit(ctx, deps.Events.Resolve, false, subjectID, "", err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return nil, err
	}

	claims, err := deps.VerifyToken(ctx, token)
	if err != nil {
		return fail("", "verification_failed", err)
	}

	record, err := deps.FindByFederatedID(ctx, claims.ExternalID)
	if err != nil {
		return fail("", "store_failure", deps.WrapInternal(err))
	}
	if record == nil {
		return fail("", "user_not_found", deps.Errors.UserNotFound)
	}
	if !record.Active {
		return fail(record.SubjectID, "account_not_verified", deps.Errors.AccountNotVerified)
	}
	if record.Disabled {
		return fail(record.SubjectID, "account_disabled", deps.Errors.AccountDisabled)
	}

	deps.MetricInc(deps.Metrics.ResolveSuccess)
	deps.EmitAudit(ctx, deps.Events.Resolve, true, record.SubjectID, record.OrgID, nil, nil)
	return &tokencache.Identity{
		SubjectID:    record.SubjectID,
		Username:     record.Username,
		Email:        record.Email,
		OrgID:        record.OrgID,
		Active:       record.Active,
		Disabled:     record.Disabled,
		RegisteredAt: record.RegisteredAt,
	}, nil
}

// RunFederatedLogin verifies a provider-issued token, links or creates the
// local account, and issues a local session. Accounts created here carry no
// password material.
func RunFederatedLogin(ctx context.Context, token string, deps FederatedDeps) (*LoginResult, error) {
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
	if deps.VerifyToken == nil ||
		deps.FindByFederatedID == nil ||
		deps.InsertCredential == nil ||
		deps.NewSubjectID == nil ||
		deps.IssueToken == nil ||
		deps.SaveSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(subjectID, reason string, err error) (*LoginResult, error) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.Login, false, subjectID, "", err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return nil, err
	}

	claims, err := deps.VerifyToken(ctx, token)
	if err != nil {
		return fail("", "verification_failed", err)
	}

	record, err := deps.FindByFederatedID(ctx, claims.ExternalID)
	if err != nil {
		return fail("", "store_failure", deps.WrapInternal(err))
	}
	if record == nil {
		username := claims.Email
		if username == "" {
			username = claims.ExternalID
		}
		record, err = deps.InsertCredential(ctx, &CredentialRecord{
			SubjectID:    deps.NewSubjectID(),
			Username:     username,
			Email:        claims.Email,
			FederatedID:  claims.ExternalID,
			Active:       true,
			RegisteredAt: deps.Now(),
		})
		if err != nil {
			return fail("", "signup_failed", deps.WrapInternal(err))
		}
	}
	if !record.Active {
		return fail(record.SubjectID, "account_not_verified", deps.Errors.AccountNotVerified)
	}
	if record.Disabled {
		return fail(record.SubjectID, "account_disabled", deps.Errors.AccountDisabled)
	}

	localToken, err := deps.IssueToken(record)
	if err != nil {
		return fail(record.SubjectID, "token_issuance", deps.WrapInternal(err))
	}
	if err := deps.SaveSession(ctx, record, localToken); err != nil {
		return fail(record.SubjectID, "session_save_failed", deps.WrapInternal(err))
	}

	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.Login, true, record.SubjectID, record.OrgID, nil, func() map[string]string {
		return map[string]string{"federated_id": claims.ExternalID}
	})

	return &LoginResult{
		Token:     localToken,
		SubjectID: record.SubjectID,
		Username:  record.Username,
		OrgID:     record.OrgID,
	}, nil
}
