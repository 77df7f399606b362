package flows

import (
	"context"
	"time"

	"github.com/loopwire/authcore/tokencache"
)

// VerifiedToken is the flow-local result of a signature-level verification.
type VerifiedToken struct {
	SubjectID string
	Username  string
	Claims    map[string]any
}

// ResolveMetrics carries metric IDs used by the resolution flow.
type ResolveMetrics struct {
	CacheHit       int
	CacheMiss      int
	ResolveSuccess int
	ResolveFailure int
	TokenRevoked   int
}

// ResolveEvents carries audit event names used by the resolution flow.
type ResolveEvents struct {
	Resolve string
}

// ResolveErrors carries host-level sentinel errors used by the resolution
// flow.
type ResolveErrors struct {
	EngineNotReady     error
	InvalidToken       error
	TokenRevoked       error
	UserNotFound       error
	AccountNotVerified error
	AccountDisabled    error
	RevocationCheck    error
}

// ResolveDeps captures token-resolution dependencies.
type ResolveDeps struct {
	Now func() time.Time

	// CacheGet returns (nil, nil) on a cache miss.
	CacheGet  func(ctx context.Context, token string) (*tokencache.Identity, error)
	CacheSave func(ctx context.Context, token string, identity *tokencache.Identity) error

	// VerifyToken checks the signature and registered claims; the returned
	// error is already classified into a host sentinel.
	VerifyToken func(ctx context.Context, token string) (*VerifiedToken, error)

	CheckDenied     func(ctx context.Context, token string) (bool, error)
	CheckRevoked    func(ctx context.Context, subjectID string, claims map[string]any) (bool, error)
	FindBySubjectID func(ctx context.Context, subjectID string) (*CredentialRecord, error)
	WrapInternal    func(error) error

	MetricInc func(int)
	Observe   func(time.Duration)
	EmitAudit func(ctx context.Context, event string, success bool, subjectID, orgID string, err error, meta func() map[string]string)
	Warn      func(format string, args ...any)

	Metrics ResolveMetrics
	Events  ResolveEvents
	Errors  ResolveErrors
}

// RunResolve turns a bearer token into an identity projection.
//
// A cache hit short-circuits everything: the entry was written by a full
// verification and is purged by logout and revocation before those calls
// return, so serving it cannot resurrect an invalidated token. On a miss
// the flow verifies the signature, consults the deny list and the
// revocation policy, loads the credential record, re-checks the account
// flags, and caches the projection.
func RunResolve(ctx context.Context, token string, deps ResolveDeps) (*tokencache.Identity, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.Observe == nil {
		deps.Observe = func(time.Duration) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.WrapInternal == nil {
		deps.WrapInternal = func(err error) error { return err }
	}
	if deps.VerifyToken == nil || deps.FindBySubjectID == nil {
		return nil, deps.Errors.EngineNotReady
	}

	start := deps.Now()
	defer func() {
		deps.Observe(deps.Now().Sub(start))
	}()

	if token == "" {
		deps.MetricInc(deps.Metrics.ResolveFailure)
		return nil, deps.Errors.InvalidToken
	}

	if deps.CacheGet != nil {
		cached, err := deps.CacheGet(ctx, token)
		if err != nil {
			deps.Warn("resolution cache read failed: %v", err)
		}
		if cached != nil {
			deps.MetricInc(deps.Metrics.CacheHit)
			deps.MetricInc(deps.Metrics.ResolveSuccess)
			return cached, nil
		}
		deps.MetricInc(deps.Metrics.CacheMiss)
	}

	fail := func(subjectID, reason string, err error) (*tokencache.Identity, error) {
		deps.MetricInc(deps.Metrics.ResolveFailure)
		deps.EmitAudit(ctx, deps.Events.Resolve, false, subjectID, "", err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return nil, err
	}

	verified, err := deps.VerifyToken(ctx, token)
	if err != nil {
		return fail("", "verification_failed", err)
	}

	if deps.CheckDenied != nil {
		denied, err := deps.CheckDenied(ctx, token)
		if err != nil {
			return fail(verified.SubjectID, "deny_list_failure", deps.WrapInternal(err))
		}
		if denied {
			deps.MetricInc(deps.Metrics.TokenRevoked)
			return fail(verified.SubjectID, "token_revoked", deps.Errors.TokenRevoked)
		}
	}

	if deps.CheckRevoked != nil {
		revoked, err := deps.CheckRevoked(ctx, verified.SubjectID, verified.Claims)
		if err != nil {
			return fail(verified.SubjectID, "revocation_check_failed", deps.Errors.RevocationCheck)
		}
		if revoked {
			deps.MetricInc(deps.Metrics.TokenRevoked)
			return fail(verified.SubjectID, "token_revoked", deps.Errors.TokenRevoked)
		}
	}

	record, err := deps.FindBySubjectID(ctx, verified.SubjectID)
	if err != nil {
		return fail(verified.SubjectID, "store_failure", deps.WrapInternal(err))
	}
	if record == nil {
		return fail(verified.SubjectID, "user_not_found", deps.Errors.UserNotFound)
	}
	if !record.Active {
		return fail(record.SubjectID, "account_not_verified", deps.Errors.AccountNotVerified)
	}
	if record.Disabled {
		return fail(record.SubjectID, "account_disabled", deps.Errors.AccountDisabled)
	}

	identity := &tokencache.Identity{
		SubjectID:    record.SubjectID,
		Username:     record.Username,
		Email:        record.Email,
		OrgID:        record.OrgID,
		Active:       record.Active,
		Disabled:     record.Disabled,
		RegisteredAt: record.RegisteredAt,
	}

	if deps.CacheSave != nil {
		if err := deps.CacheSave(ctx, token, identity); err != nil {
			deps.Warn("resolution cache write failed: %v", err)
		}
	}

	deps.MetricInc(deps.Metrics.ResolveSuccess)
	deps.EmitAudit(ctx, deps.Events.Resolve, true, record.SubjectID, record.OrgID, nil, nil)
	return identity, nil
}
