package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/loopwire/authcore/internal/audit"
	"github.com/loopwire/authcore/internal/flows"
	"github.com/loopwire/authcore/jwks"
	"github.com/loopwire/authcore/tokencache"
)

// ResolveToken verifies a locally issued token and returns the identity
// projection for its subject. Resolutions are served from the Redis cache
// when possible; logout and revocation purge the entry, so a cache hit is
// always for a live token.
func (e *Engine) ResolveToken(ctx context.Context, tokenStr string) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return flows.RunResolve(ctx, tokenStr, e.resolveDeps())
}

// ResolveFederatedToken verifies a provider-issued token against the
// federated key set and returns the linked local identity. Subjects with no
// linked account return [ErrUserNotFound].
func (e *Engine) ResolveFederatedToken(ctx context.Context, tokenStr string) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.federation == nil {
		return nil, ErrFederationDisabled
	}
	return flows.RunFederatedResolve(ctx, tokenStr, e.federatedDeps(flows.FederatedMetrics{
		ResolveSuccess: int(MetricFederatedResolveSuccess),
		ResolveFailure: int(MetricFederatedResolveFailure),
	}))
}

// FederatedLogin verifies a provider-issued token, creating the local
// account on first sight, and issues a local session token.
func (e *Engine) FederatedLogin(ctx context.Context, tokenStr string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.federation == nil {
		return nil, ErrFederationDisabled
	}
	res, err := flows.RunFederatedLogin(ctx, tokenStr, e.federatedDeps(flows.FederatedMetrics{
		LoginSuccess:   int(MetricFederatedLoginSuccess),
		LoginFailure:   int(MetricFederatedLoginFailure),
		SessionCreated: int(MetricSessionCreated),
	}))
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:     res.Token,
		SubjectID: res.SubjectID,
		Username:  res.Username,
		OrgID:     res.OrgID,
	}, nil
}

// Revoke invalidates tokenStr ahead of its expiry: the resolution cache
// entry is purged and the token is recorded on the deny list for its
// remaining lifetime. Revoking an already-revoked token succeeds.
func (e *Engine) Revoke(ctx context.Context, subjectID, tokenStr string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if tokenStr == "" {
		return ErrValidation
	}
	if err := e.cache.Delete(ctx, tokenStr); err != nil {
		return ErrInternal.WithCause(err)
	}
	if err := e.recordRevocation(ctx, subjectID, tokenStr); err != nil {
		return ErrInternal.WithCause(err)
	}
	e.emitAudit(ctx, audit.EventRevoke, true, subjectID, "", nil, nil)
	return nil
}

func (e *Engine) resolveDeps() flows.ResolveDeps {
	return flows.ResolveDeps{
		CacheGet:        e.cacheGet,
		CacheSave:       e.cache.Save,
		VerifyToken:     e.verifyLocalToken,
		CheckDenied:     e.denyList.Contains,
		CheckRevoked:    e.checkRevoked,
		FindBySubjectID: e.findBySubjectID,
		WrapInternal:    wrapInternal,
		MetricInc:       e.metricInc,
		Observe:         e.observeResolve,
		EmitAudit:       e.emitAudit,
		Metrics: flows.ResolveMetrics{
			CacheHit:       int(MetricResolveCacheHit),
			CacheMiss:      int(MetricResolveCacheMiss),
			ResolveSuccess: int(MetricResolveSuccess),
			ResolveFailure: int(MetricResolveFailure),
			TokenRevoked:   int(MetricTokenRevoked),
		},
		Events: flows.ResolveEvents{Resolve: audit.EventResolve},
		Errors: flows.ResolveErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidToken:       ErrInvalidToken,
			TokenRevoked:       ErrTokenRevoked,
			UserNotFound:       ErrUserNotFound,
			AccountNotVerified: ErrAccountNotVerified,
			AccountDisabled:    ErrAccountDisabled,
			RevocationCheck:    ErrRevocationCheck,
		},
	}
}

func (e *Engine) federatedDeps(metrics flows.FederatedMetrics) flows.FederatedDeps {
	return flows.FederatedDeps{
		VerifyToken:       e.verifyFederatedToken,
		FindByFederatedID: e.findByFederatedID,
		InsertCredential:  e.insertCredential,
		NewSubjectID:      uuid.NewString,
		IssueToken:        e.issueRecordToken,
		SaveSession:       e.saveSession,
		WrapInternal:      wrapInternal,
		MetricInc:         e.metricInc,
		EmitAudit:         e.emitAudit,
		Metrics:           metrics,
		Events: flows.FederatedEvents{
			Login:   audit.EventFederatedLogin,
			Resolve: audit.EventResolve,
		},
		Errors: flows.FederatedErrors{
			EngineNotReady:     ErrEngineNotReady,
			UserNotFound:       ErrUserNotFound,
			AccountNotVerified: ErrAccountNotVerified,
			AccountDisabled:    ErrAccountDisabled,
		},
	}
}

func (e *Engine) cacheGet(ctx context.Context, tokenStr string) (*tokencache.Identity, error) {
	identity, err := e.cache.Get(ctx, tokenStr)
	if errors.Is(err, tokencache.ErrNotFound) {
		return nil, nil
	}
	return identity, err
}

func (e *Engine) verifyLocalToken(_ context.Context, tokenStr string) (*flows.VerifiedToken, error) {
	claims, err := e.tokens.Verify(tokenStr)
	if err != nil {
		return nil, ErrInvalidToken.WithCause(err)
	}

	claimMap := map[string]any{
		"iss": claims.Issuer,
		"sub": claims.Subject,
		"uid": claims.SubjectID,
	}
	if claims.Username != "" {
		claimMap["uname"] = claims.Username
	}
	if claims.ExpiresAt != nil {
		claimMap["exp"] = claims.ExpiresAt.Unix()
	}
	for k, v := range claims.Extra {
		claimMap[k] = v
	}

	return &flows.VerifiedToken{
		SubjectID: claims.SubjectID,
		Username:  claims.Username,
		Claims:    claimMap,
	}, nil
}

func (e *Engine) verifyFederatedToken(ctx context.Context, tokenStr string) (*flows.FederatedClaims, error) {
	claims, err := e.federation.Verify(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, jwks.ErrFetchFailed) || errors.Is(err, jwks.ErrKeyNotFound) {
			return nil, ErrKeyResolution.WithCause(err)
		}
		return nil, ErrInvalidToken.WithCause(err)
	}
	return &flows.FederatedClaims{
		ExternalID: claims.ExternalID,
		Email:      claims.Email,
		Claims:     claims.All,
	}, nil
}

// checkRevoked consults the injected revocation policy under its own
// timeout so a slow policy backend cannot stall resolution indefinitely.
func (e *Engine) checkRevoked(ctx context.Context, subjectID string, claims map[string]any) (bool, error) {
	if e.config.Revocation.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Revocation.CheckTimeout)
		defer cancel()
	}
	return e.policy.IsRevoked(ctx, subjectID, claims)
}

func (e *Engine) findByFederatedID(ctx context.Context, federatedID string) (*flows.CredentialRecord, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	record, err := e.credentials.FindByFederatedID(sctx, federatedID)
	if err != nil {
		return nil, err
	}
	return toFlowRecord(record), nil
}

func (e *Engine) insertCredential(ctx context.Context, record *flows.CredentialRecord) (*flows.CredentialRecord, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	created, err := e.credentials.InsertCredential(sctx, fromFlowRecord(record))
	if err != nil {
		return nil, err
	}
	if created == nil {
		created = fromFlowRecord(record)
	}
	return toFlowRecord(created), nil
}
