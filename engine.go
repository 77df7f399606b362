package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/loopwire/authcore/federated"
	"github.com/loopwire/authcore/internal/audit"
	"github.com/loopwire/authcore/internal/flows"
	"github.com/loopwire/authcore/jwks"
	"github.com/loopwire/authcore/keys"
	"github.com/loopwire/authcore/password"
	"github.com/loopwire/authcore/revocation"
	"github.com/loopwire/authcore/token"
	"github.com/loopwire/authcore/tokencache"
)

// Engine is the authentication core facade. Build one with [New] and share
// it; all methods are safe for concurrent use.
type Engine struct {
	config Config

	keys        *keys.Provider
	tokens      *token.Service
	hasher      *password.Hasher
	keyResolver *jwks.Resolver
	federation  *federated.Verifier

	credentials CredentialStore
	sessions    SessionStore
	cache       *tokencache.Store
	denyList    *revocation.DenyList
	policy      revocation.Policy

	audit   *audit.Dispatcher
	metrics *Metrics
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token     string
	SubjectID string
	Username  string
	OrgID     string
}

// Login authenticates a username-or-email identifier against its stored
// credential and issues a session token. Unknown identifiers and wrong
// passwords both return [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, identifier, plaintext string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	res, err := flows.RunLogin(ctx, identifier, plaintext, e.loginDeps())
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

// Logout invalidates the session for token. The resolution cache entry is
// purged before the session record is deleted, so the token cannot resolve
// from cache afterwards. Logging out an already-absent session succeeds.
func (e *Engine) Logout(ctx context.Context, subjectID, tokenStr string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunLogout(ctx, subjectID, tokenStr, e.logoutDeps())
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	e.audit.Close()
	return nil
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters and
// histograms for exporters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) loginDeps() flows.LoginDeps {
	return flows.LoginDeps{
		FindByLoginIdentifier: e.findByLoginIdentifier,
		VerifyPassword:        e.verifyRecordPassword,
		IssueToken:            e.issueRecordToken,
		SaveSession:           e.saveSession,
		WrapInternal:          wrapInternal,
		MetricInc:             e.metricInc,
		EmitAudit:             e.emitAudit,
		Metrics: flows.LoginMetrics{
			LoginSuccess:   int(MetricLoginSuccess),
			LoginFailure:   int(MetricLoginFailure),
			SessionCreated: int(MetricSessionCreated),
		},
		Events: flows.LoginEvents{Login: audit.EventLogin},
		Errors: flows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			AccountNotVerified: ErrAccountNotVerified,
			AccountDisabled:    ErrAccountDisabled,
		},
	}
}

func (e *Engine) logoutDeps() flows.LogoutDeps {
	deps := flows.LogoutDeps{
		PurgeCache:    e.cache.Delete,
		DeleteSession: e.deleteSession,
		WrapInternal:  wrapInternal,
		MetricInc:     e.metricInc,
		EmitAudit:     e.emitAudit,
		Metrics:       flows.LogoutMetrics{Logout: int(MetricLogout)},
		Events:        flows.LogoutEvents{Logout: audit.EventLogout},
		Errors:        flows.LogoutErrors{EngineNotReady: ErrEngineNotReady},
	}
	if e.config.Revocation.RevokeOnLogout {
		deps.RevokeToken = e.recordRevocation
	}
	return deps
}

// storeCtx bounds a record-store call with the configured timeout.
func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.Store.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.config.Store.Timeout)
}

func (e *Engine) findByLoginIdentifier(ctx context.Context, identifier string) (*flows.CredentialRecord, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	record, err := e.credentials.FindByLoginIdentifier(sctx, identifier)
	if err != nil {
		return nil, err
	}
	return toFlowRecord(record), nil
}

func (e *Engine) findBySubjectID(ctx context.Context, subjectID string) (*flows.CredentialRecord, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	record, err := e.credentials.FindBySubjectID(sctx, subjectID)
	if err != nil {
		return nil, err
	}
	return toFlowRecord(record), nil
}

func (e *Engine) verifyRecordPassword(plaintext string, record *flows.CredentialRecord) (bool, error) {
	return e.hasher.Verify(plaintext, record.Salt, password.Algorithm(record.Algorithm), record.PasswordHash)
}

func (e *Engine) issueRecordToken(record *flows.CredentialRecord) (string, error) {
	return e.tokens.Issue(token.Subject{
		SubjectID: record.SubjectID,
		Username:  record.Username,
	}, e.config.Token.TTL)
}

func (e *Engine) saveSession(ctx context.Context, record *flows.CredentialRecord, tokenStr string) error {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	_, err := e.sessions.InsertSession(sctx, &Session{
		SubjectID: record.SubjectID,
		Token:     tokenStr,
		OrgID:     record.OrgID,
		CreatedAt: time.Now().UTC(),
	})
	return err
}

func (e *Engine) deleteSession(ctx context.Context, subjectID, tokenStr string) (bool, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	return e.sessions.DeleteSession(sctx, subjectID, tokenStr)
}

// recordRevocation puts the token on the deny list for its remaining
// lifetime. Tokens that no longer verify get the full configured TTL, which
// only over-protects.
func (e *Engine) recordRevocation(ctx context.Context, subjectID, tokenStr string) error {
	ttl := e.config.Token.TTL
	if claims, err := e.tokens.Verify(tokenStr); err == nil && claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}
	return e.denyList.Add(ctx, subjectID, tokenStr, ttl)
}

func (e *Engine) metricInc(id int) {
	e.metrics.Inc(MetricID(id))
}

func (e *Engine) observeResolve(d time.Duration) {
	e.metrics.Observe(MetricResolveLatency, d)
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	orgID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}
	if orgID == "" {
		orgID = orgIDFromContext(ctx)
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := audit.Event{
		Timestamp:     time.Now().UTC(),
		EventType:     eventType,
		SubjectID:     subjectID,
		OrgID:         orgID,
		CorrelationID: correlationIDFromContext(ctx),
		Success:       success,
		Metadata:      metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = code
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrAccountNotVerified):
		return "account_unverified"
	case errors.Is(err, ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, ErrTokenRevoked):
		return "token_revoked"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrKeyResolution):
		return "key_resolution_failed"
	case errors.Is(err, ErrRevocationCheck):
		return "revocation_check_failed"
	case errors.Is(err, ErrDuplicateUser):
		return "duplicate"
	case errors.Is(err, ErrWrongPassword):
		return "wrong_password"
	case errors.Is(err, ErrPasswordChangeFailed):
		return "password_change_failed"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrFederationDisabled):
		return "federation_disabled"
	default:
		return "internal_error"
	}
}

func wrapInternal(err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return ErrInternal.WithCause(err)
}

func toFlowRecord(record *Credential) *flows.CredentialRecord {
	if record == nil {
		return nil
	}
	return &flows.CredentialRecord{
		SubjectID:    record.SubjectID,
		Username:     record.Username,
		Email:        record.Email,
		OrgID:        record.OrgID,
		FederatedID:  record.FederatedID,
		PasswordHash: record.PasswordHash,
		Salt:         record.Salt,
		Algorithm:    record.Algorithm,
		Active:       record.Active,
		Disabled:     record.Disabled,
		RegisteredAt: record.RegisteredAt,
	}
}

func fromFlowRecord(record *flows.CredentialRecord) *Credential {
	if record == nil {
		return nil
	}
	return &Credential{
		SubjectID:    record.SubjectID,
		Username:     record.Username,
		Email:        record.Email,
		OrgID:        record.OrgID,
		FederatedID:  record.FederatedID,
		PasswordHash: record.PasswordHash,
		Salt:         record.Salt,
		Algorithm:    record.Algorithm,
		Active:       record.Active,
		Disabled:     record.Disabled,
		RegisteredAt: record.RegisteredAt,
	}
}
