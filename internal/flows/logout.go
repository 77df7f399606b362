package flows

import "context"

// LogoutMetrics carries metric IDs used by the logout flow.
type LogoutMetrics struct {
	Logout int
}

// LogoutEvents carries audit event names used by the logout flow.
type LogoutEvents struct {
	Logout string
}

// LogoutErrors carries host-level sentinel errors used by the logout flow.
type LogoutErrors struct {
	EngineNotReady error
}

// LogoutDeps captures logout dependencies. RevokeToken is optional; when
// nil, logout relies on cache purge plus session deletion alone.
type LogoutDeps struct {
	PurgeCache    func(ctx context.Context, token string) error
	DeleteSession func(ctx context.Context, subjectID, token string) (bool, error)
	RevokeToken   func(ctx context.Context, subjectID, token string) error
	WrapInternal  func(error) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, subjectID, orgID string, err error, meta func() map[string]string)

	Metrics LogoutMetrics
	Events  LogoutEvents
	Errors  LogoutErrors
}

// RunLogout invalidates a session. The resolution cache entry is purged
// before anything else so the token can never be served from cache after
// this call returns. Logging out an already-absent session succeeds.
func RunLogout(ctx context.Context, subjectID, token string, deps LogoutDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.WrapInternal == nil {
		deps.WrapInternal = func(err error) error { return err }
	}
	if deps.PurgeCache == nil || deps.DeleteSession == nil {
		return deps.Errors.EngineNotReady
	}

	if err := deps.PurgeCache(ctx, token); err != nil {
		deps.EmitAudit(ctx, deps.Events.Logout, false, subjectID, "", err, func() map[string]string {
			return map[string]string{"reason": "cache_purge_failed"}
		})
		return deps.WrapInternal(err)
	}

	existed, err := deps.DeleteSession(ctx, subjectID, token)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.Logout, false, subjectID, "", err, func() map[string]string {
			return map[string]string{"reason": "session_delete_failed"}
		})
		return deps.WrapInternal(err)
	}

	if deps.RevokeToken != nil {
		if err := deps.RevokeToken(ctx, subjectID, token); err != nil {
			deps.EmitAudit(ctx, deps.Events.Logout, false, subjectID, "", err, func() map[string]string {
				return map[string]string{"reason": "revoke_failed"}
			})
			return deps.WrapInternal(err)
		}
	}

	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, subjectID, "", nil, func() map[string]string {
		if existed {
			return nil
		}
		return map[string]string{"note": "session_already_absent"}
	})
	return nil
}
