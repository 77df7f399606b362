package flows

import "context"

// PasswordMetrics carries metric IDs used by the password-change flow.
type PasswordMetrics struct {
	ChangeSuccess    int
	ChangeInvalidOld int
}

// PasswordEvents carries audit event names used by the password-change flow.
type PasswordEvents struct {
	PasswordChange string
}

// PasswordErrors carries host-level sentinel errors used by the
// password-change flow.
type PasswordErrors struct {
	EngineNotReady error
	WrongPassword  error
	ChangeFailed   error
}

// PasswordDeps captures password-change dependencies.
type PasswordDeps struct {
	Algorithm string

	FindBySubjectID  func(ctx context.Context, subjectID string) (*CredentialRecord, error)
	VerifyPassword   func(password string, record *CredentialRecord) (bool, error)
	GenerateSalt     func() ([]byte, error)
	HashPassword     func(password string, salt []byte) (string, error)
	UpdateCredential func(ctx context.Context, subjectID, hash string, salt []byte, algorithm string) (bool, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, subjectID, orgID string, err error, meta func() map[string]string)

	Metrics PasswordMetrics
	Events  PasswordEvents
	Errors  PasswordErrors
}

// RunChangePassword re-verifies the old password, then replaces hash, salt,
// and algorithm in a single store call so the credential can never hold a
// hash computed under the wrong salt. A failed old-password check is the
// only distinguished error; every other failure collapses into the generic
// ChangeFailed sentinel.
func RunChangePassword(ctx context.Context, subjectID, oldPassword, newPassword string, deps PasswordDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.FindBySubjectID == nil ||
		deps.VerifyPassword == nil ||
		deps.GenerateSalt == nil ||
		deps.HashPassword == nil ||
		deps.UpdateCredential == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(orgID, reason string, err error) error {
		deps.EmitAudit(ctx, deps.Events.PasswordChange, false, subjectID, orgID, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return err
	}

	if subjectID == "" || oldPassword == "" || newPassword == "" {
		return fail("", "empty_input", deps.Errors.ChangeFailed)
	}

	record, err := deps.FindBySubjectID(ctx, subjectID)
	if err != nil {
		return fail("", "store_failure", deps.Errors.ChangeFailed)
	}
	if record == nil {
		return fail("", "user_not_found", deps.Errors.ChangeFailed)
	}

	ok, err := deps.VerifyPassword(oldPassword, record)
	if err != nil {
		return fail(record.OrgID, "verify_failure", deps.Errors.ChangeFailed)
	}
	if !ok {
		deps.MetricInc(deps.Metrics.ChangeInvalidOld)
		return fail(record.OrgID, "wrong_password", deps.Errors.WrongPassword)
	}
	oldPassword = ""

	salt, err := deps.GenerateSalt()
	if err != nil {
		return fail(record.OrgID, "salt_generation", deps.Errors.ChangeFailed)
	}
	hash, err := deps.HashPassword(newPassword, salt)
	if err != nil {
		return fail(record.OrgID, "hash_failure", deps.Errors.ChangeFailed)
	}
	newPassword = ""

	updated, err := deps.UpdateCredential(ctx, subjectID, hash, salt, deps.Algorithm)
	if err != nil || !updated {
		return fail(record.OrgID, "update_failed", deps.Errors.ChangeFailed)
	}

	deps.MetricInc(deps.Metrics.ChangeSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordChange, true, subjectID, record.OrgID, nil, nil)
	return nil
}
