package authcore

import "fmt"

// Kind classifies an [Error] into the stable failure categories callers are
// expected to branch on. Kinds are coarser than codes: several codes may share
// a kind (for example every token failure maps to [KindInvalidToken]).
type Kind string

const (
	// KindUserNotFound is an error kind reported by authcore operations.
	KindUserNotFound Kind = "UserNotFound"
	// KindInvalidCredentials is an error kind reported by authcore operations.
	KindInvalidCredentials Kind = "InvalidCredentials"
	// KindAccountNotVerified is an error kind reported by authcore operations.
	KindAccountNotVerified Kind = "AccountNotVerified"
	// KindAccountDisabled is an error kind reported by authcore operations.
	KindAccountDisabled Kind = "AccountDisabled"
	// KindInvalidToken is an error kind reported by authcore operations.
	KindInvalidToken Kind = "InvalidToken"
	// KindKeyResolutionFailure is an error kind reported by authcore operations.
	KindKeyResolutionFailure Kind = "KeyResolutionFailure"
	// KindRevocationCheckFailure is an error kind reported by authcore operations.
	KindRevocationCheckFailure Kind = "RevocationCheckFailure"
	// KindDuplicateUser is an error kind reported by authcore operations.
	KindDuplicateUser Kind = "DuplicateUser"
	// KindValidationError is an error kind reported by authcore operations.
	KindValidationError Kind = "ValidationError"
	// KindInternalError is an error kind reported by authcore operations.
	KindInternalError Kind = "InternalError"
)

// Error is the structured error surface of the engine. Callers receive a
// message safe to show to end users, a stable machine code, and a coarse
// kind; the underlying cause (if any) stays reachable through Unwrap for
// diagnostics but is never part of the user-facing message.
type Error struct {
	Message string
	Code    string
	Kind    Kind

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches two Errors by code, so a wrapped sentinel still satisfies
// errors.Is against the bare sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithCause returns a copy of e carrying cause for diagnostics. The copy
// still matches e under errors.Is.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Message: e.Message, Code: e.Code, Kind: e.Kind, cause: cause}
}

var (
	// ErrUserNotFound is returned by token resolution when the subject no
	// longer maps to a registered user. Login never returns it; see
	// ErrInvalidCredentials.
	ErrUserNotFound = &Error{Message: "user is not registered", Code: "ERR_USER_NOT_FOUND", Kind: KindUserNotFound}
	// ErrInvalidCredentials is the single login failure for unknown
	// identifiers and wrong passwords alike, so login responses cannot be
	// used to enumerate accounts.
	ErrInvalidCredentials = &Error{Message: "username or password is invalid", Code: "ERR_INVALID_CREDENTIALS", Kind: KindInvalidCredentials}
	// ErrAccountNotVerified is returned for accounts that never completed
	// activation.
	ErrAccountNotVerified = &Error{Message: "account is not activated", Code: "ERR_ACCOUNT_NOT_VERIFIED", Kind: KindAccountNotVerified}
	// ErrAccountDisabled is returned for accounts flagged as disabled.
	ErrAccountDisabled = &Error{Message: "account is disabled", Code: "ERR_ACCOUNT_DISABLED", Kind: KindAccountDisabled}
	// ErrInvalidToken covers malformed, expired, mis-signed, and
	// claims-mismatched tokens. The wrapped cause preserves the specific
	// classification for logging.
	ErrInvalidToken = &Error{Message: "invalid token", Code: "ERR_INVALID_TOKEN", Kind: KindInvalidToken}
	// ErrTokenRevoked is returned when a structurally valid token has been
	// revoked or logged out.
	ErrTokenRevoked = &Error{Message: "token has been revoked", Code: "ERR_TOKEN_REVOKED", Kind: KindInvalidToken}
	// ErrKeyResolution is returned when a federated signing key cannot be
	// fetched or is absent from the provider key set.
	ErrKeyResolution = &Error{Message: "signing key resolution failed", Code: "ERR_KEY_RESOLUTION", Kind: KindKeyResolutionFailure}
	// ErrRevocationCheck is returned when the injected revocation policy
	// fails or times out.
	ErrRevocationCheck = &Error{Message: "revocation check failed", Code: "ERR_REVOCATION_CHECK", Kind: KindRevocationCheckFailure}
	// ErrDuplicateUser is returned by CreateUser when the username or email
	// is already taken.
	ErrDuplicateUser = &Error{Message: "user or email already existed", Code: "ERR_USR_OR_EML_EXISTED", Kind: KindDuplicateUser}
	// ErrWrongPassword is the one distinguished ChangePassword failure: the
	// supplied old password did not verify.
	ErrWrongPassword = &Error{Message: "wrong password", Code: "ERR_WRONG_PASSWORD", Kind: KindInvalidCredentials}
	// ErrPasswordChangeFailed is the deliberately generic ChangePassword
	// failure for every cause other than a wrong old password.
	ErrPasswordChangeFailed = &Error{Message: "an error occurs while making the request, please contact administrator to get help", Code: "ERR_PASSWORD_CHANGE_FAILED", Kind: KindInternalError}
	// ErrValidation is returned when required operation parameters are
	// missing or malformed.
	ErrValidation = &Error{Message: "parameters validation error", Code: "VALIDATION_ERROR", Kind: KindValidationError}
	// ErrFederationDisabled is returned by federated operations when no
	// provider is configured.
	ErrFederationDisabled = &Error{Message: "federated provider not configured", Code: "ERR_FEDERATION_DISABLED", Kind: KindValidationError}
	// ErrEngineNotReady is returned when an Engine method is called before
	// Build wired its dependencies.
	ErrEngineNotReady = &Error{Message: "engine not initialized", Code: "ERR_ENGINE_NOT_READY", Kind: KindInternalError}
	// ErrInternal is the catch-all for unexpected collaborator failures
	// (record store, cache). The cause is wrapped, never surfaced.
	ErrInternal = &Error{Message: "internal error", Code: "ERR_INTERNAL_ERROR", Kind: KindInternalError}
)
