package revocation

import "context"

// Policy answers whether the token described by claims has been invalidated
// for subjectID. Implementations may call out over the network; they must
// honor ctx deadlines.
type Policy interface {
	IsRevoked(ctx context.Context, subjectID string, claims map[string]any) (bool, error)
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(ctx context.Context, subjectID string, claims map[string]any) (bool, error)

func (f PolicyFunc) IsRevoked(ctx context.Context, subjectID string, claims map[string]any) (bool, error) {
	return f(ctx, subjectID, claims)
}

// NotRevoked is the default policy: no token is ever considered revoked.
var NotRevoked Policy = PolicyFunc(func(context.Context, string, map[string]any) (bool, error) {
	return false, nil
})
