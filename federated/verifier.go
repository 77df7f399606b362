package federated

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/loopwire/authcore/jwks"
)

var (
	// ErrMalformed is returned for token strings that do not decode.
	ErrMalformed = errors.New("federated token malformed")
	// ErrExpired is returned for tokens past their expiry.
	ErrExpired = errors.New("federated token expired")
	// ErrSignature is returned for signature or algorithm failures.
	ErrSignature = errors.New("federated token signature mismatch")
	// ErrClaims is returned for issuer/audience mismatches.
	ErrClaims = errors.New("federated token claims mismatch")
)

// Config identifies the trusted provider. SubjectPrefix is the provider's
// subject convention (default "auth0|"); deployments on a different
// provider set their own prefix, or empty to disable stripping.
type Config struct {
	Issuer            string
	Audience          string
	SubjectPrefix     string
	AllowedAlgorithms []string
	Leeway            time.Duration
}

// Claims is the verified projection of a federated token.
type Claims struct {
	// Subject is the raw "sub" claim as issued by the provider.
	Subject string
	// ExternalID is Subject with the configured provider prefix stripped;
	// this is the identifier local user records are keyed by.
	ExternalID string
	// Email is the "email" claim when present.
	Email string
	// ExpiresAt is the "exp" claim.
	ExpiresAt time.Time
	// All retains every claim for diagnostics and policy checks.
	All map[string]any
}

// DecodedToken is an unverified view of a token, exposed so callers can
// inspect the header (key id, algorithm) before verification.
type DecodedToken struct {
	Header map[string]any
	Claims map[string]any
}

// Verifier validates provider tokens using an injected key resolver.
// Stateless apart from the resolver; safe for concurrent use.
type Verifier struct {
	config   Config
	resolver *jwks.Resolver
}

// NewVerifier validates cfg and binds the resolver.
func NewVerifier(cfg Config, resolver *jwks.Resolver) (*Verifier, error) {
	if resolver == nil {
		return nil, errors.New("key resolver required")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("provider issuer and audience required")
	}
	if len(cfg.AllowedAlgorithms) == 0 {
		cfg.AllowedAlgorithms = []string{jwt.SigningMethodRS256.Alg()}
	}
	return &Verifier{config: cfg, resolver: resolver}, nil
}

// Decode parses tokenStr without verifying the signature. Needed to discover
// the key id before the signing key is known; never treat its output as
// authenticated.
func (v *Verifier) Decode(tokenStr string) (*DecodedToken, error) {
	claims := jwt.MapClaims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &DecodedToken{Header: parsed.Header, Claims: claims}, nil
}

// Verify fully validates tokenStr: key resolution by kid, signature,
// algorithm allow-list, issuer, audience, and expiry. Key resolution
// failures propagate wrapped so callers can distinguish them from token
// defects.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods(v.config.AllowedAlgorithms),
		jwt.WithIssuer(v.config.Issuer),
		jwt.WithAudience(v.config.Audience),
		jwt.WithExpirationRequired(),
	}
	if v.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(v.config.Leeway))
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		return v.resolver.ResolveKey(ctx, kid)
	})
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("%w: token not valid", ErrClaims)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrClaims)
	}

	out := &Claims{
		Subject:    sub,
		ExternalID: strings.TrimPrefix(sub, v.config.SubjectPrefix),
		All:        claims,
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if exp, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return out, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwks.ErrFetchFailed), errors.Is(err, jwks.ErrKeyNotFound):
		// Keep the resolver sentinel reachable through the chain.
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrSignature, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return fmt.Errorf("%w: %v", ErrClaims, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
