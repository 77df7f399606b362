package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/loopwire/authcore/keys"
)

var (
	// ErrMalformed is returned for token strings that do not parse.
	ErrMalformed = errors.New("token malformed")
	// ErrExpired is returned for tokens past their expiry, regardless of
	// signature validity.
	ErrExpired = errors.New("token expired")
	// ErrSignature is returned when the signature does not verify or the
	// algorithm is outside the allow-list.
	ErrSignature = errors.New("token signature mismatch")
	// ErrClaims is returned when issuer or audience do not match the
	// configured values, or required claims are missing.
	ErrClaims = errors.New("token claims mismatch")
)

// Subject is the minimal user identity embedded in an issued token.
// Extra is an open map for additional payload; absent keys stay absent
// rather than drifting into typed fields silently.
type Subject struct {
	SubjectID string
	Username  string
	Extra     map[string]any
}

// Claims is the decoded form of a verified token.
type Claims struct {
	SubjectID string         `json:"uid"`
	Username  string         `json:"uname,omitempty"`
	Extra     map[string]any `json:"ext,omitempty"`
	jwt.RegisteredClaims
}

// Config fixes the registered claims stamped on every issued token.
type Config struct {
	Issuer   string
	Subject  string
	Audience string
	Leeway   time.Duration
}

// Service signs with the provider's private key and verifies with its
// public key. Immutable after construction.
type Service struct {
	config Config
	keys   *keys.Provider
}

// NewService validates cfg and binds the key provider.
func NewService(cfg Config, kp *keys.Provider) (*Service, error) {
	if kp == nil {
		return nil, errors.New("key provider required")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Service{config: cfg, keys: kp}, nil
}

// Issue signs a token for subject expiring after expiresIn.
func (s *Service) Issue(subject Subject, expiresIn time.Duration) (string, error) {
	if expiresIn <= 0 {
		return "", errors.New("expiry must be in the future")
	}
	priv, err := s.keys.PrivateKey()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := Claims{
		SubjectID: subject.SubjectID,
		Username:  subject.Username,
		Extra:     subject.Extra,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   s.config.Subject,
			Audience:  jwt.ClaimStrings{s.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(priv)
}

// Verify parses and validates tokenStr against the configured issuer,
// audience, expiry, and the RS256 allow-list. The returned error wraps one
// of the package sentinels.
func (s *Service) Verify(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithAudience(s.config.Audience),
		jwt.WithExpirationRequired(),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return s.keys.PublicKey(), nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: claims type", ErrClaims)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
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
