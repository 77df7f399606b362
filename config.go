package authcore

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config groups all engine configuration. Treated as immutable after Build;
// the builder clones it so later mutation of the caller's copy has no
// effect.
type Config struct {
	Token      TokenConfig
	Keys       KeysConfig
	Password   PasswordConfig
	Federation FederationConfig
	Revocation RevocationConfig
	Cache      CacheConfig
	Store      StoreConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

// TokenConfig fixes the registered claims stamped on locally issued tokens.
// Issuer, Subject, and Audience are deployment constants, not per-call
// inputs.
type TokenConfig struct {
	Issuer   string
	Subject  string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
}

// KeysConfig names the RSA PEM files. Paths are resolved against Root when
// relative. PrivateKeyPath may be empty for verify-only deployments.
type KeysConfig struct {
	Root           string
	PrivateKeyPath string
	PublicKeyPath  string
}

// PasswordConfig holds the argon2id cost parameters. Memory is in KB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// FederationConfig identifies the trusted external identity provider.
// EndpointURL overrides the well-known URL derived from Domain when set.
type FederationConfig struct {
	Enabled           bool
	Domain            string
	EndpointURL       string
	Issuer            string
	Audience          string
	SubjectPrefix     string
	AllowedAlgorithms []string
	Leeway            time.Duration
	CacheCapacity     int
	CacheTTL          time.Duration
	FetchTimeout      time.Duration
}

// RevocationConfig bounds the injected revocation policy. RevokeOnLogout
// additionally records each logged-out token on the deny list for its
// remaining lifetime.
type RevocationConfig struct {
	CheckTimeout   time.Duration
	RevokeOnLogout bool
}

// CacheConfig controls the Redis-backed token-resolution cache.
type CacheConfig struct {
	RedisPrefix   string
	ResolutionTTL time.Duration
}

// StoreConfig bounds calls into the caller-supplied record stores.
type StoreConfig struct {
	Timeout time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics store.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Federation: FederationConfig{
			SubjectPrefix:     "auth0|",
			AllowedAlgorithms: []string{jwt.SigningMethodRS256.Alg()},
			CacheCapacity:     5,
			CacheTTL:          24 * time.Hour,
			FetchTimeout:      10 * time.Second,
		},
		Revocation: RevocationConfig{
			CheckTimeout: 5 * time.Second,
		},
		Cache: CacheConfig{
			RedisPrefix:   "ac",
			ResolutionTTL: 30 * 24 * time.Hour,
		},
		Store: StoreConfig{
			Timeout: 5 * time.Second,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot run with. Field
// minimums owned by subpackages (password costs, token leeway) are enforced
// again by their constructors.
func (c *Config) Validate() error {
	if c.Token.Issuer == "" || c.Token.Audience == "" {
		return errors.New("token issuer and audience required")
	}
	if c.Token.TTL <= 0 {
		return errors.New("token TTL must be positive")
	}
	if c.Keys.PublicKeyPath == "" {
		return errors.New("public key path required")
	}
	if c.Cache.ResolutionTTL <= 0 {
		return errors.New("resolution cache TTL must be positive")
	}
	if c.Store.Timeout <= 0 {
		return errors.New("store timeout must be positive")
	}
	if c.Federation.Enabled {
		if c.Federation.Domain == "" && c.Federation.EndpointURL == "" {
			return errors.New("federation requires a domain or endpoint URL")
		}
		if c.Federation.Issuer == "" || c.Federation.Audience == "" {
			return errors.New("federation issuer and audience required")
		}
		if c.Revocation.CheckTimeout <= 0 {
			return errors.New("revocation check timeout must be positive")
		}
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Federation.AllowedAlgorithms != nil {
		out.Federation.AllowedAlgorithms = append([]string(nil), cfg.Federation.AllowedAlgorithms...)
	}
	return out
}

// defaultHTTPClient is used for JWKS fetches unless the builder overrides it.
var defaultHTTPClient = &http.Client{Timeout: 15 * time.Second}
