package authcore

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/loopwire/authcore/federated"
	"github.com/loopwire/authcore/internal/audit"
	"github.com/loopwire/authcore/jwks"
	"github.com/loopwire/authcore/keys"
	"github.com/loopwire/authcore/password"
	"github.com/loopwire/authcore/revocation"
	"github.com/loopwire/authcore/token"
	"github.com/loopwire/authcore/tokencache"
)

// Builder assembles an Engine. Collect configuration and collaborators with
// the With* methods, then call Build once.
type Builder struct {
	config Config
	redis  *redis.Client

	credentialStore CredentialStore
	sessionStore    SessionStore
	policy          revocation.Policy
	auditSink       AuditSink
	httpClient      *http.Client

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration with a clone of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the resolution cache and the
// revocation deny list. Required.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the caller's credential record store. Required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentialStore = store
	return b
}

// WithSessionStore sets the caller's session record store. Required.
func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessionStore = store
	return b
}

// WithRevocationPolicy replaces the default never-revoked policy.
func (b *Builder) WithRevocationPolicy(policy revocation.Policy) *Builder {
	b.policy = policy
	return b
}

// WithAuditSink sets the sink receiving audit events. Ignored unless
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithHTTPClient overrides the HTTP client used for JWKS fetches.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithMetricsEnabled toggles metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the resolve latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, loads key material, and wires the
// engine. A Builder can build at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.credentialStore == nil {
		return nil, errors.New("credential store required")
	}
	if b.sessionStore == nil {
		return nil, errors.New("session store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	keyProvider, err := keys.NewProvider(keys.Config{
		Root:           cfg.Keys.Root,
		PrivateKeyPath: cfg.Keys.PrivateKeyPath,
		PublicKeyPath:  cfg.Keys.PublicKeyPath,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewService(token.Config{
		Issuer:   cfg.Token.Issuer,
		Subject:  cfg.Token.Subject,
		Audience: cfg.Token.Audience,
		Leeway:   cfg.Token.Leeway,
	}, keyProvider)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cfg,
		keys:        keyProvider,
		tokens:      tokens,
		hasher:      hasher,
		credentials: b.credentialStore,
		sessions:    b.sessionStore,
		cache:       tokencache.New(b.redis, cfg.Cache.RedisPrefix, cfg.Cache.ResolutionTTL),
		denyList:    revocation.NewDenyList(b.redis, cfg.Cache.RedisPrefix),
		policy:      b.policy,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}
	if engine.policy == nil {
		engine.policy = revocation.NotRevoked
	}

	if cfg.Federation.Enabled {
		httpClient := b.httpClient
		if httpClient == nil {
			httpClient = defaultHTTPClient
		}
		resolver, err := jwks.NewResolver(jwks.Config{
			Domain:        cfg.Federation.Domain,
			EndpointURL:   cfg.Federation.EndpointURL,
			CacheCapacity: cfg.Federation.CacheCapacity,
			CacheTTL:      cfg.Federation.CacheTTL,
			FetchTimeout:  cfg.Federation.FetchTimeout,
			HTTPClient:    httpClient,
		})
		if err != nil {
			return nil, err
		}
		verifier, err := federated.NewVerifier(federated.Config{
			Issuer:            cfg.Federation.Issuer,
			Audience:          cfg.Federation.Audience,
			SubjectPrefix:     cfg.Federation.SubjectPrefix,
			AllowedAlgorithms: cfg.Federation.AllowedAlgorithms,
			Leeway:            cfg.Federation.Leeway,
		}, resolver)
		if err != nil {
			return nil, err
		}
		engine.keyResolver = resolver
		engine.federation = verifier
	}

	b.built = true

	return engine, nil
}
