package authcore

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/loopwire/authcore/revocation"
)

// memStore is an in-memory CredentialStore plus SessionStore for tests.
type memStore struct {
	mu          sync.Mutex
	bySubject   map[string]*Credential
	byIdent     map[string]*Credential
	byFederated map[string]*Credential
	sessions    map[string]*Session

	credentialErr error
	sessionErr    error
}

func newMemStore() *memStore {
	return &memStore{
		bySubject:   make(map[string]*Credential),
		byIdent:     make(map[string]*Credential),
		byFederated: make(map[string]*Credential),
		sessions:    make(map[string]*Session),
	}
}

func (s *memStore) FindByLoginIdentifier(_ context.Context, identifier string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credentialErr != nil {
		return nil, s.credentialErr
	}
	if c, ok := s.byIdent[identifier]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, nil
}

func (s *memStore) FindBySubjectID(_ context.Context, subjectID string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credentialErr != nil {
		return nil, s.credentialErr
	}
	if c, ok := s.bySubject[subjectID]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, nil
}

func (s *memStore) FindByFederatedID(_ context.Context, federatedID string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credentialErr != nil {
		return nil, s.credentialErr
	}
	if c, ok := s.byFederated[federatedID]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, nil
}

func (s *memStore) InsertCredential(_ context.Context, record *Credential) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credentialErr != nil {
		return nil, s.credentialErr
	}
	clone := *record
	s.bySubject[clone.SubjectID] = &clone
	s.byIdent[clone.Username] = &clone
	if clone.Email != "" {
		s.byIdent[clone.Email] = &clone
	}
	if clone.FederatedID != "" {
		s.byFederated[clone.FederatedID] = &clone
	}
	out := clone
	return &out, nil
}

func (s *memStore) UpdateCredential(_ context.Context, subjectID string, update CredentialUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credentialErr != nil {
		return false, s.credentialErr
	}
	c, ok := s.bySubject[subjectID]
	if !ok {
		return false, nil
	}
	c.PasswordHash = update.PasswordHash
	c.Salt = update.Salt
	c.Algorithm = update.Algorithm
	return true, nil
}

func (s *memStore) InsertSession(_ context.Context, record *Session) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionErr != nil {
		return nil, s.sessionErr
	}
	clone := *record
	s.sessions[clone.Token] = &clone
	return &clone, nil
}

func (s *memStore) DeleteSession(_ context.Context, _ string, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionErr != nil {
		return false, s.sessionErr
	}
	if _, ok := s.sessions[token]; !ok {
		return false, nil
	}
	delete(s.sessions, token)
	return true, nil
}

func (s *memStore) setActive(subjectID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.bySubject[subjectID]; ok {
		c.Active = active
	}
}

func (s *memStore) setDisabled(subjectID string, disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.bySubject[subjectID]; ok {
		c.Disabled = disabled
	}
}

func (s *memStore) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func writeTestKeys(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := os.WriteFile(filepath.Join(dir, "private.pem"), privPEM, 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(filepath.Join(dir, "public.pem"), pubPEM, 0o644); err != nil {
		t.Fatalf("write public key: %v", err)
	}
	return dir
}

func testConfig(t *testing.T) Config {
	cfg := defaultConfig()
	cfg.Token.Issuer = "https://issuer.test"
	cfg.Token.Subject = "session"
	cfg.Token.Audience = "https://api.test"
	cfg.Token.TTL = time.Hour
	cfg.Keys.Root = writeTestKeys(t)
	cfg.Keys.PrivateKeyPath = "private.pem"
	cfg.Keys.PublicKeyPath = "public.pem"
	// Keep hashing cheap for tests; production defaults are far costlier.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type engineFixture struct {
	engine *Engine
	store  *memStore
	redis  *miniredis.Miniredis
}

func newEngineFixture(t *testing.T, mutate func(*Config), opts func(*Builder)) *engineFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}

	store := newMemStore()
	builder := New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(store).
		WithSessionStore(store)
	if opts != nil {
		opts(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	return &engineFixture{engine: engine, store: store, redis: mr}
}

func (f *engineFixture) createActiveUser(t *testing.T, username, email, pass string) *Identity {
	t.Helper()
	identity, err := f.engine.CreateUser(context.Background(), NewUser{
		Username: username,
		Email:    email,
		Password: pass,
		OrgID:    "acme",
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	f.store.setActive(identity.SubjectID, true)
	return identity
}

func TestCreateUserAndLoginLifecycle(t *testing.T) {
	fix := newEngineFixture(t, nil, nil)
	ctx := context.Background()

	identity, err := fix.engine.CreateUser(ctx, NewUser{
		Username: "dana",
		Email:    "dana@example.test",
		Password: "s3cret-pass",
		OrgID:    "acme",
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if identity.Active {
		t.Fatal("new accounts must start inactive")
	}

	// Unverified accounts cannot log in.
	if _, err := fix.engine.Login(ctx, "dana", "s3cret-pass"); !errors.Is(err, ErrAccountNotVerified) {
		t.Fatalf("expected ErrAccountNotVerified, got %v", err)
	}

	fix.store.setActive(identity.SubjectID, true)

	res, err := fix.engine.Login(ctx, "dana", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.SubjectID != identity.SubjectID || res.Token == "" || res.OrgID != "acme" {
		t.Fatalf("unexpected login result %+v", res)
	}
	if fix.store.sessionCount() != 1 {
		t.Fatal("expected a session record")
	}

	// Email works as the identifier too.
	if _, err := fix.engine.Login(ctx, "dana@example.test", "s3cret-pass"); err != nil {
		t.Fatalf("email login failed: %v", err)
	}
}

func TestLoginRejections(t *testing.T) {
	fix := newEngineFixture(t, nil, nil)
	ctx := context.Background()
	identity := fix.createActiveUser(t, "dana", "dana@example.test", "s3cret-pass")

	if _, err := fix.engine.Login(ctx, "dana", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := fix.engine.Login(ctx, "nobody", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	fix.store.setDisabled(identity.SubjectID, true)
	if _, err := fix.engine.Login(ctx, "dana", "s3cret-pass"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	fix := newEngineFixture(t, nil, nil)
	ctx := context.Background()
	fix.createActiveUser(t, "dana", "dana@example.test", "s3cret-pass")

	_, err := fix.engine.CreateUser(ctx, NewUser{
		Username: "dana", Email: "other@example.test", Password: "pw",
	})
	if !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser for taken username, got %v", err)
	}

	_, err = fix.engine.CreateUser(ctx, NewUser{
		Username: "someone", Email: "dana@example.test", Password: "pw",
	})
	if !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser for taken email, got %v", err)
	}

	_, err = fix.engine.CreateUser(ctx, NewUser{Username: "x", Email: "", Password: "pw"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing email, got %v", err)
	}
}

func TestResolveTokenLifecycle(t *testing.T) {
	fix := newEngineFixture(t, func(cfg *Config) {
		cfg.Revocation.RevokeOnLogout = true
	}, nil)
	ctx := context.Background()
	fix.createActiveUser(t, "dana", "dana@example.test", "s3cret-pass")

	res, err := fix.engine.Login(ctx, "dana", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// First resolution verifies and caches; the second is a cache hit.
	for i := 0; i < 2; i++ {
		identity, err := fix.engine.ResolveToken(ctx, res.Token)
		if err != nil {
			t.Fatalf("ResolveToken (pass %d) failed: %v", i+1, err)
		}
		if identity.SubjectID != res.SubjectID || identity.Username != "dana" {
			t.Fatalf("unexpected identity %+v", identity)
		}
		if identity.Email != "dana@example.test" || identity.OrgID != "acme" {
			t.Fatalf("expected projection fields, got %+v", identity)
		}
	}

	snapshot := fix.engine.MetricsSnapshot()
	if snapshot.Counters[MetricResolveCacheMiss] != 1 || snapshot.Counters[MetricResolveCacheHit] != 1 {
		t.Fatalf("expected one miss then one hit, got %+v", snapshot.Counters)
	}

	if err := fix.engine.Logout(ctx, res.SubjectID, res.Token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if fix.store.sessionCount() != 0 {
		t.Fatal("expected session deleted")
	}

	// Post-logout the token is denied, not served from cache.
	if _, err := fix.engine.ResolveToken(ctx, res.Token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after logout, got %v", err)
	}

	// Logout is idempotent.
	if err := fix.engine.Logout(ctx, res.SubjectID, res.Token); err != nil {
		t.Fatalf("repeat Logout failed: %v", err)
	}
}

func TestResolveTokenRejectsGarbage(t *testing.T) {
	fix := newEngineFixture(t, nil, nil)
	ctx := context.Background()

	if _, err := fix.engine.ResolveToken(ctx, "not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := fix.engine.ResolveToken(ctx, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestResolveTokenUserGone(t *testing.T) {
	fix := newEngineFixture(t, nil, nil)
	ctx := context.Background()
	identity := fix.createActiveUser(t, "dana", "dana@example.test", "s3cret-pass")

	res, err := fix.engine.Login(ctx, "dana", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	fix.store.mu.Lock()
	delete(fix.store.bySubject, identity.SubjectID)
	fix.store.mu.Unlock()

	if _, err := fix.engine.ResolveToken(ctx, res.Token); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRevokeInvalidatesToken(t *testing.T) {
	fix := newEngineFixture(t, nil, nil)
	ctx := context.Background()
	fix.createActiveUser(t, "dana", "dana@example.test", "s3cret-pass")

	res, err := fix.engine.Login(ctx, "dana", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := fix.engine.ResolveToken(ctx, res.Token); err != nil {
		t.Fatalf("ResolveToken failed: %v", err)
	}

	if err := fix.engine.Revoke(ctx, res.SubjectID, res.Token); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := fix.engine.ResolveToken(ctx, res.Token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after revoke, got %v", err)
	}

	// Revoking again succeeds.
	if err := fix.engine.Revoke(ctx, res.SubjectID, res.Token); err != nil {
		t.Fatalf("repeat Revoke failed: %v", err)
	}

	if err := fix.engine.Revoke(ctx, res.SubjectID, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty token, got %v", err)
	}
}

func TestRevocationPolicyConsulted(t *testing.T) {
	var policyRevoked bool
	var policyErr error
	policy := revocation.PolicyFunc(func(context.Context, string, map[string]any) (bool, error) {
		return policyRevoked, policyErr
	})

	fix := newEngineFixture(t, nil, func(b *Builder) {
		b.WithRevocationPolicy(policy)
	})
	ctx := context.Background()
	fix.createActiveUser(t, "dana", "dana@example.test", "s3cret-pass")

	res, err := fix.engine.Login(ctx, "dana", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	policyRevoked = true
	if _, err := fix.engine.ResolveToken(ctx, res.Token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked from policy, got %v", err)
	}

	policyRevoked, policyErr = false, errors.New("policy backend down")
	if _, err := fix.engine.ResolveToken(ctx, res.Token); !errors.Is(err, ErrRevocationCheck) {
		t.Fatalf("expected ErrRevocationCheck, got %v", err)
	}
}

func TestChangePasswordLifecycle(t *testing.T) {
	fix := newEngineFixture(t, nil, nil)
	ctx := context.Background()
	identity := fix.createActiveUser(t, "dana", "dana@example.test", "old-pass")

	err := fix.engine.ChangePassword(ctx, identity.SubjectID, "wrong-old", "new-pass")
	if !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}

	if err := fix.engine.ChangePassword(ctx, identity.SubjectID, "old-pass", "new-pass"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := fix.engine.Login(ctx, "dana", "old-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := fix.engine.Login(ctx, "dana", "new-pass"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}

	err = fix.engine.ChangePassword(ctx, "ghost-subject", "old-pass", "new-pass")
	if !errors.Is(err, ErrPasswordChangeFailed) {
		t.Fatalf("expected ErrPasswordChangeFailed for unknown subject, got %v", err)
	}
}

func TestFederationDisabled(t *testing.T) {
	fix := newEngineFixture(t, nil, nil)
	ctx := context.Background()

	if _, err := fix.engine.FederatedLogin(ctx, "provider-token"); !errors.Is(err, ErrFederationDisabled) {
		t.Fatalf("expected ErrFederationDisabled, got %v", err)
	}
	if _, err := fix.engine.ResolveFederatedToken(ctx, "provider-token"); !errors.Is(err, ErrFederationDisabled) {
		t.Fatalf("expected ErrFederationDisabled, got %v", err)
	}
}

func TestAuditEventsEmitted(t *testing.T) {
	sink := NewChannelSink(64)
	fix := newEngineFixture(t, func(cfg *Config) {
		cfg.Audit.Enabled = true
	}, func(b *Builder) {
		b.WithAuditSink(sink)
	})

	ctx := WithCorrelationID(context.Background(), "corr-42")
	fix.createActiveUser(t, "dana", "dana@example.test", "s3cret-pass")

	if _, err := fix.engine.Login(ctx, "dana", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := fix.engine.Login(ctx, "dana", "s3cret-pass"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := fix.engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var events []AuditEvent
	for {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
			continue
		default:
		}
		break
	}

	var sawCreate, sawFailedLogin, sawLogin bool
	for _, ev := range events {
		switch {
		case ev.EventType == "account_create" && ev.Success:
			sawCreate = true
		case ev.EventType == "login" && !ev.Success:
			sawFailedLogin = true
			if ev.Error != "invalid_credentials" {
				t.Fatalf("expected invalid_credentials error code, got %q", ev.Error)
			}
			if ev.Metadata["reason"] != "password_mismatch" {
				t.Fatalf("expected password_mismatch reason, got %v", ev.Metadata)
			}
		case ev.EventType == "login" && ev.Success:
			sawLogin = true
			if ev.CorrelationID != "corr-42" {
				t.Fatalf("expected correlation id propagated, got %q", ev.CorrelationID)
			}
		}
	}
	if !sawCreate || !sawFailedLogin || !sawLogin {
		t.Fatalf("missing expected audit events: create=%v failedLogin=%v login=%v",
			sawCreate, sawFailedLogin, sawLogin)
	}
}

func TestMetricsAccumulate(t *testing.T) {
	fix := newEngineFixture(t, func(cfg *Config) {
		cfg.Metrics.EnableLatencyHistograms = true
	}, nil)
	ctx := context.Background()
	fix.createActiveUser(t, "dana", "dana@example.test", "s3cret-pass")

	if _, err := fix.engine.Login(ctx, "dana", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	res, err := fix.engine.Login(ctx, "dana", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := fix.engine.ResolveToken(ctx, res.Token); err != nil {
		t.Fatalf("ResolveToken failed: %v", err)
	}

	snapshot := fix.engine.MetricsSnapshot()
	if snapshot.Counters[MetricLoginSuccess] != 1 || snapshot.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("unexpected login counters %+v", snapshot.Counters)
	}
	if snapshot.Counters[MetricSessionCreated] != 1 {
		t.Fatalf("expected session counter, got %+v", snapshot.Counters)
	}
	if snapshot.Counters[MetricAccountCreationSuccess] != 1 {
		t.Fatalf("expected account creation counter, got %+v", snapshot.Counters)
	}

	buckets := snapshot.Histograms[MetricResolveLatency]
	var total uint64
	for _, b := range buckets {
		total += b
	}
	if total != 1 {
		t.Fatalf("expected one latency observation, got %v", buckets)
	}
}

func TestBuilderValidation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := newMemStore()
	cfg := testConfig(t)

	t.Run("missing redis", func(t *testing.T) {
		_, err := New().WithConfig(cfg).WithCredentialStore(store).WithSessionStore(store).Build()
		if err == nil {
			t.Fatal("expected build failure without redis")
		}
	})

	t.Run("missing stores", func(t *testing.T) {
		_, err := New().WithConfig(cfg).WithRedis(client).Build()
		if err == nil {
			t.Fatal("expected build failure without stores")
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		bad := cfg
		bad.Token.Issuer = ""
		_, err := New().WithConfig(bad).WithRedis(client).
			WithCredentialStore(store).WithSessionStore(store).Build()
		if err == nil {
			t.Fatal("expected build failure for missing issuer")
		}
	})

	t.Run("single use", func(t *testing.T) {
		b := New().WithConfig(cfg).WithRedis(client).
			WithCredentialStore(store).WithSessionStore(store)
		engine, err := b.Build()
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		t.Cleanup(func() { _ = engine.Close() })
		if _, err := b.Build(); err == nil {
			t.Fatal("expected second Build to fail")
		}
	})
}

func TestNilEngineIsSafe(t *testing.T) {
	var e *Engine
	ctx := context.Background()

	if _, err := e.Login(ctx, "dana", "pw"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if err := e.Logout(ctx, "user-1", "token"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.ResolveToken(ctx, "token"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("nil Close failed: %v", err)
	}
	if e.AuditDropped() != 0 {
		t.Fatal("nil engine reported drops")
	}
	snapshot := e.MetricsSnapshot()
	if len(snapshot.Counters) != 0 {
		t.Fatal("nil engine reported counters")
	}
}
