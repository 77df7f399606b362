package jwks

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrKeyNotFound is returned when the provider key set has no entry for
	// the requested key id.
	ErrKeyNotFound = errors.New("signing key not found in key set")
	// ErrFetchFailed is returned when the key set cannot be retrieved.
	ErrFetchFailed = errors.New("jwks fetch failed")
)

const (
	defaultCacheCapacity = 5
	defaultCacheTTL      = 24 * time.Hour
	defaultFetchTimeout  = 10 * time.Second
)

// Config configures a Resolver. Domain is the provider domain; the key set
// is fetched from https://<Domain>/.well-known/jwks.json unless EndpointURL
// overrides the full URL.
type Config struct {
	Domain        string
	EndpointURL   string
	CacheCapacity int
	CacheTTL      time.Duration
	FetchTimeout  time.Duration
	HTTPClient    *http.Client
}

type cacheEntry struct {
	key       *rsa.PublicKey
	fetchedAt time.Time
}

// Resolver fetches and caches provider signing keys. Safe for concurrent
// use; the cache is the only mutable state and is guarded by mu.
type Resolver struct {
	endpoint string
	capacity int
	ttl      time.Duration
	timeout  time.Duration
	client   *http.Client

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]cacheEntry

	now func() time.Time
}

// NewResolver validates cfg and returns an isolated resolver instance.
func NewResolver(cfg Config) (*Resolver, error) {
	endpoint := cfg.EndpointURL
	if endpoint == "" {
		if cfg.Domain == "" {
			return nil, errors.New("provider domain required")
		}
		endpoint = "https://" + cfg.Domain + "/.well-known/jwks.json"
	}
	if cfg.CacheCapacity == 0 {
		cfg.CacheCapacity = defaultCacheCapacity
	}
	if cfg.CacheCapacity < 0 {
		return nil, errors.New("invalid cache capacity")
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}

	return &Resolver{
		endpoint: endpoint,
		capacity: cfg.CacheCapacity,
		ttl:      cfg.CacheTTL,
		timeout:  cfg.FetchTimeout,
		client:   client,
		cache:    make(map[string]cacheEntry),
		now:      time.Now,
	}, nil
}

// ResolveKey returns the public key for kid, fetching the provider key set
// on a cache miss or an expired entry. Concurrent misses for the same kid
// share a single fetch.
func (r *Resolver) ResolveKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if kid == "" {
		return nil, fmt.Errorf("%w: empty key id", ErrKeyNotFound)
	}

	r.mu.Lock()
	if entry, ok := r.cache[kid]; ok {
		if r.now().Sub(entry.fetchedAt) <= r.ttl {
			r.mu.Unlock()
			return entry.key, nil
		}
		delete(r.cache, kid)
	}
	r.mu.Unlock()

	ch := r.group.DoChan(kid, func() (interface{}, error) {
		return r.fetchAndStore(kid)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*rsa.PublicKey), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, ctx.Err())
	}
}

// fetchAndStore runs detached from any single caller's context so a shared
// fetch survives one caller cancelling; the configured timeout still bounds
// it.
func (r *Resolver) fetchAndStore(kid string) (*rsa.PublicKey, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	doc, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}

	var key *rsa.PublicKey
	for i := range doc.Keys {
		k := doc.Keys[i]
		if k.Kid != kid {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		key, err = k.rsaPublicKey()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, err)
		}
		break
	}
	if key == nil {
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}

	r.mu.Lock()
	r.cache[kid] = cacheEntry{key: key, fetchedAt: r.now()}
	for len(r.cache) > r.capacity {
		r.evictOldestLocked()
	}
	r.mu.Unlock()

	return key, nil
}

func (r *Resolver) evictOldestLocked() {
	var oldestKid string
	var oldestAt time.Time
	for id, entry := range r.cache {
		if oldestKid == "" || entry.fetchedAt.Before(oldestAt) {
			oldestKid = id
			oldestAt = entry.fetchedAt
		}
	}
	delete(r.cache, oldestKid)
}

type jwksDoc struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (r *Resolver) fetch(ctx context.Context) (*jwksDoc, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrFetchFailed, resp.StatusCode, string(body))
	}

	var doc jwksDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrFetchFailed, err)
	}
	return &doc, nil
}

func (k *jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %v", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %v", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
