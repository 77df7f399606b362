package tokencache

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when no entry exists for the token.
var ErrNotFound = errors.New("token cache entry not found")

// Identity is the narrowed user projection produced by token resolution.
// It deliberately excludes every credential field.
type Identity struct {
	SubjectID    string    `json:"subject_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	OrgID        string    `json:"org_id,omitempty"`
	Active       bool      `json:"active"`
	Disabled     bool      `json:"disabled"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Store is a Redis-backed token→identity cache. Safe for concurrent use.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New creates a store writing keys under prefix with the given entry TTL.
func New(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "ac"
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// Save stores the resolved identity for token.
func (s *Store) Save(ctx context.Context, token string, identity *Identity) error {
	blob, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(token), blob, s.ttl).Err()
}

// Get returns the cached identity for token, or ErrNotFound.
func (s *Store) Get(ctx context.Context, token string) (*Identity, error) {
	blob, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var identity Identity
	if err := json.Unmarshal(blob, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Delete removes the entry for token. Deleting an absent entry is not an
// error.
func (s *Store) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.key(token)).Err()
}

func (s *Store) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.prefix + ":resolve:" + base64.RawURLEncoding.EncodeToString(sum[:])
}
