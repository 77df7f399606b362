package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DenyList records revoked token strings in Redis, keyed by SHA-256 digest.
// Entries expire with the token: the caller passes the token's remaining
// lifetime as the TTL, after which natural expiry takes over.
type DenyList struct {
	client *redis.Client
	prefix string
}

// NewDenyList creates a deny list writing keys under prefix.
func NewDenyList(client *redis.Client, prefix string) *DenyList {
	if prefix == "" {
		prefix = "ac"
	}
	return &DenyList{client: client, prefix: prefix}
}

// Add marks token as revoked for ttl. Adding an already-revoked token is a
// no-op, which keeps revocation idempotent.
func (d *DenyList) Add(ctx context.Context, subjectID, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return d.client.Set(ctx, d.key(token), subjectID, ttl).Err()
}

// Contains reports whether token has been revoked.
func (d *DenyList) Contains(ctx context.Context, token string) (bool, error) {
	err := d.client.Get(ctx, d.key(token)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *DenyList) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return d.prefix + ":revoked:" + base64.RawURLEncoding.EncodeToString(sum[:])
}
