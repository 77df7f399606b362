package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

// Algorithm tags the key-derivation scheme recorded on a credential.
type Algorithm string

const (
	// AlgorithmArgon2id is the default scheme for newly created credentials.
	AlgorithmArgon2id Algorithm = "argon2id"
	// AlgorithmScrypt is accepted for credentials hashed before the argon2id
	// upgrade. New hashes should not use it.
	AlgorithmScrypt Algorithm = "scrypt"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Config holds the argon2id cost parameters and the salt/key sizes shared by
// both schemes. Configured once at engine build time and then immutable.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher derives and verifies password hashes. Hash and Verify are pure
// functions over their inputs; a Hasher is safe for concurrent use.
type Hasher struct {
	config Config
}

// NewHasher validates cfg against the scheme minimums and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Memory < minMemoryKB {
		return nil, errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return nil, errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return nil, errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return nil, errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return nil, errors.New("password key length must be >= 16")
	}
	return &Hasher{config: cfg}, nil
}

// GenerateSalt returns fresh cryptographically random salt material of the
// configured length. One salt per credential, never reused.
func (h *Hasher) GenerateSalt() ([]byte, error) {
	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Hash derives the password under salt and algorithm and returns the
// base64-encoded key. Same inputs always produce the same output.
func (h *Hasher) Hash(password string, salt []byte, algorithm Algorithm) (string, error) {
	key, err := h.derive(password, salt, algorithm)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Verify recomputes the derivation and compares against expectedHash in
// constant time. A decode failure of expectedHash is an error, not a
// mismatch.
func (h *Hasher) Verify(password string, salt []byte, algorithm Algorithm, expectedHash string) (bool, error) {
	expected, err := base64.StdEncoding.DecodeString(expectedHash)
	if err != nil {
		return false, errors.New("invalid hash encoding")
	}
	computed, err := h.derive(password, salt, algorithm)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func (h *Hasher) derive(password string, salt []byte, algorithm Algorithm) ([]byte, error) {
	if len(salt) < int(minSaltLength) {
		return nil, errors.New("invalid salt length")
	}
	switch algorithm {
	case AlgorithmArgon2id:
		return argon2.IDKey(
			[]byte(password),
			salt,
			h.config.Time,
			h.config.Memory,
			h.config.Parallelism,
			h.config.KeyLength,
		), nil
	case AlgorithmScrypt:
		return scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, int(h.config.KeyLength))
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
}
