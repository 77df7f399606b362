package password

import (
	"bytes"
	"testing"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"memory below minimum", func(c *Config) { c.Memory = 1024 }},
		{"zero time cost", func(c *Config) { c.Time = 0 }},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"short salt", func(c *Config) { c.SaltLength = 8 }},
		{"short key", func(c *Config) { c.KeyLength = 8 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := NewHasher(cfg); err == nil {
				t.Fatal("expected config rejection, got nil error")
			}
		})
	}
}

func TestHashDeterministicPerInputs(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	salt := bytes.Repeat([]byte{0xA7}, 16)

	first, err := h.Hash("correct horse battery staple", salt, AlgorithmArgon2id)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	second, err := h.Hash("correct horse battery staple", salt, AlgorithmArgon2id)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if first != second {
		t.Fatalf("same inputs produced different hashes: %q vs %q", first, second)
	}

	other, err := h.Hash("correct horse battery staple", bytes.Repeat([]byte{0x11}, 16), AlgorithmArgon2id)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if other == first {
		t.Fatal("different salts produced identical hashes")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	for _, algorithm := range []Algorithm{AlgorithmArgon2id, AlgorithmScrypt} {
		t.Run(string(algorithm), func(t *testing.T) {
			salt, err := h.GenerateSalt()
			if err != nil {
				t.Fatalf("GenerateSalt failed: %v", err)
			}
			hash, err := h.Hash("s3cret-pass", salt, algorithm)
			if err != nil {
				t.Fatalf("Hash failed: %v", err)
			}

			ok, err := h.Verify("s3cret-pass", salt, algorithm, hash)
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if !ok {
				t.Fatal("expected match for correct password")
			}

			ok, err = h.Verify("wrong-pass", salt, algorithm, hash)
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if ok {
				t.Fatal("expected mismatch for wrong password")
			}
		})
	}
}

func TestVerifyRejectsBadHashEncoding(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	salt := bytes.Repeat([]byte{0x01}, 16)

	if _, err := h.Verify("pw", salt, AlgorithmArgon2id, "%%not-base64%%"); err == nil {
		t.Fatal("expected error for undecodable stored hash")
	}
}

func TestHashRejectsShortSaltAndUnknownAlgorithm(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	if _, err := h.Hash("pw", []byte("short"), AlgorithmArgon2id); err == nil {
		t.Fatal("expected error for short salt")
	}
	if _, err := h.Hash("pw", bytes.Repeat([]byte{0x01}, 16), Algorithm("bcrypt")); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}

func TestGenerateSaltLengthAndUniqueness(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	a, err := h.GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}
	b, err := h.GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}
	if len(a) != 16 || len(b) != 16 {
		t.Fatalf("expected 16-byte salts, got %d and %d", len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Fatal("consecutive salts are identical")
	}
}
