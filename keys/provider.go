package keys

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-jwt/jwt/v5"
)

// Config names the PEM files to load. PublicKeyPath is required;
// PrivateKeyPath may be empty for verify-only deployments, in which case
// token issuance is unavailable.
type Config struct {
	Root           string
	PrivateKeyPath string
	PublicKeyPath  string
}

// Provider holds the parsed key pair. Construction fails fast on missing or
// malformed material; after that the keys never change.
type Provider struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

// ErrNoPrivateKey is returned by PrivateKey when the provider was built
// without private key material.
var ErrNoPrivateKey = errors.New("no private key configured")

// NewProvider reads and parses the configured key files.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.PublicKeyPath == "" {
		return nil, errors.New("public key path required")
	}

	p := &Provider{}

	pubPEM, err := os.ReadFile(resolve(cfg.Root, cfg.PublicKeyPath))
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	p.public = pub

	if cfg.PrivateKeyPath != "" {
		privPEM, err := os.ReadFile(resolve(cfg.Root, cfg.PrivateKeyPath))
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		p.private = priv
	}

	return p, nil
}

// PrivateKey returns the signing key, or ErrNoPrivateKey for verify-only
// providers.
func (p *Provider) PrivateKey() (*rsa.PrivateKey, error) {
	if p.private == nil {
		return nil, ErrNoPrivateKey
	}
	return p.private, nil
}

// PublicKey returns the verification key.
func (p *Provider) PublicKey() *rsa.PublicKey {
	return p.public
}

func resolve(root, path string) string {
	if filepath.IsAbs(path) || root == "" {
		return path
	}
	return filepath.Join(root, path)
}
