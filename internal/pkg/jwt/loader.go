// internal/pkg/jwt/loader.go
package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"time"
)

type Config struct {
	PrivPath string
	PubPath  string
	Issuer   string
	Audience string
	TTL      time.Duration
	KID      string
}

type Manager struct {
	Generator *Generator
	Verifier  *Verifier
}

// SetClock puts the generator and the verifier on the same clock.
func (m *Manager) SetClock(now func() time.Time) {
	m.Generator.SetClock(now)
	m.Verifier.SetClock(now)
}

func LoadAndBuild(cfg Config) (*Manager, error) {
	priv, err := LoadRSAPrivateKeyFromPEM(cfg.PrivPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key from %s: %w", cfg.PrivPath, err)
	}

	pub, err := LoadRSAPublicKeyFromPEM(cfg.PubPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load public key from %s: %w", cfg.PubPath, err)
	}

	return build(cfg, priv, pub), nil
}

// NewEphemeral builds a manager around a freshly generated key pair. Tokens
// do not survive a restart; meant for development and tests.
func NewEphemeral(cfg Config) (*Manager, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate rsa key: %w", err)
	}
	return build(cfg, priv, &priv.PublicKey), nil
}

func build(cfg Config, priv *rsa.PrivateKey, pub *rsa.PublicKey) *Manager {
	return &Manager{
		Generator: NewGenerator(priv, cfg.Issuer, cfg.Audience, cfg.KID, cfg.TTL),
		Verifier:  NewVerifier(pub, cfg.Issuer, cfg.Audience),
	}
}
