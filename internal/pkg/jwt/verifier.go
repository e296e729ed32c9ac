// internal/pkg/jwt/verifier.go
package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnboundToken is returned for a well-formed token that names no session.
var ErrUnboundToken = errors.New("token is not bound to a session")

// Verifier checks RS256 access tokens against one issuer and audience.
type Verifier struct {
	pub      *rsa.PublicKey
	issuer   string
	audience string
	parser   *jwt.Parser
}

func NewVerifier(pub *rsa.PublicKey, issuer, audience string) *Verifier {
	v := &Verifier{pub: pub, issuer: issuer, audience: audience}
	v.SetClock(time.Now)
	return v
}

// SetClock sets the time expiry and not-before are checked against.
func (v *Verifier) SetClock(now func() time.Time) {
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
		jwt.WithTimeFunc(now),
	)
}

// Verify parses tokenString and returns its claims. Signature, issuer,
// audience and expiry are all checked by the parser.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if v.pub == nil {
		return nil, fmt.Errorf("jwt verifier has nil public key")
	}

	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.pub, nil
	}); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	if claims.SessionID == "" {
		return nil, ErrUnboundToken
	}
	return claims, nil
}
