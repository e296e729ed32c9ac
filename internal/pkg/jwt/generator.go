// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Generator struct {
	priv     *rsa.PrivateKey
	issuer   string
	audience string
	kid      string // key id for rotation
	Ttl      time.Duration
	now      func() time.Time
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl time.Duration) *Generator {
	return &Generator{
		priv:     priv,
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		Ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock sets the time iat, nbf and the default exp are taken from.
func (g *Generator) SetClock(now func() time.Time) { g.now = now }

// SessionToken describes the attendance session an access token is bound to.
type SessionToken struct {
	SessionID string
	UserID    string
	Role      string
	CompanyID string
	DeviceID  string
	// ExpiresAt overrides Ttl, so the token never outlives the session.
	ExpiresAt time.Time
}

// Generate signs an RS256 access token and returns it with its jti.
func (g *Generator) Generate(st SessionToken) (string, string, error) {
	if g.priv == nil {
		return "", "", fmt.Errorf("jwt generator has nil private key")
	}

	now := g.now()
	jti := ulid.Make().String()
	expiresAt := st.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(g.Ttl)
	}

	claims := &Claims{
		SessionID: st.SessionID,
		UserID:    st.UserID,
		Role:      st.Role,
		CompanyID: st.CompanyID,
		DeviceID:  st.DeviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   st.UserID,
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	return signed, jti, err
}

// IssueSessionToken satisfies the session service's token issuer.
func (g *Generator) IssueSessionToken(st SessionToken) (string, error) {
	token, _, err := g.Generate(st)
	return token, err
}
