// internal/pkg/jwt/claims.go
package jwt

import "github.com/golang-jwt/jwt/v5"

// Claims are carried by the access token issued at login. The token is
// bound to one attendance session; Subject holds the user id.
type Claims struct {
	SessionID string `json:"sid"`
	UserID    string `json:"uid"`
	Role      string `json:"role"`
	CompanyID string `json:"cid,omitempty"`
	DeviceID  string `json:"device,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool { return c.Role == "admin" }
