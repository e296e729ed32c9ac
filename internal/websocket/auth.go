// internal/websocket/auth.go
package websocket

import (
	"context"
	"fmt"

	"attendance-service/internal/domain/attendance"
	"attendance-service/internal/pkg/jwt"
)

// ClientAuth holds what the hub knows about a connected client.
type ClientAuth struct {
	UserID    string
	SessionID string
	Role      string
	CompanyID string
	DeviceID  string
}

func (a *ClientAuth) IsAdmin() bool {
	return a.Role == string(attendance.RoleAdmin)
}

// SessionVerifier reports the current state of a session.
type SessionVerifier interface {
	VerifySession(ctx context.Context, sessionID string) (*attendance.VerifySessionResponse, error)
}

// TokenAuthenticator accepts an access token only while the session it is
// bound to is still valid.
type TokenAuthenticator struct {
	verifier *jwt.Verifier
	sessions SessionVerifier
}

func NewTokenAuthenticator(verifier *jwt.Verifier, sessions SessionVerifier) *TokenAuthenticator {
	return &TokenAuthenticator{verifier: verifier, sessions: sessions}
}

func (a *TokenAuthenticator) Authenticate(ctx context.Context, token string) (*ClientAuth, error) {
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	status, err := a.sessions.VerifySession(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if !status.Valid {
		return nil, ErrSessionNotLive
	}

	return &ClientAuth{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		Role:      claims.Role,
		CompanyID: claims.CompanyID,
		DeviceID:  claims.DeviceID,
	}, nil
}
