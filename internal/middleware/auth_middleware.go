// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"strings"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"
	"attendance-service/internal/pkg/jwt"
	"attendance-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID    = "user_id"
	ctxSessionID = "session_id"
	ctxRole      = "role"
	ctxCompanyID = "company_id"
	ctxDeviceID  = "device_id"
)

// SessionVerifier reports whether the session behind a token is still live.
type SessionVerifier interface {
	VerifySession(ctx context.Context, sessionID string) (*attendance.VerifySessionResponse, error)
}

type AuthMiddleware struct {
	verifier *jwt.Verifier
	sessions SessionVerifier
}

func NewAuthMiddleware(verifier *jwt.Verifier, sessions SessionVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		sessions: sessions,
	}
}

// Auth validates the bearer token and the session it is bound to. A token
// whose session has been closed is rejected even if it has not expired.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token")
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			response.Fail(c, xerrors.Unauthorized("invalid or expired token").With("detail", err.Error()))
			return
		}

		status, err := m.sessions.VerifySession(c.Request.Context(), claims.SessionID)
		if err != nil {
			if xerrors.KindOf(err) == xerrors.KindInternal {
				response.Fail(c, err)
				return
			}
			response.Unauthorized(c, "session not found")
			return
		}
		if !status.Valid {
			response.Fail(c, xerrors.Unauthorized("session is no longer active").
				With("status", string(status.Status)))
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxSessionID, claims.SessionID)
		c.Set(ctxRole, claims.Role)
		c.Set(ctxCompanyID, claims.CompanyID)
		c.Set(ctxDeviceID, claims.DeviceID)

		c.Next()
	}
}

// RequireRole must run after Auth.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok {
			response.Forbidden(c, "no role found - authentication required")
			return
		}

		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}

		response.Fail(c, xerrors.Forbidden("insufficient permissions").
			With("requiredRoles", roles).
			With("role", role))
	}
}

// AdminOnly returns middlewares for admin-only routes (Auth + RequireRole)
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(string(attendance.RoleAdmin)),
	}
}

// extractToken reads the bearer token, falling back to ?token= for clients
// that cannot set headers.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	return c.Query("token")
}
