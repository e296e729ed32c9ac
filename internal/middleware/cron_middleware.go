// internal/middleware/cron_middleware.go
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	xerrors "attendance-service/internal/pkg/errors"
	"attendance-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const CronSecretHeader = "X-Internal-Cron-Secret"

// CronAuth guards the internal job endpoints. A caller passes either the
// x-internal-cron-secret header matching secret, or an Authorization bearer
// matching bearerSecret.
func CronAuth(secret, bearerSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" && bearerSecret == "" {
			response.Fail(c, xerrors.New(xerrors.KindInternal, http.StatusInternalServerError,
				"Internal cron secret not configured"))
			return
		}

		if header := c.GetHeader(CronSecretHeader); header != "" && secretEqual(header, secret) {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if parts := strings.SplitN(auth, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if secretEqual(strings.TrimSpace(parts[1]), bearerSecret) {
				c.Next()
				return
			}
		}

		response.Unauthorized(c, "Unauthorized cron request")
	}
}

func secretEqual(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
