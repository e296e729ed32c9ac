// internal/middleware/recovery_middleware.go
package middleware

import (
	"fmt"

	xerrors "attendance-service/internal/pkg/errors"
	"attendance-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", GetRequestID(c)),
					zap.Stack("stack"),
				)
				response.Fail(c, xerrors.Internal(fmt.Errorf("panic: %v", rec)))
			}
		}()
		c.Next()
	}
}
