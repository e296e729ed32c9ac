// internal/pkg/response/response.go
package response

import (
	"net/http"

	xerrors "attendance-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// JSON writes body as-is. Lifecycle endpoints return flat bodies that
// already carry their own ok field.
func JSON(c *gin.Context, status int, body interface{}) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, body)
}

// Fail writes a domain error as a flat body:
//
//	{"ok": false, "message": "...", "error": "KIND", ...details}
//
// Errors that are not *xerrors.AppError become INTERNAL_ERROR with status
// 500; their text is not exposed.
func Fail(c *gin.Context, err error) {
	c.Abort()

	appErr, ok := xerrors.AsAppError(err)
	if !ok {
		appErr = xerrors.Internal(err)
	}
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	body := gin.H{
		"ok":      false,
		"message": appErr.Message,
		"error":   appErr.Kind,
	}
	for k, v := range appErr.Details {
		if _, reserved := body[k]; !reserved {
			body[k] = v
		}
	}
	c.JSON(appErr.Status, body)
}

// ValidationError sends a 400 with the flat error shape.
func ValidationError(c *gin.Context, message string, err error) {
	appErr := xerrors.InvalidInput(message)
	if err != nil {
		appErr = appErr.With("detail", err.Error())
	}
	Fail(c, appErr)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Fail(c, xerrors.Unauthorized(message))
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Fail(c, xerrors.Forbidden(message))
}
