// internal/middleware/helpers.go
package middleware

import (
	"attendance-service/internal/domain/attendance"

	"github.com/gin-gonic/gin"
)

func getString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func GetUserID(c *gin.Context) (string, bool) {
	return getString(c, ctxUserID)
}

func GetSessionID(c *gin.Context) (string, bool) {
	return getString(c, ctxSessionID)
}

func GetRole(c *gin.Context) (string, bool) {
	return getString(c, ctxRole)
}

func GetCompanyID(c *gin.Context) (string, bool) {
	return getString(c, ctxCompanyID)
}

// MustGetUserID gets the user ID from context or panics
func MustGetUserID(c *gin.Context) string {
	id, ok := GetUserID(c)
	if !ok {
		panic("user_id not found in context")
	}
	return id
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, ok := GetSessionID(c)
	return ok
}

func IsAdmin(c *gin.Context) bool {
	role, _ := GetRole(c)
	return role == string(attendance.RoleAdmin)
}
