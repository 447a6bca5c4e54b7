package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/harborview/dms-storage-api/internal/models"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
	"github.com/harborview/dms-storage-api/pkg/response"
)

// RequireAdmin blocks callers without the admin flag. It must run after JWT.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := value.(*models.JWTClaims)
		if !ok || !claims.IsAdmin {
			response.Error(c, appErrors.Clone(appErrors.ErrPermissionDenied, "administrator access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
