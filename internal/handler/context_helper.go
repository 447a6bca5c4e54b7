package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/harborview/dms-storage-api/internal/middleware"
	"github.com/harborview/dms-storage-api/internal/models"
)

// claimsFromContext returns the authenticated claims, or nil for anonymous
// requests. Services treat nil claims as the anonymous caller.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	if claims, ok := value.(*models.JWTClaims); ok {
		return claims
	}
	return nil
}
