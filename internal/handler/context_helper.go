package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/edudesk/school-records-api/internal/middleware"
	"github.com/edudesk/school-records-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// ownerScope resolves the record owner for the authenticated caller: the
// user id itself for teachers, the school id otherwise.
func ownerScope(claims *models.JWTClaims) string {
	if claims == nil {
		return ""
	}
	if claims.Role == models.RoleTeacher {
		return claims.UserID
	}
	return claims.SchoolID
}
