package middleware

import (
	"ecos/internal/identity"
	"ecos/internal/pkg/apperr"
	"ecos/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// RequireRole ensures that the authenticated user has one of the roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ctxRole)
		if !exists {
			response.Abort(c, apperr.Unauthorized("role not found in token"))
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		response.Abort(c, apperr.Forbidden("access denied: insufficient permissions"))
	}
}

func ModeratorOnly() gin.HandlerFunc {
	return RequireRole(identity.RoleModerator)
}

// RequireVerifiedEmail blocks callers whose email is not confirmed yet.
func RequireVerifiedEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ctxEmailVerified) {
			response.Abort(c, apperr.Forbidden("email is not verified"))
			return
		}
		c.Next()
	}
}
