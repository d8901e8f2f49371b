package middleware

import (
	"strings"

	"ecos/internal/domain"
	"ecos/internal/identity"
	"ecos/internal/pkg/apperr"
	"ecos/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ctxUserID        = "user_id"
	ctxEmail         = "email"
	ctxEmailVerified = "email_verified"
	ctxRole          = "role"
)

// JWTAuth verifies the bearer token with the identity provider and stores
// the caller in the gin context.
func JWTAuth(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Abort(c, apperr.Unauthorized("authorization header must be 'Bearer <token>'"))
			return
		}

		id, err := provider.VerifyToken(c.Request.Context(), token)
		if err != nil {
			response.Abort(c, apperr.New(apperr.KindUnauthorized, "invalid or expired token", err))
			return
		}

		c.Set(ctxUserID, id.ID)
		c.Set(ctxEmail, id.Email)
		c.Set(ctxEmailVerified, id.EmailVerified)
		c.Set(ctxRole, id.Role)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// UserID returns the authenticated user id, or uuid.Nil before JWTAuth ran.
func UserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(ctxUserID); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// Actor builds the service-level caller from the gin context.
func Actor(c *gin.Context) domain.Actor {
	return domain.Actor{
		ID:    UserID(c),
		Email: c.GetString(ctxEmail),
		Role:  c.GetString(ctxRole),
	}
}
