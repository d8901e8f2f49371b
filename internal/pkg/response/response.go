package response

import (
	"errors"
	"net/http"

	"ecos/internal/pkg/apperr"

	"github.com/gin-gonic/gin"
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

// List writes a page of items with its pagination meta.
func List(c *gin.Context, items interface{}, meta interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       items,
		"pagination": meta,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// FromError renders err using its apperr kind. Errors without a kind are
// internal and only a generic message reaches the client; the full error is
// attached to the gin context for the request logger.
func FromError(c *gin.Context, err error) {
	_ = c.Error(err)

	var e *apperr.Error
	if !errors.As(err, &e) {
		Error(c, http.StatusInternalServerError, string(apperr.KindInternal), "internal server error")
		return
	}
	status := apperr.HTTPStatus(e.Kind)
	if e.Details != nil {
		ErrorWithDetails(c, status, string(e.Kind), e.Error(), e.Details)
		return
	}
	Error(c, status, string(e.Kind), e.Error())
}

// Abort renders err and stops the handler chain.
func Abort(c *gin.Context, err error) {
	FromError(c, err)
	c.Abort()
}
