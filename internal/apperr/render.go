package apperr

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// Render writes err as the JSON error envelope. Unknown error types become a
// 500 without leaking the underlying message.
func Render(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = Internal(err)
	}
	body := gin.H{"error": gin.H{"code": e.Code, "message": e.Message}}
	if e.Code == CodeInternal {
		body = gin.H{"error": gin.H{"code": CodeInternal, "message": "internal error"}}
	}
	c.AbortWithStatusJSON(e.HTTPStatus(), body)
}
