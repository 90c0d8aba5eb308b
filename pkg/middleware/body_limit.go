package middleware

import (
	"net/http"

	"PostOpTriage/pkg/errors"
	"PostOpTriage/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes caps check-in and API request bodies.
const MaxBodyBytes int64 = 100 << 10

// BodyLimitMiddleware rejects a declared Content-Length above limit with 413
// and caps undeclared bodies so reads past limit fail. A non-positive limit
// uses MaxBodyBytes.
func BodyLimitMiddleware(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		limit = MaxBodyBytes
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			response.AbortWithError(c, errors.WithCodef(errors.CodeTooLarge, "body exceeds %d bytes", limit))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// ReadBodyError classifies a body read failure: an exceeded limit is
// CodeTooLarge, anything else is invalid input.
func ReadBodyError(err error) *errors.Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errors.WithCodef(errors.CodeTooLarge, "body exceeds %d bytes", tooLarge.Limit)
	}
	return errors.WithCodef(errors.CodeInvalidInput, "read body: %v", err)
}
