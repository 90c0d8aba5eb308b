package response

import (
	"net/http"

	"PostOpTriage/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Success writes {"ok": true, "message": msg} merged with data.
func Success(c *gin.Context, msg string, data gin.H) {
	body := gin.H{"ok": true}
	if msg != "" {
		body["message"] = msg
	}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// Fail writes {"ok": false, "error": msg} with a 400 status.
func Fail(c *gin.Context, msg string, data gin.H) {
	FailWithStatus(c, http.StatusBadRequest, msg, data)
}

func FailWithStatus(c *gin.Context, status int, msg string, data gin.H) {
	body := gin.H{"ok": false, "error": msg}
	for k, v := range data {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}

// AbortWithError maps the error code of err to an HTTP status.
func AbortWithError(c *gin.Context, err error) {
	FailWithStatus(c, StatusFor(err), errors.GetMessage(err), nil)
}

func StatusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeSignature:
		return http.StatusUnauthorized
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeDuplicate:
		return http.StatusConflict
	case errors.CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case errors.CodeNotConfigured:
		return http.StatusServiceUnavailable
	case errors.CodeDeliveryFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
