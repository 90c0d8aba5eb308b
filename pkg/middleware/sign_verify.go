package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
	"time"

	"PostOpTriage/pkg/errors"
	"PostOpTriage/pkg/response"

	"github.com/gin-gonic/gin"
)

// DefaultSignatureSkew bounds how old a signed request may be.
const DefaultSignatureSkew = 5 * time.Minute

// GenerateSignature 生成 HMAC 签名: hex(HMAC-SHA256(method + path + body + timestamp)).
func GenerateSignature(method, path string, body []byte, timestamp, secretKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignVerifyMiddleware checks the Signature header against the request. The
// unix timestamp comes from X-Timestamp or ?timestamp=. An empty secretKey
// disables verification.
func SignVerifyMiddleware(secretKey string, skew time.Duration) gin.HandlerFunc {
	if skew <= 0 {
		skew = DefaultSignatureSkew
	}
	return func(c *gin.Context) {
		if secretKey == "" {
			c.Next()
			return
		}

		signature := strings.TrimPrefix(c.GetHeader("Signature"), "sha256=")
		if signature == "" {
			response.AbortWithError(c, errors.WithCode(errors.CodeSignature, "Signature is missing"))
			return
		}

		timestamp := c.GetHeader("X-Timestamp")
		if timestamp == "" {
			timestamp = c.Query("timestamp")
		}
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			response.AbortWithError(c, errors.WithCode(errors.CodeSignature, "Timestamp is missing"))
			return
		}
		if age := time.Since(time.Unix(ts, 0)); age > skew || age < -skew {
			response.AbortWithError(c, errors.WithCode(errors.CodeSignature, "Timestamp out of range"))
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.AbortWithError(c, ReadBodyError(err))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		expected := GenerateSignature(c.Request.Method, c.Request.URL.Path, body, timestamp, secretKey)
		if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
			response.AbortWithError(c, errors.WithCode(errors.CodeSignature, "Invalid signature"))
			return
		}

		c.Next()
	}
}
