package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"PostOpTriage/pkg/errors"
	"PostOpTriage/pkg/i18n"
	"PostOpTriage/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(IdempotencyMiddleware(IdempotencyConfig{TTL: time.Minute}))
	calls := 0
	r.POST("/webhook/form-submit", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	failing := 0
	r.POST("/api/send-sms", func(c *gin.Context) {
		failing++
		c.Status(http.StatusBadGateway)
	})

	t.Run("no header never deduplicates", func(t *testing.T) {
		perform(r, http.MethodPost, "/webhook/form-submit", `{}`, nil)
		perform(r, http.MethodPost, "/webhook/form-submit", `{}`, nil)
		assert.Equal(t, 2, calls)
	})

	t.Run("same key is rejected", func(t *testing.T) {
		h := map[string]string{"Idempotency-Key": "abc"}
		w1 := perform(r, http.MethodPost, "/webhook/form-submit", `{}`, h)
		w2 := perform(r, http.MethodPost, "/webhook/form-submit", `{}`, h)
		assert.Equal(t, http.StatusOK, w1.Code)
		assert.Equal(t, http.StatusConflict, w2.Code)
		assert.Equal(t, 3, calls)
	})

	t.Run("key released after server error", func(t *testing.T) {
		h := map[string]string{"Idempotency-Key": "retry-me"}
		perform(r, http.MethodPost, "/api/send-sms", `{}`, h)
		perform(r, http.MethodPost, "/api/send-sms", `{}`, h)
		assert.Equal(t, 2, failing)
	})
}

func TestLanguageMiddleware(t *testing.T) {
	support, err := i18n.NewI18nSupport("vi", nil)
	require.NoError(t, err)

	r := gin.New()
	r.Use(LanguageMiddleware(support))
	r.GET("/lang", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("lang")+"|"+i18n.LanguageFromContext(c.Request.Context()))
	})

	tests := []struct {
		name    string
		path    string
		headers map[string]string
		want    string
	}{
		{"default", "/lang", nil, "vi|vi"},
		{"header", "/lang", map[string]string{"Accept-Language": "en-US,en;q=0.9"}, "en|en"},
		{"query beats header", "/lang?lang=vi", map[string]string{"Accept-Language": "en"}, "vi|vi"},
		{"unsupported", "/lang?lang=de", nil, "vi|vi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(r, http.MethodGet, tt.path, "", tt.headers)
			assert.Equal(t, tt.want, w.Body.String())
		})
	}
}

func TestSignVerifyMiddleware(t *testing.T) {
	const secret = "s3cret"
	r := gin.New()
	r.Use(SignVerifyMiddleware(secret, time.Minute))
	r.POST("/webhook/form-submit", func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(b))
	})

	body := `{"name":"Lan"}`
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := GenerateSignature(http.MethodPost, "/webhook/form-submit", []byte(body), ts, secret)

	t.Run("valid signature keeps body readable", func(t *testing.T) {
		w := perform(r, http.MethodPost, "/webhook/form-submit", body, map[string]string{"Signature": sig, "X-Timestamp": ts})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, body, w.Body.String())
	})

	t.Run("sha256 prefix accepted", func(t *testing.T) {
		w := perform(r, http.MethodPost, "/webhook/form-submit?timestamp="+ts, body, map[string]string{"Signature": "sha256=" + sig})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("tampered body", func(t *testing.T) {
		w := perform(r, http.MethodPost, "/webhook/form-submit", `{"name":"Binh"}`, map[string]string{"Signature": sig, "X-Timestamp": ts})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing signature", func(t *testing.T) {
		w := perform(r, http.MethodPost, "/webhook/form-submit", body, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Signature is missing")
	})

	t.Run("stale timestamp", func(t *testing.T) {
		old := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
		oldSig := GenerateSignature(http.MethodPost, "/webhook/form-submit", []byte(body), old, secret)
		w := perform(r, http.MethodPost, "/webhook/form-submit", body, map[string]string{"Signature": oldSig, "X-Timestamp": old})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestSignVerifyMiddleware_DisabledWithoutSecret(t *testing.T) {
	r := gin.New()
	r.Use(SignVerifyMiddleware("", 0))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := perform(r, http.MethodPost, "/x", `{}`, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

type countingObserver struct{ allow, deny int }

func (o *countingObserver) OnAllow(string) { o.allow++ }
func (o *countingObserver) OnDeny(string)  { o.deny++ }

func TestRateLimiter(t *testing.T) {
	obs := &countingObserver{}
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:       "2-M",
		SkipPaths:  []string{"/healthz"},
		AddHeaders: true,
	}, nil).WithObserver(obs)

	r := gin.New()
	r.Use(rl.Middleware())
	r.POST("/webhook/form-submit", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/webhook/form-submit", "", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/webhook/form-submit", "", nil).Code)
	w := perform(r, http.MethodPost, "/webhook/form-submit", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/healthz", "", nil).Code)
	}
	assert.Equal(t, 2, obs.allow)
	assert.Equal(t, 1, obs.deny)
}

func TestRateLimiter_Whitelist(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: "1-M", WhitelistCIDRs: []string{"192.0.2.0/24"}}, nil)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/api/submissions", func(c *gin.Context) { c.Status(http.StatusOK) })

	// httptest requests come from 192.0.2.1
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/api/submissions", "", nil).Code)
	}
}

func TestRateLimiter_PerRouteAndHeaderIdentifier(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:          "100-M",
		PerRouteRates: map[string]string{"/webhook/form-submit": "1-M"},
		Identifier:    "header",
		HeaderName:    "X-Form-ID",
	}, nil)
	r := gin.New()
	r.Use(rl.Middleware())
	r.POST("/webhook/form-submit", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/submissions", func(c *gin.Context) { c.Status(http.StatusOK) })

	formA := map[string]string{"X-Form-ID": "a"}
	formB := map[string]string{"X-Form-ID": "b"}
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/webhook/form-submit", "", formA).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodPost, "/webhook/form-submit", "", formA).Code)
	// separate bucket per form
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/webhook/form-submit", "", formB).Code)
	// other routes use the global rate
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/api/submissions", "", formA).Code)
}

func TestRateLimiter_UpdateConfig(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: "1-M"}, nil)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/api/submissions", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/api/submissions", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodGet, "/api/submissions", "", nil).Code)

	rl.UpdateConfig(RateLimiterConfig{Rate: "1-M", SkipPaths: []string{"/api"}})
	assert.Equal(t, []string{"/api"}, rl.Config().SkipPaths)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/api/submissions", "", nil).Code)
}

func TestBodyLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimitMiddleware(16))
	r.POST("/api/save-response", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			response.AbortWithError(c, ReadBodyError(err))
			return
		}
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name     string
		body     string
		declared bool
		want     int
	}{
		{"under limit", `{"a":1}`, true, http.StatusOK},
		{"exactly at limit", strings.Repeat("x", 16), true, http.StatusOK},
		{"declared over limit", strings.Repeat("x", 17), true, http.StatusRequestEntityTooLarge},
		{"undeclared over limit", strings.Repeat("x", 64), false, http.StatusRequestEntityTooLarge},
		{"undeclared under limit", `{}`, false, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/save-response", strings.NewReader(tt.body))
			if !tt.declared {
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestReadBodyError(t *testing.T) {
	assert.Equal(t, errors.CodeTooLarge, ReadBodyError(&http.MaxBytesError{Limit: 10}).Code)
	assert.Equal(t, errors.CodeInvalidInput, ReadBodyError(io.ErrUnexpectedEOF).Code)
}
