package middleware

import (
	"PostOpTriage/pkg/i18n"

	"github.com/gin-gonic/gin"
)

// LanguageMiddleware picks the response language from ?lang= first, then
// Accept-Language, and stores it on the gin and request contexts.
func LanguageMiddleware(i18nSupport *i18n.I18nSupport) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := i18nSupport.Match(c.Query("lang"), c.GetHeader("Accept-Language"))

		c.Set("lang", lang)
		c.Request = c.Request.WithContext(i18n.WithLanguage(c.Request.Context(), lang))
		c.Header("Content-Language", lang)
		c.Next()
	}
}
