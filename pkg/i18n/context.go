package i18n

import "context"

type langKey struct{}

// WithLanguage stores the caller's language on ctx.
func WithLanguage(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, lang)
}

// LanguageFromContext returns the language stored by WithLanguage, or "".
func LanguageFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	lang, _ := ctx.Value(langKey{}).(string)
	return lang
}
