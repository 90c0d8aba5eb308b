package i18n

import (
	"embed"
	"encoding/json"
	"path"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// I18nSupport resolves message IDs against the embedded locale files.
type I18nSupport struct {
	bundle      *i18n.Bundle
	defaultLang language.Tag
	tags        []language.Tag
	matcher     language.Matcher
	logger      *zap.Logger
}

// NewI18nSupport loads every embedded locale. defaultLang must be one of them.
func NewI18nSupport(defaultLang string, logger *zap.Logger) (*I18nSupport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	def, err := language.Parse(defaultLang)
	if err != nil {
		return nil, err
	}

	bundle := i18n.NewBundle(def)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	tags := []language.Tag{def}
	for _, e := range entries {
		p := path.Join("locales", e.Name())
		buf, err := localeFS.ReadFile(p)
		if err != nil {
			return nil, err
		}
		mf, err := bundle.ParseMessageFileBytes(buf, p)
		if err != nil {
			return nil, err
		}
		if mf.Tag != def {
			tags = append(tags, mf.Tag)
		}
	}

	return &I18nSupport{
		bundle:      bundle,
		defaultLang: def,
		tags:        tags,
		matcher:     language.NewMatcher(tags),
		logger:      logger.Named("i18n"),
	}, nil
}

// T returns the translation of key for languageTag, falling back to the
// default language and finally to the key itself.
func (i *I18nSupport) T(languageTag, key string, templateData map[string]interface{}) string {
	if languageTag == "" {
		languageTag = i.defaultLang.String()
	}
	localizer := i18n.NewLocalizer(i.bundle, languageTag, i.defaultLang.String())

	translation, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: templateData,
	})
	if err != nil {
		i.logger.Warn("missing translation", zap.String("key", key), zap.String("lang", languageTag), zap.Error(err))
		return key
	}
	return translation
}

// TWithDefaultLang translates key using the bundle's default language.
func (i *I18nSupport) TWithDefaultLang(key string, templateData map[string]interface{}) string {
	return i.T(i.defaultLang.String(), key, templateData)
}

func (i *I18nSupport) DefaultLanguage() string { return i.defaultLang.String() }

// Match picks the best supported language for the given preferences, as they
// appear in an Accept-Language header or a ?lang= parameter.
func (i *I18nSupport) Match(preferred ...string) string {
	var want []language.Tag
	for _, p := range preferred {
		if p == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		want = append(want, tags...)
	}
	if len(want) == 0 {
		return i.defaultLang.String()
	}
	_, idx, conf := i.matcher.Match(want...)
	if conf == language.No {
		return i.defaultLang.String()
	}
	return i.tags[idx].String()
}
