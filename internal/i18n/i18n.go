// Package i18n holds the embedded message catalogs used for profile
// narrative, drill rationales and API messages.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// DefaultLang is used when no language has been configured.
const DefaultLang = "ja"

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var (
	mu          sync.RWMutex
	bundle      *i18n.Bundle
	defaultLang = DefaultLang
)

// Init loads the translation bundle with lang as the fallback language.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := b.ParseMessageFileBytes(data, e.Name()); err != nil {
			return fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}

	mu.Lock()
	bundle = b
	defaultLang = lang
	mu.Unlock()
	return nil
}

func currentBundle() (*i18n.Bundle, string) {
	mu.RLock()
	b, lang := bundle, defaultLang
	mu.RUnlock()
	if b != nil {
		return b, lang
	}
	if err := Init(DefaultLang); err != nil {
		// The catalogs are embedded; failing to parse them is a build defect.
		panic(err)
	}
	return currentBundle()
}

// NewLocalizer creates a localizer for the given languages, falling back to
// the bundle default.
func NewLocalizer(langs ...string) *i18n.Localizer {
	b, _ := currentBundle()
	return i18n.NewLocalizer(b, langs...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	_, lang := currentBundle()
	return NewLocalizer(lang)
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	return localize(localizerFromCtx(ctx), &i18n.LocalizeConfig{MessageID: msgID})
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	return localize(localizerFromCtx(ctx), &i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
}

// Tp translates a pluralized message by ID.
func Tp(ctx context.Context, msgID string, count int) string {
	return localize(localizerFromCtx(ctx), &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

func localize(loc *i18n.Localizer, cfg *i18n.LocalizeConfig) string {
	s, err := loc.Localize(cfg)
	if err != nil {
		slog.Warn("missing translation", "id", cfg.MessageID, "error", err)
		return cfg.MessageID
	}
	return s
}

// Catalog translates for one fixed language. It is used by code that runs
// outside a request context, such as the rule-based profile engine.
type Catalog struct {
	loc *i18n.Localizer
}

// NewCatalog returns a Catalog for lang. An empty lang uses the bundle default.
func NewCatalog(lang string) Catalog {
	if lang == "" {
		_, lang = currentBundle()
	}
	return Catalog{loc: NewLocalizer(lang)}
}

// T translates a message by ID.
func (c Catalog) T(msgID string) string {
	if c.loc == nil {
		c = NewCatalog("")
	}
	return localize(c.loc, &i18n.LocalizeConfig{MessageID: msgID})
}

// Td translates a message by ID with template data.
func (c Catalog) Td(msgID string, data map[string]any) string {
	if c.loc == nil {
		c = NewCatalog("")
	}
	return localize(c.loc, &i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
}
