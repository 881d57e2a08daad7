// Пакет i18n — интернационализация Records UI.
// Каталоги en и ru встроены в бинарник. Язык определяется middleware:
// cookie "lang" → Accept-Language → "en".
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
)

// DefaultLang — язык по умолчанию и fallback для отсутствующих ключей.
const DefaultLang = "en"

var (
	// SupportedLanguages — поддерживаемые языки в порядке предпочтения.
	SupportedLanguages = []language.Tag{
		language.English,
		language.Russian,
	}

	matcher = language.NewMatcher(SupportedLanguages)
)

type contextKey string

const contextKeyLang contextKey = "i18n_lang"

// Bundle — каталоги переводов всех языков.
type Bundle struct {
	mu       sync.RWMutex
	catalogs map[string]map[string]string // lang → key → перевод
}

// NewBundle создаёт пустой Bundle.
func NewBundle() *Bundle {
	return &Bundle{catalogs: make(map[string]map[string]string)}
}

// Load создаёт Bundle из встроенных каталогов locales/*.json.
func Load(logger *slog.Logger) (*Bundle, error) {
	b := NewBundle()
	for _, tag := range SupportedLanguages {
		lang := tag.String()
		path := "locales/" + lang + ".json"
		data, err := LocaleFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("i18n: не удалось прочитать %s: %w", path, err)
		}
		if err := b.LoadMessages(lang, data); err != nil {
			return nil, err
		}
		logger.Debug("i18n каталог загружен",
			slog.String("lang", lang),
			slog.Int("keys", len(b.catalogs[lang])),
		)
	}
	return b, nil
}

// LoadMessages загружает плоский JSON-каталог {"key": "перевод"}.
func (b *Bundle) LoadMessages(lang string, data []byte) error {
	var messages map[string]string
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("i18n: ошибка парсинга каталога %s: %w", lang, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalogs[lang] = messages
	return nil
}

// Translate возвращает перевод. Отсутствующий ключ ищется в английском
// каталоге, затем возвращается как есть.
func (b *Bundle) Translate(lang, key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if msg, ok := b.catalogs[lang][key]; ok {
		return msg
	}
	if msg, ok := b.catalogs[DefaultLang][key]; ok {
		return msg
	}
	return key
}

// Translatef — Translate с подстановкой аргументов.
func (b *Bundle) Translatef(lang, key string, args ...any) string {
	tmpl := b.Translate(lang, key)
	if len(args) == 0 {
		return tmpl
	}
	return formatFunc(tmpl, args...)
}

// FormatDate форматирует дату в длинной локализованной форме
// ("Jan 1, 2000" для en, "1 янв. 2000 г." для ru).
func (b *Bundle) FormatDate(lang string, d model.Date) string {
	if d.IsZero() {
		return ""
	}
	t := d.Time()
	month := b.Translate(lang, "month."+strconv.Itoa(int(t.Month())))
	return b.Translatef(lang, "date.long", month, t.Day(), t.Year())
}

// For возвращает Localizer, привязанный к языку.
func (b *Bundle) For(lang string) Localizer {
	return Localizer{bundle: b, Lang: lang}
}

// Localizer — переводы одного языка, используется в шаблонах.
type Localizer struct {
	bundle *Bundle
	Lang   string
}

// T возвращает перевод ключа.
func (l Localizer) T(key string) string {
	return l.bundle.Translate(l.Lang, key)
}

// Date форматирует дату на языке Localizer.
func (l Localizer) Date(d model.Date) string {
	return l.bundle.FormatDate(l.Lang, d)
}

// formatFunc скрывает fmt.Sprintf от printf-анализатора go vet:
// формат-строки приходят из JSON-каталогов.
//
//nolint:govet // формат-строка из каталога
var formatFunc = fmt.Sprintf

// WithLang помещает язык в контекст.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, contextKeyLang, lang)
}

// LangFromContext извлекает язык из контекста. Default: "en".
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(contextKeyLang).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}

// IsSupported проверяет, что язык есть среди поддерживаемых.
func IsSupported(lang string) bool {
	for _, tag := range SupportedLanguages {
		if tag.String() == lang {
			return true
		}
	}
	return false
}

// MatchLanguage выбирает язык по заголовку Accept-Language.
func MatchLanguage(acceptLanguage string) string {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	base, _ := tag.Base()
	if strings.HasPrefix(base.String(), "ru") {
		return "ru"
	}
	return DefaultLang
}
