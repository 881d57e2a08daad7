package i18n

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
)

func loadBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := Load(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}
	return b
}

func TestFormatDate(t *testing.T) {
	b := loadBundle(t)
	d := model.NewDate(2000, time.January, 1)

	tests := []struct {
		lang string
		want string
	}{
		{"en", "Jan 1, 2000"},
		{"ru", "1 янв. 2000 г."},
		{"de", "Jan 1, 2000"},
	}
	for _, tt := range tests {
		if got := b.FormatDate(tt.lang, d); got != tt.want {
			t.Errorf("FormatDate(%s) = %q, ожидается %q", tt.lang, got, tt.want)
		}
	}
	if got := b.FormatDate("en", model.Date{}); got != "" {
		t.Errorf("FormatDate(нулевая дата) = %q", got)
	}
}

func TestTranslateFallback(t *testing.T) {
	b := NewBundle()
	_ = b.LoadMessages("en", []byte(`{"a":"A","b":"B %d"}`))
	_ = b.LoadMessages("ru", []byte(`{"a":"А"}`))

	if got := b.Translate("ru", "a"); got != "А" {
		t.Errorf("Translate(ru, a) = %q", got)
	}
	if got := b.Translatef("ru", "b", 7); got != "B 7" {
		t.Errorf("fallback на en = %q", got)
	}
	if got := b.Translate("ru", "missing"); got != "missing" {
		t.Errorf("отсутствующий ключ = %q", got)
	}
}

// TestCatalogsHaveSameKeys — каталоги en и ru содержат одинаковые ключи.
func TestCatalogsHaveSameKeys(t *testing.T) {
	read := func(lang string) map[string]string {
		data, err := LocaleFS.ReadFile("locales/" + lang + ".json")
		if err != nil {
			t.Fatal(err)
		}
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatal(err)
		}
		return m
	}
	en, ru := read("en"), read("ru")
	for k := range en {
		if _, ok := ru[k]; !ok {
			t.Errorf("ключ %q отсутствует в ru.json", k)
		}
	}
	for k := range ru {
		if _, ok := en[k]; !ok {
			t.Errorf("ключ %q отсутствует в en.json", k)
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		accept string
		want   string
	}{
		{"по умолчанию", "", "", "en"},
		{"cookie", "ru", "en-US", "ru"},
		{"неизвестный cookie", "de", "ru-RU,ru;q=0.9", "ru"},
		{"Accept-Language", "", "ru-RU,en;q=0.5", "ru"},
		{"неподдерживаемый", "", "fr-FR", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: LangCookieName, Value: tt.cookie})
			}
			if tt.accept != "" {
				r.Header.Set("Accept-Language", tt.accept)
			}
			if got := DetectLanguage(r); got != tt.want {
				t.Errorf("DetectLanguage() = %q, ожидается %q", got, tt.want)
			}
		})
	}
}

func TestMiddlewareSetsContext(t *testing.T) {
	var got string
	h := Middleware()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = LangFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: LangCookieName, Value: "ru"})
	h.ServeHTTP(httptest.NewRecorder(), r)

	if got != "ru" {
		t.Errorf("язык в контексте = %q, ожидается ru", got)
	}
}
