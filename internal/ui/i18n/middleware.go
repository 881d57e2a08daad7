// middleware.go — определение языка пользователя.
package i18n

import (
	"net/http"
)

// LangCookieName — cookie с выбранным языком.
const LangCookieName = "lang"

// Middleware помещает язык запроса в контекст.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithLang(r.Context(), DetectLanguage(r))))
		})
	}
}

// DetectLanguage определяет язык: cookie "lang" → Accept-Language → "en".
func DetectLanguage(r *http.Request) string {
	if cookie, err := r.Cookie(LangCookieName); err == nil && IsSupported(cookie.Value) {
		return cookie.Value
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return MatchLanguage(accept)
	}
	return DefaultLang
}
