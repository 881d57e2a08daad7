// language.go — обработчик переключения языка UI.
package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/bigkaa/goartstore/records-ui/internal/ui/i18n"
)

// HandleSetLanguage обрабатывает POST /set-language.
// Устанавливает cookie "lang" и перенаправляет обратно.
// Параметр lang: "en" или "ru" (из query или form).
func HandleSetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := r.FormValue("lang")
	if !i18n.IsSupported(lang) {
		lang = i18n.DefaultLang
	}

	http.SetCookie(w, &http.Cookie{
		Name:     i18n.LangCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60, // 1 год
		HttpOnly: false,               // JS может читать для UI-логики
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
	})

	http.Redirect(w, r, localReturnPath(r), http.StatusSeeOther)
}

// localReturnPath — путь из Referer того же хоста, иначе "/".
func localReturnPath(r *http.Request) string {
	ref, err := url.Parse(r.Header.Get("Referer"))
	if err != nil || ref.Path == "" || ref.Path[0] != '/' {
		return "/"
	}
	if ref.Host != "" && ref.Host != r.Host {
		return "/"
	}
	if len(ref.Path) > 1 && ref.Path[1] == '/' {
		return "/"
	}
	out := ref.Path
	if ref.RawQuery != "" {
		out += "?" + ref.RawQuery
	}
	return out
}
