// Пакет handlers — HTTP-обработчики Records UI.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/rbac"
	"github.com/bigkaa/goartstore/records-ui/internal/service"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/auth"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/pages"
)

// PartialHeader — заголовок запроса фрагмента (ставит static/js/app.js).
const PartialHeader = "X-Partial"

// isPartial — запрос пришёл из скрипта и ждёт HTML-фрагмент, а не страницу.
func isPartial(r *http.Request) bool {
	return r.Header.Get(PartialHeader) == "1"
}

// renderHTML пишет templ-компонент в ответ с указанным статусом.
func renderHTML(w http.ResponseWriter, r *http.Request, status int, c templ.Component, logger *slog.Logger) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logger.Error("Ошибка рендеринга",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// layoutFor собирает данные каркаса для пользователя сессии.
func layoutFor(session *auth.SessionData) pages.LayoutData {
	if session == nil {
		return pages.LayoutData{}
	}
	return pages.LayoutData{
		Username:      session.Username,
		Role:          session.Role,
		Authenticated: true,
		Live:          true,
	}
}

// toastItems переводит уведомления очереди в элементы ленты.
func toastItems(renderer *pages.Renderer, r *http.Request, items []service.Notification) []pages.ToastItem {
	loc := renderer.Localizer(r.Context())
	out := make([]pages.ToastItem, 0, len(items))
	for _, n := range items {
		out = append(out, pages.ToastItem{
			ID:      n.ID,
			Kind:    string(n.Kind),
			Title:   loc.T(n.TitleKey()),
			Message: loc.T(n.MessageKey),
		})
	}
	return out
}

// canMutate — роль сессии разрешает изменения.
func canMutate(session *auth.SessionData) bool {
	return session != nil && rbac.CanMutate(session.Role)
}
