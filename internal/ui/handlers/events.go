// events.go — SSE-поток обновлений рабочей области сессии.
// Каждый SSE-клиент обслуживается отдельной горутиной.
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	uimiddleware "github.com/bigkaa/goartstore/records-ui/internal/ui/middleware"
)

// Имена SSE-событий (слушает static/js/app.js).
const (
	eventRecordsChanged = "records-changed"
	eventNotification   = "notification"
)

// EventsHandler — обработчик SSE endpoint.
type EventsHandler struct {
	keepalive time.Duration
	logger    *slog.Logger
}

// NewEventsHandler создаёт EventsHandler.
// keepalive — интервал комментариев-пингов (RU_SSE_KEEPALIVE).
func NewEventsHandler(keepalive time.Duration, logger *slog.Logger) *EventsHandler {
	if keepalive <= 0 {
		keepalive = 15 * time.Second
	}
	return &EventsHandler{
		keepalive: keepalive,
		logger:    logger.With(slog.String("component", "ui.events")),
	}
}

// HandleRecordEvents обрабатывает GET /events/records.
// Сигналы кэша приходят как records-changed, новые уведомления как notification.
// Поток закрывается при отключении клиента или закрытии рабочей области.
func (h *EventsHandler) HandleRecordEvents(w http.ResponseWriter, r *http.Request) {
	session := uimiddleware.SessionFromContext(r.Context())
	ws := uimiddleware.WorkspaceFromContext(r.Context())
	if session == nil || ws == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Отключаем буферизацию Nginx

	// ResponseController находит http.Flusher через Unwrap() обёрток middleware.
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		http.Error(w, "SSE не поддерживается", http.StatusInternalServerError)
		return
	}

	records, cancelRecords := ws.Cache.Subscribe()
	defer cancelRecords()
	notices, cancelNotices := ws.Notices.Subscribe()
	defer cancelNotices()

	ctx := r.Context()
	h.logger.Debug("SSE клиент подключён",
		slog.String("username", session.Username),
		slog.String("remote_addr", r.RemoteAddr),
	)

	ws.EnsureLoaded()
	// Начальное событие: клиент мог пропустить изменения до подключения
	h.send(w, rc, eventRecordsChanged)
	if ws.Notices.Len() > 0 {
		h.send(w, rc, eventNotification)
	}

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE клиент отключён",
				slog.String("username", session.Username),
			)
			return
		case _, ok := <-records:
			if !ok {
				return
			}
			h.send(w, rc, eventRecordsChanged)
		case _, ok := <-notices:
			if !ok {
				return
			}
			h.send(w, rc, eventNotification)
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			_ = rc.Flush()
		}
	}
}

// send пишет событие без данных: клиент сам забирает фрагмент.
func (h *EventsHandler) send(w http.ResponseWriter, rc *http.ResponseController, event string) {
	fmt.Fprintf(w, "event: %s\ndata: {}\n\n", event)
	_ = rc.Flush()
}
