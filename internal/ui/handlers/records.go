// records.go — список записей, диалог добавления/изменения и удаление.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
	"github.com/bigkaa/goartstore/records-ui/internal/service"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/auth"
	uimiddleware "github.com/bigkaa/goartstore/records-ui/internal/ui/middleware"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/pages"
)

// msgRecordNotFound — запись для изменения или удаления отсутствует в снимке.
const msgRecordNotFound = "error.not_found"

// activityLimit — сколько записей журнала показывать на главной.
const activityLimit = 15

// activityTimeLayout — формат времени в журнале изменений.
const activityTimeLayout = "2006-01-02 15:04:05"

// JournalReader — чтение журнала изменений для панели активности.
type JournalReader interface {
	ListRecent(ctx context.Context, username string, limit int) ([]model.JournalEntry, error)
}

// RecordsHandler — обработчики страницы записей.
type RecordsHandler struct {
	renderer     *pages.Renderer
	skeletonRows int
	journal      JournalReader // может быть nil
	logger       *slog.Logger
}

// NewRecordsHandler создаёт RecordsHandler.
// journal может быть nil — тогда панель журнала не показывается.
func NewRecordsHandler(renderer *pages.Renderer, skeletonRows int, journal JournalReader, logger *slog.Logger) *RecordsHandler {
	return &RecordsHandler{
		renderer:     renderer,
		skeletonRows: skeletonRows,
		journal:      journal,
		logger:       logger.With(slog.String("component", "ui.records")),
	}
}

// HandleDashboard — GET /. Главная страница со списком записей.
// Открытый диалог сессии выводится вместе со страницей.
func (h *RecordsHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	session, ws := h.sessionScope(r)
	if ws == nil {
		http.Redirect(w, r, uimiddleware.LoginPath, http.StatusFound)
		return
	}
	ws.EnsureLoaded()

	data := pages.DashboardData{
		Table:    h.tableData(r, session, ws),
		Activity: h.activityData(r, session),
		Toasts:   toastItems(h.renderer, r, ws.Notices.Drain()),
	}
	if state := ws.Editor.State(); state.Open {
		data.Dialog = &pages.DialogData{State: state}
	}

	layout := layoutFor(session)
	layout.Title = h.renderer.Localizer(r.Context()).T("app.title")
	renderHTML(w, r, http.StatusOK, h.renderer.Dashboard(layout, data), h.logger)
}

// HandlePartialTable — GET /partials/records-table.
func (h *RecordsHandler) HandlePartialTable(w http.ResponseWriter, r *http.Request) {
	session, ws := h.sessionScope(r)
	if ws == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	ws.EnsureLoaded()
	renderHTML(w, r, http.StatusOK, h.renderer.RecordsTable(h.tableData(r, session, ws)), h.logger)
}

// HandlePartialToasts — GET /partials/toasts. Забирает накопленные уведомления.
func (h *RecordsHandler) HandlePartialToasts(w http.ResponseWriter, r *http.Request) {
	_, ws := h.sessionScope(r)
	if ws == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	renderHTML(w, r, http.StatusOK, h.renderer.Toasts(toastItems(h.renderer, r, ws.Notices.Drain())), h.logger)
}

// HandlePartialActivity — GET /partials/activity.
func (h *RecordsHandler) HandlePartialActivity(w http.ResponseWriter, r *http.Request) {
	data := h.activityData(r, uimiddleware.SessionFromContext(r.Context()))
	if data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	renderHTML(w, r, http.StatusOK, h.renderer.Activity(*data), h.logger)
}

// HandleNewRecord — GET /records/new. Открывает пустой диалог добавления.
func (h *RecordsHandler) HandleNewRecord(w http.ResponseWriter, r *http.Request) {
	_, ws := h.sessionScope(r)
	if ws == nil {
		http.Redirect(w, r, uimiddleware.LoginPath, http.StatusFound)
		return
	}
	_ = ws.Editor.Open(service.EditorAdd, nil)
	h.respondDialog(w, r, ws, http.StatusOK)
}

// HandleEditRecord — GET /records/{id}/edit. Открывает диалог с полями записи.
func (h *RecordsHandler) HandleEditRecord(w http.ResponseWriter, r *http.Request) {
	_, ws := h.sessionScope(r)
	if ws == nil {
		http.Redirect(w, r, uimiddleware.LoginPath, http.StatusFound)
		return
	}

	rec, ok := ws.Cache.Snapshot().Find(chi.URLParam(r, "id"))
	if !ok {
		h.notFound(w, r, ws)
		return
	}
	if err := ws.Editor.Open(service.EditorEdit, &rec); err != nil {
		h.logger.Error("Ошибка открытия диалога", slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	h.respondDialog(w, r, ws, http.StatusOK)
}

// HandleSubmitDialog — POST /records/dialog.
// Незаполненные поля или неверная дата оставляют диалог открытым (422).
// Форма другого диалога (mode и id не совпадают с открытым) отклоняется
// с 409, открытый диалог показывается заново. Иначе диалог закрывается
// сразу и изменение уходит в хранилище в фоне.
func (h *RecordsHandler) HandleSubmitDialog(w http.ResponseWriter, r *http.Request) {
	session, ws := h.sessionScope(r)
	if ws == nil {
		http.Redirect(w, r, uimiddleware.LoginPath, http.StatusFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Некорректная форма", http.StatusBadRequest)
		return
	}

	result, err := ws.Editor.SubmitForm(service.EditorForm{
		Mode:     service.EditorMode(r.PostForm.Get("mode")),
		RecordID: r.PostForm.Get("id"),
		Name:     r.PostForm.Get("name"),
		DOB:      r.PostForm.Get("dob"),
	})
	switch {
	case errors.Is(err, service.ErrMissingFields):
		ws.Notices.Notify(service.NotifyError, service.MsgMissingFields)
		h.respondDialog(w, r, ws, http.StatusUnprocessableEntity)
		return
	case errors.Is(err, service.ErrInvalidDate):
		ws.Notices.Notify(service.NotifyError, service.MsgInvalidDate)
		h.respondDialog(w, r, ws, http.StatusUnprocessableEntity)
		return
	case errors.Is(err, service.ErrDialogMismatch):
		h.logger.Info("Отклонена форма другого диалога",
			slog.String("username", session.Username),
			slog.String("form_mode", r.PostForm.Get("mode")),
			slog.String("form_id", r.PostForm.Get("id")),
		)
		ws.Notices.Notify(service.NotifyError, service.MsgDialogMismatch)
		h.respondDialog(w, r, ws, http.StatusConflict)
		return
	case errors.Is(err, service.ErrDialogClosed):
		h.respondClosed(w, r)
		return
	case err != nil:
		h.logger.Error("Ошибка отправки диалога", slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var m *model.PendingMutation
	switch result.Mode {
	case service.EditorEdit:
		m = ws.Executor.Update(result.RecordID, result.Payload)
	default:
		m = ws.Executor.Create(result.Payload)
	}
	h.logger.Info("Изменение записи отправлено",
		slog.String("username", session.Username),
		slog.String("kind", string(m.Kind)),
		slog.String("mutation_id", m.ID),
		slog.String("record_id", m.RecordID),
	)
	h.respondClosed(w, r)
}

// HandleCancelDialog — POST /records/dialog/cancel.
func (h *RecordsHandler) HandleCancelDialog(w http.ResponseWriter, r *http.Request) {
	_, ws := h.sessionScope(r)
	if ws != nil {
		ws.Editor.Cancel()
	}
	h.respondClosed(w, r)
}

// HandleConfirmDelete — GET /records/{id}/delete. Вопрос подтверждения удаления.
func (h *RecordsHandler) HandleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	session, ws := h.sessionScope(r)
	if ws == nil {
		http.Redirect(w, r, uimiddleware.LoginPath, http.StatusFound)
		return
	}

	rec, ok := ws.Cache.Snapshot().Find(chi.URLParam(r, "id"))
	if !ok {
		h.notFound(w, r, ws)
		return
	}
	data := pages.ConfirmData{Record: rec}

	if isPartial(r) {
		renderHTML(w, r, http.StatusOK, h.renderer.ConfirmDelete(data), h.logger)
		return
	}

	dash := pages.DashboardData{
		Table:    h.tableData(r, session, ws),
		Activity: h.activityData(r, session),
		Confirm:  &data,
	}
	layout := layoutFor(session)
	layout.Title = h.renderer.Localizer(r.Context()).T("confirm.delete_title")
	renderHTML(w, r, http.StatusOK, h.renderer.Dashboard(layout, dash), h.logger)
}

// HandleDelete — POST /records/{id}/delete.
// Запрос в хранилище уходит только при confirm=yes.
func (h *RecordsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	session, ws := h.sessionScope(r)
	if ws == nil {
		http.Redirect(w, r, uimiddleware.LoginPath, http.StatusFound)
		return
	}

	id := chi.URLParam(r, "id")
	confirmed := r.FormValue("confirm") == "yes"
	m, sent := ws.Executor.Delete(id, service.ConfirmFunc(func() bool { return confirmed }))
	if sent {
		h.logger.Info("Удаление записи отправлено",
			slog.String("username", session.Username),
			slog.String("mutation_id", m.ID),
			slog.String("record_id", id),
		)
	}
	h.respondClosed(w, r)
}

// HandleRefresh — POST /records/refresh. Повторная загрузка списка.
// Запрос идёт в фоне, результат приходит через SSE.
func (h *RecordsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	_, ws := h.sessionScope(r)
	if ws == nil {
		http.Redirect(w, r, uimiddleware.LoginPath, http.StatusFound)
		return
	}
	go func() {
		_ = ws.Refresh(context.WithoutCancel(r.Context()))
	}()
	h.respondClosed(w, r)
}

// HandleForbidden отвечает пользователю без права изменения.
// Уведомление уже поставлено в очередь middleware RequireEditor.
func (h *RecordsHandler) HandleForbidden(w http.ResponseWriter, r *http.Request) {
	session := uimiddleware.SessionFromContext(r.Context())
	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", service.ErrForbidden.Error()),
	}
	if session != nil {
		attrs = append(attrs, slog.String("username", session.Username), slog.String("role", session.Role))
	}
	h.logger.Warn("Отказано в изменении записей", attrs...)

	if isPartial(r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	renderHTML(w, r, http.StatusForbidden,
		h.renderer.ErrorPage(layoutFor(session), pages.ErrorData{Status: http.StatusForbidden, MessageKey: "error.forbidden"}),
		h.logger)
}

// --- Вспомогательные ---

func (h *RecordsHandler) sessionScope(r *http.Request) (*auth.SessionData, *service.Workspace) {
	return uimiddleware.SessionFromContext(r.Context()), uimiddleware.WorkspaceFromContext(r.Context())
}

func (h *RecordsHandler) tableData(r *http.Request, session *auth.SessionData, ws *service.Workspace) pages.TableData {
	return pages.TableData{
		List:      service.BuildListView(ws.Cache.View(), h.skeletonRows, h.renderer.DateFormatter(r.Context())),
		CanMutate: canMutate(session),
	}
}

// activityData читает журнал изменений пользователя сессии;
// ошибка чтения не ломает страницу.
func (h *RecordsHandler) activityData(r *http.Request, session *auth.SessionData) *pages.ActivityData {
	if h.journal == nil || session == nil || session.Username == "" {
		return nil
	}
	entries, err := h.journal.ListRecent(r.Context(), session.Username, activityLimit)
	if err != nil {
		h.logger.Warn("Ошибка чтения журнала изменений", slog.String("error", err.Error()))
		return &pages.ActivityData{}
	}

	data := &pages.ActivityData{Entries: make([]pages.ActivityEntry, 0, len(entries))}
	for _, e := range entries {
		data.Entries = append(data.Entries, pages.ActivityEntry{
			Username:   e.Username,
			Kind:       string(e.Kind),
			RecordID:   e.RecordID,
			RecordName: e.RecordName,
			Succeeded:  e.Outcome == model.MutationSucceeded,
			At:         e.ResolvedAt.Local().Format(activityTimeLayout),
		})
	}
	return data
}

// respondDialog отдаёт фрагмент диалога или, без скрипта, главную страницу.
func (h *RecordsHandler) respondDialog(w http.ResponseWriter, r *http.Request, ws *service.Workspace, status int) {
	if !isPartial(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	renderHTML(w, r, status, h.renderer.Dialog(pages.DialogData{State: ws.Editor.State()}), h.logger)
}

// respondClosed закрывает диалог: пустой фрагмент или возврат на главную.
func (h *RecordsHandler) respondClosed(w http.ResponseWriter, r *http.Request) {
	if isPartial(r) {
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *RecordsHandler) notFound(w http.ResponseWriter, r *http.Request, ws *service.Workspace) {
	ws.Notices.Notify(service.NotifyError, msgRecordNotFound)
	if isPartial(r) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
