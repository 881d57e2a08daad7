// Пакет pages — HTML-страницы и фрагменты Records UI.
// Каждая страница — templ.Component поверх встроенных html/template шаблонов;
// переводы берутся из i18n по языку контекста.
package pages

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
	"github.com/bigkaa/goartstore/records-ui/internal/service"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/i18n"
)

//go:embed templates/*.html
var templatesFS embed.FS

// view — данные шаблона: локализатор и данные страницы.
type view struct {
	L i18n.Localizer
	D any
}

// layoutView — данные общего каркаса страницы.
type layoutView struct {
	Layout LayoutData
	Body   template.HTML
}

// Renderer собирает templ-компоненты страниц.
type Renderer struct {
	tmpl   *template.Template
	bundle *i18n.Bundle
}

// NewRenderer разбирает встроенные шаблоны.
func NewRenderer(bundle *i18n.Bundle) (*Renderer, error) {
	funcs := template.FuncMap{
		// sub передаёт вложенному шаблону локализатор вместе с частью данных
		"sub": func(v view, d any) view { return view{L: v.L, D: d} },
		"seq": func(n int) []int { return make([]int, n) },
	}
	tmpl, err := template.New("pages").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора шаблонов: %w", err)
	}
	return &Renderer{tmpl: tmpl, bundle: bundle}, nil
}

// DateFormatter возвращает форматтер длинной даты для языка контекста.
func (r *Renderer) DateFormatter(ctx context.Context) service.DateFormatter {
	loc := r.bundle.For(i18n.LangFromContext(ctx))
	return loc.Date
}

// Localizer возвращает переводы для языка контекста.
func (r *Renderer) Localizer(ctx context.Context) i18n.Localizer {
	return r.bundle.For(i18n.LangFromContext(ctx))
}

// fragment рендерит именованный шаблон без каркаса.
func (r *Renderer) fragment(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := r.tmpl.ExecuteTemplate(&buf, name, view{L: r.Localizer(ctx), D: data}); err != nil {
			return fmt.Errorf("рендеринг %s: %w", name, err)
		}
		_, err := buf.WriteTo(w)
		return err
	})
}

// page рендерит шаблон внутри общего каркаса.
func (r *Renderer) page(name string, layout LayoutData, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		loc := r.Localizer(ctx)
		layout.Lang = loc.Lang

		var body bytes.Buffer
		if err := r.tmpl.ExecuteTemplate(&body, name, view{L: loc, D: data}); err != nil {
			return fmt.Errorf("рендеринг %s: %w", name, err)
		}

		var buf bytes.Buffer
		//nolint:gosec // G203: тело собрано из экранированных шаблонов
		lv := layoutView{Layout: layout, Body: template.HTML(body.String())}
		if err := r.tmpl.ExecuteTemplate(&buf, "layout", view{L: loc, D: lv}); err != nil {
			return fmt.Errorf("рендеринг layout: %w", err)
		}
		_, err := buf.WriteTo(w)
		return err
	})
}

// --- Данные страниц ---

// LayoutData — данные каркаса: шапка, пользователь, язык.
type LayoutData struct {
	Title    string
	Username string
	Role     string
	Lang     string
	// Authenticated — показывать меню пользователя и кнопку выхода
	Authenticated bool
	// Live — подключать SSE-поток обновлений
	Live bool
}

// TableData — таблица записей.
type TableData struct {
	List      service.ListView
	CanMutate bool
}

// DialogData — диалог добавления/изменения записи.
type DialogData struct {
	State service.EditorState
}

// ConfirmData — подтверждение удаления.
type ConfirmData struct {
	Record model.Record
}

// ToastItem — одно уведомление в ленте.
type ToastItem struct {
	ID      uint64
	Kind    string
	Title   string
	Message string
}

// ActivityEntry — строка журнала изменений.
type ActivityEntry struct {
	Username   string
	Kind       string
	RecordID   string
	RecordName string
	Succeeded  bool
	At         string
}

// ActivityData — панель последних изменений.
type ActivityData struct {
	Entries []ActivityEntry
}

// DashboardData — главная страница.
type DashboardData struct {
	Table TableData
	// Dialog — открытый диалог или nil
	Dialog *DialogData
	// Confirm — открытое подтверждение удаления или nil
	Confirm *ConfirmData
	// Activity — панель журнала или nil, если журнал выключен
	Activity *ActivityData
	Toasts   []ToastItem
}

// LoginData — страница входа.
type LoginData struct {
	Toasts []ToastItem
}

// ErrorData — страница ошибки.
type ErrorData struct {
	Status     int
	MessageKey string
}

// --- Компоненты ---

// Dashboard — главная страница со списком записей.
func (r *Renderer) Dashboard(layout LayoutData, data DashboardData) templ.Component {
	return r.page("dashboard", layout, data)
}

// Login — страница входа.
func (r *Renderer) Login(layout LayoutData, data LoginData) templ.Component {
	return r.page("login", layout, data)
}

// ErrorPage — страница ошибки (403, 404).
func (r *Renderer) ErrorPage(layout LayoutData, data ErrorData) templ.Component {
	return r.page("error", layout, data)
}

// RecordsTable — фрагмент таблицы записей.
func (r *Renderer) RecordsTable(data TableData) templ.Component {
	return r.fragment("records-table", data)
}

// Dialog — фрагмент диалога записи.
func (r *Renderer) Dialog(data DialogData) templ.Component {
	return r.fragment("dialog", data)
}

// ConfirmDelete — фрагмент подтверждения удаления.
func (r *Renderer) ConfirmDelete(data ConfirmData) templ.Component {
	return r.fragment("confirm-delete", data)
}

// Toasts — фрагмент ленты уведомлений.
func (r *Renderer) Toasts(items []ToastItem) templ.Component {
	return r.fragment("toasts", items)
}

// Activity — фрагмент журнала изменений.
func (r *Renderer) Activity(data ActivityData) templ.Component {
	return r.fragment("activity", data)
}
