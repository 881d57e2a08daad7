package service

import (
	"strings"
	"sync"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
)

// EditorMode — режим диалога записи.
type EditorMode string

const (
	EditorAdd  EditorMode = "add"
	EditorEdit EditorMode = "edit"
)

// EditorState — снимок состояния диалога для отрисовки.
type EditorState struct {
	Open     bool
	Mode     EditorMode
	RecordID string
	Name     string
	// DOB — значение поля даты в формате YYYY-MM-DD
	DOB string
	// ErrorKey — ключ сообщения о непрошедшей проверке, пустой если ошибок нет
	ErrorKey string
}

// EditorForm — отправленная форма диалога. Mode и RecordID приходят
// из скрытых полей и указывают, какой диалог видел пользователь.
type EditorForm struct {
	Mode     EditorMode
	RecordID string
	Name     string
	DOB      string
}

// EditorResult — данные, которые диалог отдаёт после успешной отправки.
type EditorResult struct {
	Mode     EditorMode
	RecordID string
	Payload  model.RecordPayload
}

// RecordEditor — диалог создания и редактирования записи.
//
// Open заполняет поля (пустые для add, из записи для edit), Submit
// проверяет обязательные поля и при успехе закрывает диалог сразу,
// не дожидаясь ответа хранилища. Cancel закрывает без результата.
// Между открытиями ничего не сохраняется.
type RecordEditor struct {
	mu    sync.Mutex
	state EditorState
}

// NewRecordEditor создаёт закрытый диалог.
func NewRecordEditor() *RecordEditor {
	return &RecordEditor{}
}

// Open открывает диалог. Для EditorEdit нужна запись initial.
func (e *RecordEditor) Open(mode EditorMode, initial *model.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch mode {
	case EditorEdit:
		if initial == nil {
			return ErrRecordRequired
		}
		e.state = EditorState{
			Open:     true,
			Mode:     EditorEdit,
			RecordID: initial.ID,
			Name:     initial.Name,
			DOB:      initial.DateOfBirth.String(),
		}
	default:
		e.state = EditorState{Open: true, Mode: EditorAdd}
	}
	return nil
}

// SetFields сохраняет текущие значения полей формы.
func (e *RecordEditor) SetFields(name, dob string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Open {
		return
	}
	e.state.Name = name
	e.state.DOB = dob
}

// Submit проверяет поля. При ErrMissingFields или ErrInvalidDate диалог
// остаётся открытым с введёнными значениями, при успехе закрывается
// и возвращает payload.
func (e *RecordEditor) Submit() (EditorResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Open {
		return EditorResult{}, ErrDialogClosed
	}
	return e.submitLocked()
}

// SubmitForm отправляет форму, только если она относится к открытому
// сейчас диалогу. Форма другого диалога (например, из второй вкладки)
// отклоняется с ErrDialogMismatch, состояние диалога не меняется.
func (e *RecordEditor) SubmitForm(form EditorForm) (EditorResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Open {
		return EditorResult{}, ErrDialogClosed
	}
	if form.Mode != e.state.Mode || form.RecordID != e.state.RecordID {
		return EditorResult{}, ErrDialogMismatch
	}
	e.state.Name = form.Name
	e.state.DOB = form.DOB
	return e.submitLocked()
}

func (e *RecordEditor) submitLocked() (EditorResult, error) {
	name := strings.TrimSpace(e.state.Name)
	dobRaw := strings.TrimSpace(e.state.DOB)
	if name == "" || dobRaw == "" {
		e.state.ErrorKey = MsgMissingFields
		return EditorResult{}, ErrMissingFields
	}
	dob, err := model.ParseFormDate(dobRaw)
	if err != nil {
		e.state.ErrorKey = MsgInvalidDate
		return EditorResult{}, ErrInvalidDate
	}

	result := EditorResult{
		Mode:     e.state.Mode,
		RecordID: e.state.RecordID,
		Payload:  model.RecordPayload{Name: name, DOB: dob},
	}
	e.state = EditorState{}
	return result, nil
}

// Cancel закрывает диалог без результата.
func (e *RecordEditor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = EditorState{}
}

// State возвращает текущее состояние диалога.
func (e *RecordEditor) State() EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
