// errors.go — ошибки сервисного слоя.
package service

import "errors"

var (
	// ErrMissingFields — в форме записи не заполнено имя или дата рождения.
	ErrMissingFields = errors.New("не заполнены обязательные поля")
	// ErrNoSession — у сессии нет действующего токена.
	ErrNoSession = errors.New("нет действующей сессии")
	// ErrStaleResponse — ответ устарел: уже применён результат более позднего запроса.
	ErrStaleResponse = errors.New("устаревший ответ списка записей")
	// ErrDialogClosed — операция над закрытым диалогом.
	ErrDialogClosed = errors.New("диалог записи закрыт")
	// ErrInvalidDate — дата рождения не в формате YYYY-MM-DD.
	ErrInvalidDate = errors.New("некорректная дата рождения")
	// ErrDialogMismatch — форма относится не к открытому сейчас диалогу.
	ErrDialogMismatch = errors.New("форма не соответствует открытому диалогу")
	// ErrForbidden — у роли нет права изменять записи.
	ErrForbidden = errors.New("недостаточно прав для изменения записей")
	// ErrRecordRequired — диалог редактирования открыт без записи.
	ErrRecordRequired = errors.New("для редактирования нужна запись")
)
