package recordstore

import (
	"errors"
	"fmt"
	"net/http"
)

// Ошибки клиента хранилища записей.
var (
	// ErrNotFound — запись не найдена (404).
	ErrNotFound = errors.New("запись не найдена")
	// ErrUnauthorized — токен отклонён хранилищем (401/403).
	ErrUnauthorized = errors.New("доступ к хранилищу запрещён")
	// ErrNoToken — у сессии нет токена.
	ErrNoToken = errors.New("токен сессии отсутствует")
	// ErrMalformedBody — тело ответа не разбирается.
	ErrMalformedBody = errors.New("некорректное тело ответа")
	// ErrContract — ответ не соответствует OpenAPI-контракту.
	ErrContract = errors.New("ответ нарушает контракт хранилища")
)

// StatusError — хранилище вернуло статус не из 2xx.
type StatusError struct {
	// Op — операция: list, create, update, delete
	Op string
	// StatusCode — HTTP-статус ответа
	StatusCode int
	// Body — начало тела ответа
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("хранилище %s вернуло статус %d: %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap позволяет сопоставлять статусы с ErrNotFound и ErrUnauthorized через errors.Is.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	default:
		return nil
	}
}
