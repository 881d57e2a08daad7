// Пакет model — доменные модели Records UI.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout — формат календарной даты в запросах и полях формы.
const DateLayout = "2006-01-02"

// ErrInvalidDate — строка не является календарной датой.
var ErrInvalidDate = errors.New("некорректная дата")

// Date — календарная дата без времени и часового пояса.
// Хранится как полночь UTC.
type Date struct {
	t time.Time
}

// NewDate создаёт дату из года, месяца и дня.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate разбирает "YYYY-MM-DD" или RFC 3339 timestamp.
// Из timestamp берётся календарная дата в UTC.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{t: t}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	t = t.UTC()
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// ParseFormDate принимает только "YYYY-MM-DD" — формат поля ввода даты.
func ParseFormDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{t: t}, nil
}

// IsZero сообщает, задана ли дата.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time возвращает дату как time.Time (полночь UTC).
func (d Date) Time() time.Time { return d.t }

// String возвращает "YYYY-MM-DD" или пустую строку для нулевой даты.
func (d Date) String() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// Equal сравнивает календарные даты.
func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }

// MarshalJSON кодирует дату как "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	if d.t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON принимает "YYYY-MM-DD" и ISO timestamp.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: ожидается строка", ErrInvalidDate)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Record — запись о человеке из удалённого хранилища.
// Age вычисляется сервером и никогда не отправляется клиентом.
type Record struct {
	// ID — идентификатор, присвоенный хранилищем
	ID string `json:"_id"`
	// Name — имя (непустое)
	Name string `json:"name"`
	// DateOfBirth — дата рождения
	DateOfBirth Date `json:"dob"`
	// Age — возраст в годах
	Age int `json:"age"`
}

// RecordPayload — тело запросов создания и изменения записи.
type RecordPayload struct {
	Name string `json:"name"`
	DOB  Date   `json:"dob"`
}

// Snapshot — неизменяемый снимок коллекции записей.
// Заменяется целиком, на месте не модифицируется.
type Snapshot struct {
	// Records — записи в порядке, полученном от хранилища
	Records []Record
	// FetchedAt — время получения
	FetchedAt time.Time
	// Seq — номер запроса, результатом которого является снимок
	Seq uint64
}

// Len возвращает количество записей (безопасно для nil).
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Find ищет запись по идентификатору.
func (s *Snapshot) Find(id string) (Record, bool) {
	if s == nil {
		return Record{}, false
	}
	for _, r := range s.Records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}
