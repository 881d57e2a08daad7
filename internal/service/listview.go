package service

import (
	"time"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
)

// DateFormatter форматирует дату рождения для текущего языка.
type DateFormatter func(model.Date) string

// RowView — строка таблицы записей.
type RowView struct {
	ID   string
	Name string
	// DOB — дата в длинном формате ("Jan 1, 2000")
	DOB string
	// DOBValue — дата в формате YYYY-MM-DD
	DOBValue string
	Age      int
}

// ListView — модель отображения списка записей.
type ListView struct {
	State model.LoadState
	// Placeholders — число строк-заглушек в состоянии loading
	Placeholders int
	Rows         []RowView
	// Refreshing — снимок виден, идёт обновление после изменения
	Refreshing bool
	// StaleBanner — последнее обновление не удалось, показан прежний снимок
	StaleBanner bool
	// ErrorPanel — обновление не удалось, снимка нет
	ErrorPanel bool
	// Empty — список загружен и пуст
	Empty     bool
	FetchedAt time.Time
}

// BuildListView строит модель отображения из состояния кэша.
// В состоянии loading всегда выводится placeholders строк-заглушек,
// независимо от ожидаемого количества записей.
func BuildListView(view CacheView, placeholders int, format DateFormatter) ListView {
	lv := ListView{State: view.State}

	switch view.State {
	case model.LoadStateLoading:
		lv.Placeholders = placeholders
		return lv
	case model.LoadStateError:
		if view.Snapshot == nil {
			lv.ErrorPanel = true
			return lv
		}
		lv.StaleBanner = true
	case model.LoadStateReady:
		lv.Refreshing = view.Stale
	}

	snap := view.Snapshot
	if snap == nil {
		lv.Empty = true
		return lv
	}
	lv.FetchedAt = snap.FetchedAt
	lv.Rows = make([]RowView, 0, len(snap.Records))
	for _, r := range snap.Records {
		lv.Rows = append(lv.Rows, RowView{
			ID:       r.ID,
			Name:     r.Name,
			DOB:      format(r.DateOfBirth),
			DOBValue: r.DateOfBirth.String(),
			Age:      r.Age,
		})
	}
	lv.Empty = len(lv.Rows) == 0
	return lv
}
