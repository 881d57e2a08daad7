package service

import (
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
)

func longDate(d model.Date) string {
	return d.Time().Format("Jan 2, 2006")
}

func TestBuildListView_LoadingShowsFixedSkeleton(t *testing.T) {
	for _, n := range []int{5, 3} {
		lv := BuildListView(CacheView{State: model.LoadStateLoading}, n, longDate)
		if lv.Placeholders != n {
			t.Errorf("Placeholders = %d, ожидается %d", lv.Placeholders, n)
		}
		if len(lv.Rows) != 0 || lv.ErrorPanel || lv.StaleBanner {
			t.Errorf("ListView = %+v", lv)
		}
	}
}

func TestBuildListView_ReadyRows(t *testing.T) {
	snap := &model.Snapshot{
		Records: []model.Record{
			{ID: "a", Name: "Ann", DateOfBirth: model.NewDate(2000, time.January, 1), Age: 24},
			{ID: "b", Name: "Bob", DateOfBirth: model.NewDate(1990, time.December, 25), Age: 33},
		},
	}

	lv := BuildListView(CacheView{State: model.LoadStateReady, Snapshot: snap}, 5, longDate)

	if lv.Placeholders != 0 {
		t.Errorf("Placeholders = %d, ожидается 0", lv.Placeholders)
	}
	if len(lv.Rows) != 2 {
		t.Fatalf("строк = %d, ожидается 2", len(lv.Rows))
	}
	first := lv.Rows[0]
	if first.Name != "Ann" || first.DOB != "Jan 1, 2000" || first.Age != 24 || first.DOBValue != "2000-01-01" {
		t.Errorf("Rows[0] = %+v", first)
	}
	if lv.Rows[1].ID != "b" {
		t.Errorf("порядок строк нарушен: %+v", lv.Rows)
	}
}

func TestBuildListView_ReadyEmpty(t *testing.T) {
	lv := BuildListView(CacheView{State: model.LoadStateReady, Snapshot: &model.Snapshot{}}, 5, longDate)
	if !lv.Empty || len(lv.Rows) != 0 {
		t.Errorf("ListView = %+v, ожидается пустой список", lv)
	}
}

func TestBuildListView_ErrorWithSnapshotShowsStaleBanner(t *testing.T) {
	snap := &model.Snapshot{Records: []model.Record{{ID: "a", Name: "Ann"}}}
	lv := BuildListView(CacheView{
		State:    model.LoadStateError,
		Snapshot: snap,
		Stale:    true,
		Err:      errors.New("boom"),
	}, 5, longDate)

	if !lv.StaleBanner || lv.ErrorPanel {
		t.Errorf("ListView = %+v, ожидается баннер устаревших данных", lv)
	}
	if len(lv.Rows) != 1 {
		t.Errorf("строк = %d, ожидается 1 (прежний снимок)", len(lv.Rows))
	}
}

func TestBuildListView_ErrorWithoutSnapshot(t *testing.T) {
	lv := BuildListView(CacheView{State: model.LoadStateError, Err: errors.New("boom")}, 5, longDate)
	if !lv.ErrorPanel || lv.StaleBanner || len(lv.Rows) != 0 {
		t.Errorf("ListView = %+v, ожидается панель ошибки", lv)
	}
}

func TestBuildListView_Refreshing(t *testing.T) {
	snap := &model.Snapshot{Records: []model.Record{{ID: "a"}}}
	lv := BuildListView(CacheView{State: model.LoadStateReady, Snapshot: snap, Stale: true}, 5, longDate)
	if !lv.Refreshing || lv.StaleBanner {
		t.Errorf("ListView = %+v", lv)
	}
}
