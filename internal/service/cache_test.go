package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
)

func TestRecordCache_InitialLoading(t *testing.T) {
	c := NewRecordCache(newFakeStore(), staticSession("tok"), testLogger())

	v := c.View()
	if v.State != model.LoadStateLoading {
		t.Errorf("State = %s, ожидается loading", v.State)
	}
	if v.Snapshot != nil {
		t.Error("Snapshot до первой загрузки не nil")
	}
}

func TestRecordCache_RefreshSuccess(t *testing.T) {
	store := newFakeStore(person("a", "Ann", 2000), person("b", "Bob", 1990))
	c := NewRecordCache(store, staticSession("tok"), testLogger())

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh вернул ошибку: %v", err)
	}

	v := c.View()
	if v.State != model.LoadStateReady {
		t.Errorf("State = %s, ожидается ready", v.State)
	}
	if v.Snapshot.Len() != 2 || v.Snapshot.Records[0].Name != "Ann" {
		t.Errorf("Snapshot = %+v", v.Snapshot)
	}
	if v.Stale {
		t.Error("Stale = true после успешного обновления")
	}
	if store.tokens[0] != "tok" {
		t.Errorf("токен запроса = %q, ожидается tok", store.tokens[0])
	}
}

func TestRecordCache_FailureKeepsPriorSnapshot(t *testing.T) {
	store := newFakeStore(person("a", "Ann", 2000))
	c := NewRecordCache(store, staticSession("tok"), testLogger())
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("первый Refresh вернул ошибку: %v", err)
	}
	before := c.Snapshot()

	store.listErr = errStore
	err := c.Refresh(context.Background())
	if !errors.Is(err, errStore) {
		t.Fatalf("Refresh ошибка = %v, ожидается errStore", err)
	}

	v := c.View()
	if v.State != model.LoadStateError {
		t.Errorf("State = %s, ожидается error", v.State)
	}
	if v.Snapshot != before {
		t.Error("снимок заменён после ошибки обновления")
	}
	if !v.Stale {
		t.Error("Stale = false: прежний снимок должен быть помечен устаревшим")
	}
	// Повторов нет: ровно два обращения к хранилищу
	if n := len(store.Calls()); n != 2 {
		t.Errorf("обращений к хранилищу = %d, ожидается 2", n)
	}
}

func TestRecordCache_FailureWithoutSnapshot(t *testing.T) {
	store := newFakeStore()
	store.listErr = errStore
	c := NewRecordCache(store, staticSession("tok"), testLogger())

	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh не вернул ошибку")
	}
	v := c.View()
	if v.State != model.LoadStateError || v.Snapshot != nil || v.Stale {
		t.Errorf("View = %+v, ожидается error без снимка", v)
	}
}

func TestRecordCache_NoSession(t *testing.T) {
	store := newFakeStore(person("a", "Ann", 2000))
	c := NewRecordCache(store, staticSession(""), testLogger())

	err := c.Refresh(context.Background())
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("ошибка = %v, ожидается ErrNoSession", err)
	}
	if len(store.Calls()) != 0 {
		t.Error("запрос без токена дошёл до хранилища")
	}
}

// orderedStore отвечает на List только по команде теста, отдельно для каждого вызова.
type orderedStore struct {
	fakeStore
	mu    sync.Mutex
	gates []chan []model.Record
}

func (s *orderedStore) List(ctx context.Context, token string) ([]model.Record, error) {
	ch := make(chan []model.Record, 1)
	s.mu.Lock()
	s.gates = append(s.gates, ch)
	s.mu.Unlock()
	return <-ch, nil
}

func (s *orderedStore) waitCalls(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		got := len(s.gates)
		s.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("не дождались %d вызовов List", n)
}

func (s *orderedStore) respond(i int, recs []model.Record) {
	s.mu.Lock()
	ch := s.gates[i]
	s.mu.Unlock()
	ch <- recs
}

func TestRecordCache_OutOfOrderResponseDiscarded(t *testing.T) {
	store := &orderedStore{}
	c := NewRecordCache(store, staticSession("tok"), testLogger())

	errA := make(chan error, 1)
	errB := make(chan error, 1)

	go func() { errA <- c.Refresh(context.Background()) }()
	store.waitCalls(t, 1)
	go func() { errB <- c.Refresh(context.Background()) }()
	store.waitCalls(t, 2)

	// Более поздний запрос отвечает первым
	newer := []model.Record{person("a", "Ann", 2000), person("b", "Bob", 1990)}
	store.respond(1, newer)
	if err := <-errB; err != nil {
		t.Fatalf("Refresh B вернул ошибку: %v", err)
	}

	older := []model.Record{person("a", "Old Ann", 2000)}
	store.respond(0, older)
	if err := <-errA; !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("Refresh A ошибка = %v, ожидается ErrStaleResponse", err)
	}

	snap := c.Snapshot()
	if snap.Len() != 2 || snap.Records[0].Name != "Ann" {
		t.Errorf("снимок перезаписан устаревшим ответом: %+v", snap.Records)
	}
	if snap.Seq != 2 {
		t.Errorf("Seq = %d, ожидается 2", snap.Seq)
	}
}

func TestRecordCache_InvalidateMarksStale(t *testing.T) {
	store := &orderedStore{}
	c := NewRecordCache(store, staticSession("tok"), testLogger())

	go c.Refresh(context.Background())
	store.waitCalls(t, 1)
	store.respond(0, []model.Record{person("a", "Ann", 2000)})
	waitFor(t, func() bool { return c.View().State == model.LoadStateReady })

	done := make(chan error, 1)
	go func() { done <- c.Invalidate(context.Background()) }()
	store.waitCalls(t, 2)

	if v := c.View(); !v.Stale || v.Snapshot.Len() != 1 {
		t.Errorf("во время обновления View = %+v, ожидается устаревший снимок", v)
	}

	store.respond(1, []model.Record{person("a", "Ann", 2000), person("c", "Cid", 1980)})
	if err := <-done; err != nil {
		t.Fatalf("Invalidate вернул ошибку: %v", err)
	}
	if v := c.View(); v.Stale || v.Snapshot.Len() != 2 {
		t.Errorf("после обновления View = %+v", v)
	}
}

func TestRecordCache_SubscribeSignalsChange(t *testing.T) {
	c := NewRecordCache(newFakeStore(person("a", "Ann", 2000)), staticSession("tok"), testLogger())
	ch, cancel := c.Subscribe()
	defer cancel()

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh вернул ошибку: %v", err)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("подписчик не получил сигнал")
	}

	c.Close()
	if _, ok := <-ch; ok {
		t.Error("канал подписки не закрыт после Close")
	}
}

func TestRecordCache_EnsureLoadedOnce(t *testing.T) {
	store := newFakeStore(person("a", "Ann", 2000))
	c := NewRecordCache(store, staticSession("tok"), testLogger())

	for i := 0; i < 3; i++ {
		c.EnsureLoaded(context.Background(), nil)
	}
	waitFor(t, func() bool { return c.View().State == model.LoadStateReady })
	time.Sleep(10 * time.Millisecond)

	if n := len(store.Calls()); n != 1 {
		t.Errorf("обращений к хранилищу = %d, ожидается 1", n)
	}
}

// waitFor ждёт выполнения условия до 2 секунд.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("условие не выполнилось за 2s")
}
