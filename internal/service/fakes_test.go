package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var errStore = errors.New("хранилище недоступно")

// storeToday — «текущая дата» fakeStore, от неё считается возраст.
var storeToday = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

// storeAge считает возраст так, как это делает хранилище.
func storeAge(dob model.Date) int {
	t := dob.Time()
	age := storeToday.Year() - t.Year()
	if storeToday.YearDay() < t.YearDay() {
		age--
	}
	return age
}

// fakeStore — управляемое хранилище записей для тестов.
type fakeStore struct {
	mu      sync.Mutex
	records []model.Record
	nextID  int

	// listErr / mutateErr — ошибки, которые вернут операции
	listErr   error
	mutateErr error
	// listGate — если задан, List ждёт значения из канала перед ответом
	listGate chan []model.Record

	calls  []string
	tokens []string
}

func newFakeStore(records ...model.Record) *fakeStore {
	return &fakeStore{records: records}
}

func (s *fakeStore) record(call, token string) {
	s.calls = append(s.calls, call)
	s.tokens = append(s.tokens, token)
}

func (s *fakeStore) List(ctx context.Context, token string) ([]model.Record, error) {
	s.mu.Lock()
	s.record("list", token)
	gate := s.listGate
	err := s.listErr
	out := append([]model.Record(nil), s.records...)
	s.mu.Unlock()

	if gate != nil {
		select {
		case recs := <-gate:
			return recs, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *fakeStore) Create(ctx context.Context, token string, p model.RecordPayload) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("create", token)
	if s.mutateErr != nil {
		return nil, s.mutateErr
	}
	s.nextID++
	rec := model.Record{ID: "id-" + strconv.Itoa(s.nextID), Name: p.Name, DateOfBirth: p.DOB, Age: storeAge(p.DOB)}
	s.records = append(s.records, rec)
	return &rec, nil
}

func (s *fakeStore) Update(ctx context.Context, token, id string, p model.RecordPayload) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("update:"+id, token)
	if s.mutateErr != nil {
		return nil, s.mutateErr
	}
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Name = p.Name
			s.records[i].DateOfBirth = p.DOB
			s.records[i].Age = storeAge(p.DOB)
			rec := s.records[i]
			return &rec, nil
		}
	}
	return nil, errors.New("not found")
}

func (s *fakeStore) Delete(ctx context.Context, token, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("delete:"+id, token)
	if s.mutateErr != nil {
		return s.mutateErr
	}
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *fakeStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// staticSession — SessionHolder с фиксированным токеном.
type staticSession string

func (s staticSession) CurrentToken() (string, bool) { return string(s), s != "" }
func (s staticSession) IsAuthenticated() bool        { return s != "" }

// recordingNotifier запоминает уведомления.
type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (n *recordingNotifier) Notify(kind NotificationKind, key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notification{Kind: kind, MessageKey: key})
}

func (n *recordingNotifier) Keys() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	keys := make([]string, 0, len(n.items))
	for _, it := range n.items {
		keys = append(keys, it.MessageKey)
	}
	return keys
}

func person(id, name string, year int) model.Record {
	return model.Record{ID: id, Name: name, DateOfBirth: model.NewDate(year, time.January, 1), Age: 2024 - year}
}
