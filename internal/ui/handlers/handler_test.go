package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
	"github.com/bigkaa/goartstore/records-ui/internal/service"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/auth"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/goartstore/records-ui/internal/ui/middleware"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/pages"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memStore — хранилище записей в памяти.
type memStore struct {
	mu      sync.Mutex
	records []model.Record
	nextID  int
	calls   []string
}

func (s *memStore) List(context.Context, string) ([]model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "list")
	return append([]model.Record(nil), s.records...), nil
}

func (s *memStore) Create(_ context.Context, _ string, p model.RecordPayload) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "create")
	s.nextID++
	rec := model.Record{ID: "new-" + strconv.Itoa(s.nextID), Name: p.Name, DateOfBirth: p.DOB}
	s.records = append(s.records, rec)
	return &rec, nil
}

func (s *memStore) Update(_ context.Context, _, id string, p model.RecordPayload) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "update:"+id)
	rec := model.Record{ID: id, Name: p.Name, DateOfBirth: p.DOB}
	return &rec, nil
}

func (s *memStore) Delete(_ context.Context, _, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "delete:"+id)
	return nil
}

func (s *memStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *memStore) has(call string) bool {
	for _, c := range s.Calls() {
		if c == call {
			return true
		}
	}
	return false
}

func newTestRenderer(t *testing.T) *pages.Renderer {
	t.Helper()
	bundle, err := i18n.Load(testLogger())
	if err != nil {
		t.Fatalf("i18n.Load() ошибка: %v", err)
	}
	r, err := pages.NewRenderer(bundle)
	if err != nil {
		t.Fatalf("NewRenderer() ошибка: %v", err)
	}
	return r
}

// newWorkspace создаёт рабочую область с загруженным списком.
func newWorkspace(t *testing.T, store *memStore) *service.Workspace {
	t.Helper()
	ws := service.NewWorkspace("sid-1", service.WorkspaceDeps{
		BaseCtx: context.Background(),
		Store:   store,
		Logger:  testLogger(),
	})
	ws.Session.Bind("tok", time.Now().Add(time.Hour), "alice", "editor")
	if err := ws.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() ошибка: %v", err)
	}
	t.Cleanup(ws.Close)
	return ws
}

func editorSession() *auth.SessionData {
	return &auth.SessionData{
		SessionID:   "sid-1",
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
		Username:    "alice",
		Role:        "editor",
	}
}

// withScope подставляет сессию и рабочую область, как это делает UIAuth.
func withScope(session *auth.SessionData, ws *service.Workspace, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(uimiddleware.WithSession(r.Context(), session, ws)))
	})
}

func partial(r *http.Request) *http.Request {
	r.Header.Set(PartialHeader, "1")
	return r
}
