package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/records-ui/internal/service"
)

// readEvent читает имя следующего SSE-события, пропуская keepalive.
func readEvent(t *testing.T, sc *bufio.Scanner) string {
	t.Helper()
	for sc.Scan() {
		line := sc.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			return name
		}
	}
	t.Fatalf("поток закрыт: %v", sc.Err())
	return ""
}

// waitEvent читает поток до события name.
// Фоновая первая загрузка может прислать лишний records-changed.
func waitEvent(t *testing.T, sc *bufio.Scanner, name string) {
	t.Helper()
	for i := 0; i < 5; i++ {
		if readEvent(t, sc) == name {
			return
		}
	}
	t.Fatalf("событие %q не получено", name)
}

func TestRecordEvents(t *testing.T) {
	store := &memStore{}
	ws := newWorkspace(t, store)
	h := NewEventsHandler(time.Hour, testLogger())
	srv := httptest.NewServer(withScope(editorSession(), ws, http.HandlerFunc(h.HandleRecordEvents)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	sc := bufio.NewScanner(resp.Body)

	if got := readEvent(t, sc); got != eventRecordsChanged {
		t.Fatalf("первое событие = %q, ожидается %q", got, eventRecordsChanged)
	}

	ws.Notices.Notify(service.NotifyInfo, service.MsgFetchFailed)
	waitEvent(t, sc, eventNotification)

	go func() { _ = ws.Refresh(context.Background()) }()
	waitEvent(t, sc, eventRecordsChanged)
}

func TestRecordEvents_ClosedWorkspaceEndsStream(t *testing.T) {
	ws := newWorkspace(t, &memStore{})
	h := NewEventsHandler(time.Hour, testLogger())
	srv := httptest.NewServer(withScope(editorSession(), ws, http.HandlerFunc(h.HandleRecordEvents)))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	sc := bufio.NewScanner(resp.Body)
	readEvent(t, sc)

	ws.Close()

	done := make(chan struct{})
	go func() {
		for sc.Scan() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("поток не закрыт после закрытия рабочей области")
	}
}

func TestRecordEvents_Unauthorized(t *testing.T) {
	h := NewEventsHandler(time.Second, testLogger())
	rec := httptest.NewRecorder()

	h.HandleRecordEvents(rec, httptest.NewRequest(http.MethodGet, "/events/records", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d, ожидается 401", rec.Code)
	}
}
