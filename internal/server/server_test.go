package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apihandlers "github.com/bigkaa/goartstore/records-ui/internal/api/handlers"
	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
	"github.com/bigkaa/goartstore/records-ui/internal/service"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/auth"
	uihandlers "github.com/bigkaa/goartstore/records-ui/internal/ui/handlers"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/goartstore/records-ui/internal/ui/middleware"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/pages"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type emptyStore struct{}

func (emptyStore) List(context.Context, string) ([]model.Record, error) { return nil, nil }
func (emptyStore) Create(context.Context, string, model.RecordPayload) (*model.Record, error) {
	return &model.Record{}, nil
}
func (emptyStore) Update(context.Context, string, string, model.RecordPayload) (*model.Record, error) {
	return &model.Record{}, nil
}
func (emptyStore) Delete(context.Context, string, string) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *auth.SessionManager) {
	t.Helper()
	logger := testLogger()

	bundle, err := i18n.Load(logger)
	if err != nil {
		t.Fatal(err)
	}
	renderer, err := pages.NewRenderer(bundle)
	if err != nil {
		t.Fatal(err)
	}
	sessions, err := auth.NewSessionManager("router-test", false)
	if err != nil {
		t.Fatal(err)
	}
	oidc := auth.NewOIDCClient(auth.OIDCConfig{KeycloakURL: "http://kc.invalid", Realm: "records", ClientID: "records-ui"})
	registry := service.NewWorkspaceRegistry(10, time.Minute, service.WorkspaceDeps{
		BaseCtx: context.Background(),
		Store:   emptyStore{},
		Logger:  logger,
	})

	router := NewRouter(logger, Components{
		Health: apihandlers.NewHealthHandler(),
		Auth: uihandlers.NewAuthHandler(uihandlers.AuthDeps{
			OIDC:       oidc,
			Sessions:   sessions,
			Workspaces: registry,
			Renderer:   renderer,
		}, logger),
		AuthMiddleware: uimiddleware.NewUIAuth(sessions, oidc, registry, logger),
		Records:        uihandlers.NewRecordsHandler(renderer, 3, nil, logger),
		Events:         uihandlers.NewEventsHandler(time.Second, logger),
	})
	return router, sessions
}

func TestRouter_PublicRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{http.MethodGet, "/health/live", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/health/ready", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/static/css/app.css", http.StatusOK, ""},
		{http.MethodGet, "/static/js/app.js", http.StatusOK, "EventSource"},
		{http.MethodGet, "/login", http.StatusOK, `href="/login/start"`},
		{http.MethodGet, "/no-such-page", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodDelete, "/login", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидается %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("тело не содержит %q", tt.wantBody)
			}
		})
	}
}

func TestRouter_PrivateRoutesRedirectToLogin(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/", "/partials/records-table", "/records/new", "/events/records"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
				t.Errorf("ответ = %d %q, ожидается redirect на /login", rec.Code, rec.Header().Get("Location"))
			}
		})
	}
}

func TestRouter_ViewerCannotOpenDialog(t *testing.T) {
	router, sessions := newTestRouter(t)

	w := httptest.NewRecorder()
	err := sessions.SetSessionCookie(w, &auth.SessionData{
		SessionID:   "sid-v",
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
		Username:    "victor",
		Role:        "viewer",
	})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/records/new", nil)
	req.AddCookie(w.Result().Cookies()[0])

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("статус = %d, ожидается 403", rec.Code)
	}
}
