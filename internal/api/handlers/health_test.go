package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type staticChecker struct {
	name, status, msg string
}

func (c staticChecker) Name() string { return c.name }
func (c staticChecker) CheckReady() (string, string) { return c.status, c.msg }

type staticHealth map[string]bool

func (s staticHealth) Health() map[string]bool { return s }

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler()
	rec := httptest.NewRecorder()

	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидается 200", rec.Code)
	}
	var resp healthLiveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Service != "records-ui" {
		t.Errorf("ответ = %+v", resp)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []ReadinessChecker
		wantStatus string
		wantCode   int
	}{
		{
			name:       "все ok",
			checkers:   []ReadinessChecker{staticChecker{"a", "ok", ""}, staticChecker{"b", "ok", ""}},
			wantStatus: "ok",
			wantCode:   http.StatusOK,
		},
		{
			name:       "degraded",
			checkers:   []ReadinessChecker{staticChecker{"a", "ok", ""}, staticChecker{"b", "degraded", ""}},
			wantStatus: "degraded",
			wantCode:   http.StatusOK,
		},
		{
			name:       "fail",
			checkers:   []ReadinessChecker{staticChecker{"a", "fail", "down"}, staticChecker{"b", "degraded", ""}},
			wantStatus: "fail",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name:       "вспомогательная зависимость недоступна",
			checkers:   []ReadinessChecker{staticChecker{"a", "ok", ""}, Optional(staticChecker{"postgresql", "fail", ""})},
			wantStatus: "degraded",
			wantCode:   http.StatusOK,
		},
		{
			name:       "nil-проверки пропускаются",
			checkers:   []ReadinessChecker{nil, staticChecker{"a", "ok", ""}},
			wantStatus: "ok",
			wantCode:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checkers...)
			rec := httptest.NewRecorder()

			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("статус = %d, ожидается %d", rec.Code, tt.wantCode)
			}
			var resp healthReadyResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, ожидается %q", resp.Status, tt.wantStatus)
			}
		})
	}
}

func TestDependencyChecker(t *testing.T) {
	tests := []struct {
		name   string
		health staticHealth
		want   string
	}{
		{name: "доступен", health: staticHealth{"record-store:store:443": true}, want: "ok"},
		{name: "недоступен", health: staticHealth{"record-store:store:443": false}, want: "fail"},
		{name: "один из экземпляров недоступен", health: staticHealth{"record-store:a:80": true, "record-store:b:80": false}, want: "fail"},
		{name: "нет данных", health: staticHealth{"keycloak-jwks:kc:8080": true}, want: "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewDependencyChecker("record_store", "record-store", tt.health)
			if got, _ := c.CheckReady(); got != tt.want {
				t.Errorf("CheckReady() = %q, ожидается %q", got, tt.want)
			}
		})
	}
}

func TestKeycloakReadinessChecker(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "ключи есть", status: http.StatusOK, body: `{"keys":[{"kid":"1"}]}`, want: "ok"},
		{name: "нет ключей", status: http.StatusOK, body: `{"keys":[]}`, want: "degraded"},
		{name: "невалидный JSON", status: http.StatusOK, body: `<html>`, want: "degraded"},
		{name: "ошибка сервера", status: http.StatusInternalServerError, body: ``, want: "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewKeycloakReadinessChecker(srv.URL, nil, time.Second)
			if got, msg := c.CheckReady(); got != tt.want {
				t.Errorf("CheckReady() = %q (%s), ожидается %q", got, msg, tt.want)
			}
		})
	}
}

func TestKeycloakReadinessChecker_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewKeycloakReadinessChecker(url, nil, time.Second)
	if got, _ := c.CheckReady(); got != "fail" {
		t.Errorf("CheckReady() = %q, ожидается fail", got)
	}
}
