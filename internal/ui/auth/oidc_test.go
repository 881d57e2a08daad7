package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// TestGeneratePKCE проверяет генерацию code_verifier и code_challenge.
func TestGeneratePKCE(t *testing.T) {
	params, err := GeneratePKCE()
	if err != nil {
		t.Fatalf("Ошибка генерации PKCE: %v", err)
	}
	if len(params.CodeVerifier) != 43 {
		t.Errorf("CodeVerifier length = %d, ожидается 43", len(params.CodeVerifier))
	}

	hash := sha256.Sum256([]byte(params.CodeVerifier))
	if params.CodeChallenge != base64.RawURLEncoding.EncodeToString(hash[:]) {
		t.Error("CodeChallenge не совпадает с SHA-256(code_verifier)")
	}

	other, _ := GeneratePKCE()
	if other.CodeVerifier == params.CodeVerifier {
		t.Error("два вызова GeneratePKCE вернули одинаковые code_verifier")
	}
}

// TestGenerateState проверяет генерацию state.
func TestGenerateState(t *testing.T) {
	s1, err := GenerateState()
	if err != nil || s1 == "" {
		t.Fatalf("GenerateState() = %q, %v", s1, err)
	}
	if s2, _ := GenerateState(); s1 == s2 {
		t.Error("два вызова GenerateState вернули одинаковые значения")
	}
}

// TestOIDCClientAuthorizeURL — authorize URL строится от browser URL.
func TestOIDCClientAuthorizeURL(t *testing.T) {
	client := NewOIDCClient(OIDCConfig{
		KeycloakURL:        "http://keycloak:8080",
		BrowserKeycloakURL: "https://sso.example.com/",
		Realm:              "records",
		ClientID:           "records-ui",
	})

	authURL := client.AuthorizeURL("http://localhost:8040/callback", "st", "ch")

	wantBase := "https://sso.example.com/realms/records/protocol/openid-connect/auth?"
	if !strings.HasPrefix(authURL, wantBase) {
		t.Fatalf("URL = %s, ожидается префикс %s", authURL, wantBase)
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("Ошибка парсинга URL: %v", err)
	}
	params := parsed.Query()
	want := map[string]string{
		"client_id":             "records-ui",
		"response_type":         "code",
		"redirect_uri":          "http://localhost:8040/callback",
		"state":                 "st",
		"code_challenge":        "ch",
		"code_challenge_method": "S256",
	}
	for key, v := range want {
		if got := params.Get(key); got != v {
			t.Errorf("%s = %q, ожидается %q", key, got, v)
		}
	}
	if !strings.Contains(params.Get("scope"), "openid") {
		t.Errorf("scope = %q", params.Get("scope"))
	}
}

// TestOIDCClientLogoutURL проверяет формирование logout URL.
func TestOIDCClientLogoutURL(t *testing.T) {
	client := NewOIDCClient(OIDCConfig{KeycloakURL: "https://kc.example.com", Realm: "records", ClientID: "records-ui"})

	parsed, err := url.Parse(client.LogoutURL("", "http://localhost:8040/login"))
	if err != nil {
		t.Fatalf("Ошибка парсинга URL: %v", err)
	}
	if parsed.Path != "/realms/records/protocol/openid-connect/logout" {
		t.Errorf("Path = %q", parsed.Path)
	}
	params := parsed.Query()
	if params.Has("id_token_hint") {
		t.Error("пустой id_token_hint не должен попадать в URL")
	}
	if params.Get("post_logout_redirect_uri") != "http://localhost:8040/login" {
		t.Errorf("post_logout_redirect_uri = %q", params.Get("post_logout_redirect_uri"))
	}
}

// TestOIDCClientExchangeCode проверяет обмен code на токены.
func TestOIDCClientExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realms/records/protocol/openid-connect/token" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("code_verifier") != "ver" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"bad code"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":300}`))
	}))
	defer srv.Close()

	client := NewOIDCClient(OIDCConfig{KeycloakURL: srv.URL, Realm: "records", ClientID: "records-ui"})

	resp, err := client.ExchangeCode(context.Background(), "code", "http://localhost/callback", "ver")
	if err != nil {
		t.Fatalf("ExchangeCode() ошибка: %v", err)
	}
	if resp.AccessToken != "at" || resp.RefreshToken != "rt" || resp.ExpiresIn != 300 {
		t.Errorf("TokenResponse = %+v", resp)
	}

	_, err = client.ExchangeCode(context.Background(), "code", "http://localhost/callback", "wrong")
	if err == nil || !strings.Contains(err.Error(), "invalid_grant") {
		t.Errorf("ExchangeCode() с неверным verifier = %v, ожидается invalid_grant", err)
	}
}

// TestOIDCClientRefreshWithoutToken — пустой refresh token отклоняется без запроса.
func TestOIDCClientRefreshWithoutToken(t *testing.T) {
	client := NewOIDCClient(OIDCConfig{KeycloakURL: "http://127.0.0.1:1", Realm: "records", ClientID: "records-ui"})
	if _, err := client.RefreshTokens(context.Background(), ""); err == nil {
		t.Error("RefreshTokens(\"\") не вернул ошибку")
	}
}
