// oidc.go — OIDC-клиент Keycloak: Authorization Code Flow с PKCE (RFC 7636).
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OIDCClient — public client Keycloak (без client_secret).
type OIDCClient struct {
	clientID string
	// authorizeURL и logoutURL открываются браузером,
	// tokenURL вызывается сервером.
	authorizeURL string
	tokenURL     string
	logoutURL    string
	httpClient   *http.Client
}

// OIDCConfig — конфигурация OIDC-клиента.
type OIDCConfig struct {
	// KeycloakURL — адрес Keycloak для server-to-server вызовов.
	KeycloakURL string
	// BrowserKeycloakURL — адрес для redirect браузера. Пустой — KeycloakURL.
	BrowserKeycloakURL string
	Realm              string
	ClientID           string
	// HTTPClient — nil означает новый клиент с Timeout.
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewOIDCClient создаёт OIDC-клиент.
func NewOIDCClient(cfg OIDCConfig) *OIDCClient {
	browserURL := cfg.BrowserKeycloakURL
	if browserURL == "" {
		browserURL = cfg.KeycloakURL
	}
	backendBase := realmOIDCBase(cfg.KeycloakURL, cfg.Realm)
	browserBase := realmOIDCBase(browserURL, cfg.Realm)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &OIDCClient{
		clientID:     cfg.ClientID,
		authorizeURL: browserBase + "/auth",
		tokenURL:     backendBase + "/token",
		logoutURL:    browserBase + "/logout",
		httpClient:   httpClient,
	}
}

func realmOIDCBase(keycloakURL, realm string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect", strings.TrimRight(keycloakURL, "/"), realm)
}

// PKCEParams — пара code_verifier / code_challenge одного входа.
type PKCEParams struct {
	CodeVerifier  string
	CodeChallenge string
}

// GeneratePKCE генерирует code_verifier (43 символа base64url)
// и code_challenge = base64url(SHA-256(code_verifier)).
func GeneratePKCE() (*PKCEParams, error) {
	verifierBytes := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, verifierBytes); err != nil {
		return nil, fmt.Errorf("ошибка генерации code_verifier: %w", err)
	}
	codeVerifier := base64.RawURLEncoding.EncodeToString(verifierBytes)

	hash := sha256.Sum256([]byte(codeVerifier))
	return &PKCEParams{
		CodeVerifier:  codeVerifier,
		CodeChallenge: base64.RawURLEncoding.EncodeToString(hash[:]),
	}, nil
}

// GenerateState генерирует случайный state для CSRF-защиты.
func GenerateState() (string, error) {
	stateBytes := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, stateBytes); err != nil {
		return "", fmt.Errorf("ошибка генерации state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(stateBytes), nil
}

// AuthorizeURL формирует URL входа в Keycloak.
func (c *OIDCClient) AuthorizeURL(redirectURI, state, codeChallenge string) string {
	params := url.Values{
		"client_id":             {c.clientID},
		"response_type":         {"code"},
		"redirect_uri":          {redirectURI},
		"state":                 {state},
		"scope":                 {"openid profile groups"},
		"code_challenge":        {codeChallenge},
		"code_challenge_method": {"S256"},
	}
	return c.authorizeURL + "?" + params.Encode()
}

// LogoutURL формирует URL выхода из Keycloak.
func (c *OIDCClient) LogoutURL(idTokenHint, postLogoutRedirectURI string) string {
	params := url.Values{
		"client_id":                {c.clientID},
		"post_logout_redirect_uri": {postLogoutRedirectURI},
	}
	if idTokenHint != "" {
		params.Set("id_token_hint", idTokenHint)
	}
	return c.logoutURL + "?" + params.Encode()
}

// TokenResponse — ответ token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`  //nolint:gosec // G117: структура токена OAuth2
	RefreshToken string `json:"refresh_token"` //nolint:gosec // G117: структура токена OAuth2
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	IDToken      string `json:"id_token"`
}

// tokenError — тело ошибки token endpoint.
type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// ExchangeCode обменивает authorization code на токены.
func (c *OIDCClient) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenResponse, error) {
	return c.doTokenRequest(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.clientID},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"code_verifier": {codeVerifier},
	})
}

// RefreshTokens обновляет access token по refresh token.
func (c *OIDCClient) RefreshTokens(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token отсутствует")
	}
	return c.doTokenRequest(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"refresh_token": {refreshToken},
	})
}

func (c *OIDCClient) doTokenRequest(ctx context.Context, data url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации OIDC
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var tokenErr tokenError
		if jsonErr := json.Unmarshal(body, &tokenErr); jsonErr == nil && tokenErr.Error != "" {
			return nil, fmt.Errorf("token endpoint: %s (%s)", tokenErr.Error, tokenErr.Description)
		}
		return nil, fmt.Errorf("token endpoint вернул статус %d", resp.StatusCode)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("ошибка парсинга token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint не вернул access_token")
	}
	return &tokenResp, nil
}
