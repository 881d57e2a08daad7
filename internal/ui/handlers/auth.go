// auth.go — вход через Keycloak OIDC (Authorization Code + PKCE) и выход.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/rbac"
	"github.com/bigkaa/goartstore/records-ui/internal/service"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/auth"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/pages"
)

// OIDCProvider — операции OIDC-клиента, нужные обработчикам входа.
type OIDCProvider interface {
	AuthorizeURL(redirectURI, state, codeChallenge string) string
	ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*auth.TokenResponse, error)
	LogoutURL(idTokenHint, postLogoutRedirectURI string) string
}

// TokenVerifier проверяет access token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Identity, error)
}

// WorkspaceRemover закрывает рабочую область сессии при выходе.
type WorkspaceRemover interface {
	Remove(id string)
}

// AuthHandler — обработчики входа и выхода.
type AuthHandler struct {
	oidc         OIDCProvider
	verifier     TokenVerifier
	sessions     *auth.SessionManager
	workspaces   WorkspaceRemover
	renderer     *pages.Renderer
	editorGroups []string
	viewerGroups []string
	logger       *slog.Logger
}

// AuthDeps — зависимости AuthHandler.
type AuthDeps struct {
	OIDC         OIDCProvider
	Verifier     TokenVerifier
	Sessions     *auth.SessionManager
	Workspaces   WorkspaceRemover
	Renderer     *pages.Renderer
	EditorGroups []string
	ViewerGroups []string
}

// NewAuthHandler создаёт AuthHandler.
func NewAuthHandler(deps AuthDeps, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		oidc:         deps.OIDC,
		verifier:     deps.Verifier,
		sessions:     deps.Sessions,
		workspaces:   deps.Workspaces,
		renderer:     deps.Renderer,
		editorGroups: deps.EditorGroups,
		viewerGroups: deps.ViewerGroups,
		logger:       logger.With(slog.String("component", "ui_auth")),
	}
}

// HandleLoginPage — GET /login.
// Пользователь с сессией уходит на главную. После выхода показывается уведомление.
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if session, err := h.sessions.GetSessionFromRequest(r); err == nil && session != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	var data pages.LoginData
	if r.URL.Query().Get("logged_out") == "1" {
		data.Toasts = toastItems(h.renderer, r, []service.Notification{{
			ID:         1,
			Kind:       service.NotifySuccess,
			MessageKey: service.MsgLogoutSucceeded,
		}})
	}
	renderHTML(w, r, http.StatusOK, h.renderer.Login(pages.LayoutData{}, data), h.logger)
}

// HandleLoginStart — GET /login/start.
// Сохраняет PKCE и state в cookie и отправляет браузер в Keycloak.
func (h *AuthHandler) HandleLoginStart(w http.ResponseWriter, r *http.Request) {
	pkce, err := auth.GeneratePKCE()
	if err != nil {
		h.logger.Error("Ошибка генерации PKCE", slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error("Ошибка генерации state", slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	sd := &auth.StateData{State: state, CodeVerifier: pkce.CodeVerifier}
	if err := h.sessions.SetStateCookie(w, sd); err != nil {
		h.logger.Error("Ошибка установки state cookie", slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.oidc.AuthorizeURL(callbackURL(r), state, pkce.CodeChallenge), http.StatusFound)
}

// HandleCallback — GET /callback.
// Обменивает code на токены, проверяет access token, создаёт сессию.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		h.logger.Warn("Keycloak вернул ошибку авторизации",
			slog.String("error", errCode),
			slog.String("description", q.Get("error_description")),
		)
		http.Error(w, "Ошибка авторизации: "+errCode, http.StatusBadRequest)
		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		http.Error(w, "Отсутствует code или state", http.StatusBadRequest)
		return
	}

	sd, err := h.sessions.PopStateCookie(w, r)
	if err != nil {
		h.logger.Warn("State cookie отсутствует или повреждён", slog.String("error", err.Error()))
		http.Error(w, "Сессия авторизации истекла, попробуйте ещё раз", http.StatusBadRequest)
		return
	}
	if sd.State != state {
		h.logger.Warn("State mismatch", slog.String("remote_addr", r.RemoteAddr))
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	tokenResp, err := h.oidc.ExchangeCode(r.Context(), code, callbackURL(r), sd.CodeVerifier)
	if err != nil {
		h.logger.Error("Ошибка обмена code на tokens", slog.String("error", err.Error()))
		http.Error(w, "Ошибка аутентификации", http.StatusBadGateway)
		return
	}

	identity, err := h.verifier.Verify(r.Context(), tokenResp.AccessToken)
	if err != nil {
		h.logger.Warn("Access token не прошёл проверку", slog.String("error", err.Error()))
		http.Error(w, "Ошибка аутентификации", http.StatusUnauthorized)
		return
	}

	role := h.resolveRole(identity)
	if role == "" {
		h.logger.Warn("У пользователя нет роли Records UI",
			slog.String("username", identity.Username),
			slog.Any("groups", identity.Groups),
		)
		renderHTML(w, r, http.StatusForbidden,
			h.renderer.ErrorPage(pages.LayoutData{}, pages.ErrorData{Status: http.StatusForbidden, MessageKey: "error.forbidden"}),
			h.logger)
		return
	}

	session := &auth.SessionData{
		SessionID:    auth.NewSessionID(),
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    identity.ExpiresAt.Unix(),
		Username:     identity.Username,
		Role:         role,
		Groups:       identity.Groups,
	}
	if err := h.sessions.SetSessionCookie(w, session); err != nil {
		h.logger.Error("Ошибка установки session cookie", slog.String("error", err.Error()))
		http.Error(w, "Ошибка создания сессии", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Пользователь аутентифицирован",
		slog.String("username", session.Username),
		slog.String("role", session.Role),
	)
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLogout — POST /logout.
// Закрывает рабочую область, очищает cookie и завершает сессию Keycloak.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if session, err := h.sessions.GetSessionFromRequest(r); err == nil && session != nil {
		h.workspaces.Remove(session.SessionID)
		h.logger.Info("Пользователь выполняет logout", slog.String("username", session.Username))
	}
	h.sessions.ClearSessionCookie(w)

	http.Redirect(w, r, h.oidc.LogoutURL("", baseURL(r)+"/login?logged_out=1"), http.StatusFound)
}

// resolveRole вычисляет роль по группам, затем по realm-ролям.
func (h *AuthHandler) resolveRole(id *auth.Identity) string {
	if role := rbac.MapGroupsToRole(id.Groups, h.editorGroups, h.viewerGroups); role != "" {
		return role
	}
	var roles []string
	for _, r := range id.Roles {
		if rbac.IsValidRole(r) {
			roles = append(roles, r)
		}
	}
	return rbac.HighestRole(roles)
}

func callbackURL(r *http.Request) string {
	return baseURL(r) + "/callback"
}

// baseURL — scheme://host запроса с учётом X-Forwarded-* от reverse proxy.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}

	host := r.Host
	if fwdHost := r.Header.Get("X-Forwarded-Host"); fwdHost != "" {
		host = strings.TrimSpace(strings.Split(fwdHost, ",")[0])
	}

	return (&url.URL{Scheme: scheme, Host: host}).String()
}
