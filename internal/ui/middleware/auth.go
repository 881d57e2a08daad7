// Пакет middleware — HTTP middleware Records UI.
// auth.go — проверка cookie-сессии, обновление токена и привязка
// рабочей области сессии к запросу.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/rbac"
	"github.com/bigkaa/goartstore/records-ui/internal/service"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/auth"
)

type contextKey string

const (
	contextKeySession   contextKey = "ui_session"
	contextKeyWorkspace contextKey = "ui_workspace"
)

// LoginPath — страница входа для неаутентифицированных запросов.
const LoginPath = "/login"

// TokenRefresher обновляет access token по refresh token.
type TokenRefresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (*auth.TokenResponse, error)
}

// WorkspaceProvider выдаёт рабочую область по идентификатору сессии.
type WorkspaceProvider interface {
	GetOrCreate(id string) *service.Workspace
}

// UIAuth — middleware аутентификации Records UI.
type UIAuth struct {
	sessions   *auth.SessionManager
	refresher  TokenRefresher
	workspaces WorkspaceProvider
	logger     *slog.Logger
	now        func() time.Time
}

// NewUIAuth создаёт UIAuth.
func NewUIAuth(
	sessions *auth.SessionManager,
	refresher TokenRefresher,
	workspaces WorkspaceProvider,
	logger *slog.Logger,
) *UIAuth {
	return &UIAuth{
		sessions:   sessions,
		refresher:  refresher,
		workspaces: workspaces,
		logger:     logger.With(slog.String("component", "ui_auth_middleware")),
		now:        time.Now,
	}
}

// Middleware пропускает только запросы с действующей сессией.
// Токен сессии привязывается к рабочей области, область кладётся в контекст.
func (ua *UIAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := ua.sessions.GetSessionFromRequest(r)
			if err != nil {
				ua.logger.Debug("Ошибка чтения UI-сессии",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				ua.sessions.ClearSessionCookie(w)
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}
			if session == nil {
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}

			if session.IsExpired(ua.now()) {
				refreshed, refreshErr := ua.refreshSession(r.Context(), session)
				if refreshErr != nil {
					ua.logger.Info("Не удалось обновить сессию, redirect на login",
						slog.String("username", session.Username),
						slog.String("error", refreshErr.Error()),
					)
					ua.sessions.ClearSessionCookie(w)
					http.Redirect(w, r, LoginPath, http.StatusFound)
					return
				}
				if err := ua.sessions.SetSessionCookie(w, refreshed); err != nil {
					ua.logger.Error("Ошибка обновления session cookie",
						slog.String("error", err.Error()),
					)
					ua.sessions.ClearSessionCookie(w)
					http.Redirect(w, r, LoginPath, http.StatusFound)
					return
				}
				session = refreshed
				ua.logger.Debug("Сессия обновлена через refresh token",
					slog.String("username", session.Username),
				)
			}

			ws := ua.workspaces.GetOrCreate(session.SessionID)
			ws.Session.Bind(session.AccessToken, session.Expiry(), session.Username, session.Role)

			ctx := context.WithValue(r.Context(), contextKeySession, session)
			ctx = context.WithValue(ctx, contextKeyWorkspace, ws)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (ua *UIAuth) refreshSession(ctx context.Context, session *auth.SessionData) (*auth.SessionData, error) {
	tokenResp, err := ua.refresher.RefreshTokens(ctx, session.RefreshToken)
	if err != nil {
		return nil, err
	}

	refreshed := *session
	refreshed.AccessToken = tokenResp.AccessToken
	if tokenResp.RefreshToken != "" {
		refreshed.RefreshToken = tokenResp.RefreshToken
	}
	refreshed.ExpiresAt = ua.now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second).Unix()
	return &refreshed, nil
}

// ForbiddenHandler отвечает на запрос без права изменения.
type ForbiddenHandler func(w http.ResponseWriter, r *http.Request)

// RequireEditor пропускает только пользователей с правом изменения записей.
// Остальным в очередь уведомлений кладётся MsgForbidden и вызывается onDenied.
func RequireEditor(onDenied ForbiddenHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if session == nil || !rbac.CanMutate(session.Role) {
				if ws := WorkspaceFromContext(r.Context()); ws != nil {
					ws.Notices.Notify(service.NotifyError, service.MsgForbidden)
				}
				onDenied(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext извлекает SessionData из контекста запроса.
func SessionFromContext(ctx context.Context) *auth.SessionData {
	session, _ := ctx.Value(contextKeySession).(*auth.SessionData)
	return session
}

// WorkspaceFromContext извлекает рабочую область сессии из контекста.
func WorkspaceFromContext(ctx context.Context) *service.Workspace {
	ws, _ := ctx.Value(contextKeyWorkspace).(*service.Workspace)
	return ws
}

// WithSession кладёт сессию и рабочую область в контекст (для тестов обработчиков).
func WithSession(ctx context.Context, session *auth.SessionData, ws *service.Workspace) context.Context {
	ctx = context.WithValue(ctx, contextKeySession, session)
	return context.WithValue(ctx, contextKeyWorkspace, ws)
}
