// verifier.go — проверка подписи access token по JWKS Keycloak.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken — токен не прошёл проверку.
var ErrInvalidToken = errors.New("невалидный или просроченный токен")

// Identity — данные пользователя из проверенного access token.
type Identity struct {
	Subject   string
	Username  string
	Groups    []string
	Roles     []string
	ExpiresAt time.Time
}

type keycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string       `json:"preferred_username"`
	Groups            []string     `json:"groups,omitempty"`
	RealmAccess       *realmAccess `json:"realm_access,omitempty"`
}

type realmAccess struct {
	Roles []string `json:"roles"`
}

// TokenVerifier проверяет RS256-подпись, issuer и срок действия токена.
type TokenVerifier struct {
	jwks   keyfunc.Keyfunc
	issuer string
	leeway time.Duration
}

// VerifierConfig — параметры TokenVerifier.
type VerifierConfig struct {
	JWKSURL         string
	Issuer          string
	RefreshInterval time.Duration
	Leeway          time.Duration
	HTTPClient      *http.Client
}

// NewTokenVerifier создаёт TokenVerifier с фоновым обновлением JWKS.
// Недоступный при старте Keycloak не считается ошибкой.
func NewTokenVerifier(ctx context.Context, cfg VerifierConfig, logger *slog.Logger) (*TokenVerifier, error) {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    client,
		Ctx:                       ctx,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", cfg.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewTokenVerifierWithKeyfunc(k, cfg.Issuer, cfg.Leeway), nil
}

// NewTokenVerifierWithKeyfunc создаёт TokenVerifier с готовой keyfunc.
func NewTokenVerifierWithKeyfunc(kf keyfunc.Keyfunc, issuer string, leeway time.Duration) *TokenVerifier {
	return &TokenVerifier{jwks: kf, issuer: issuer, leeway: leeway}
}

// Verify проверяет access token и извлекает Identity.
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &keycloakClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.KeyfuncCtx(ctx), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	id := &Identity{
		Subject:  claims.Subject,
		Username: claims.PreferredUsername,
		Groups:   claims.Groups,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.RealmAccess != nil {
		id.Roles = claims.RealmAccess.Roles
	}
	if id.Username == "" {
		id.Username = id.Subject
	}
	return id, nil
}
