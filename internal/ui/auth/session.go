// Пакет auth — аутентификация и сессии Records UI.
// Cookie шифруются AES-256-GCM, вход через Keycloak OIDC (PKCE),
// access token проверяется по JWKS.
package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionCookieName — cookie с зашифрованной сессией.
	SessionCookieName = "records_session"
	// StateCookieName — cookie с PKCE state на время входа.
	StateCookieName = "records_auth_state"

	sessionCookieMaxAge = 24 * 60 * 60
	stateCookieMaxAge   = 5 * 60

	// refreshBuffer — за сколько до истечения токен считается просроченным.
	refreshBuffer = 30 * time.Second
)

// SessionData — данные сессии, хранящиеся в зашифрованном cookie.
type SessionData struct {
	// SessionID — ключ рабочей области сессии на сервере.
	SessionID    string   `json:"sid"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    int64    `json:"expires_at"`
	Username     string   `json:"username"`
	Role         string   `json:"role"`
	Groups       []string `json:"groups,omitempty"`
}

// NewSessionID генерирует идентификатор новой сессии.
func NewSessionID() string {
	return uuid.NewString()
}

// Expiry возвращает время истечения access token.
func (s *SessionData) Expiry() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}

// IsExpired — true, если до истечения access token меньше refreshBuffer.
func (s *SessionData) IsExpired(now time.Time) bool {
	return !now.Add(refreshBuffer).Before(s.Expiry())
}

// StateData — PKCE-параметры входа, живущие между /login и /callback.
type StateData struct {
	State        string `json:"state"`
	CodeVerifier string `json:"code_verifier"`
	// ReturnTo — локальный путь, куда вернуть пользователя после входа.
	ReturnTo string `json:"return_to,omitempty"`
}

// SessionManager шифрует и дешифрует cookie сессии и state.
type SessionManager struct {
	gcm    cipher.AEAD
	secure bool
}

// NewSessionManager создаёт менеджер сессий.
// Пустой key — случайный ключ (сессии не переживают рестарт).
// Ключ принимается как base64 от 32 байт, иначе хешируется SHA-256.
func NewSessionManager(key string, secure bool) (*SessionManager, error) {
	var keyBytes []byte

	if key == "" {
		keyBytes = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, keyBytes); err != nil {
			return nil, fmt.Errorf("ошибка генерации ключа сессии: %w", err)
		}
	} else {
		var err error
		keyBytes, err = base64.StdEncoding.DecodeString(key)
		if err != nil || len(keyBytes) != 32 {
			h := sha256.Sum256([]byte(key))
			keyBytes = h[:]
		}
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания GCM: %w", err)
	}

	return &SessionManager{gcm: gcm, secure: secure}, nil
}

// seal сериализует v в JSON и шифрует (nonce в начале шифротекста).
func (sm *SessionManager) seal(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации cookie: %w", err)
	}

	nonce := make([]byte, sm.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("ошибка генерации nonce: %w", err)
	}

	return base64.URLEncoding.EncodeToString(sm.gcm.Seal(nonce, nonce, plaintext, nil)), nil
}

// open дешифрует значение cookie в v.
func (sm *SessionManager) open(encrypted string, v any) error {
	ciphertext, err := base64.URLEncoding.DecodeString(encrypted)
	if err != nil {
		return fmt.Errorf("ошибка декодирования base64: %w", err)
	}

	nonceSize := sm.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return errors.New("зашифрованные данные слишком короткие")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := sm.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("ошибка дешифрования cookie: %w", err)
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("ошибка десериализации cookie: %w", err)
	}
	return nil
}

// Encrypt шифрует SessionData.
func (sm *SessionManager) Encrypt(data *SessionData) (string, error) {
	return sm.seal(data)
}

// Decrypt дешифрует SessionData. Сессия без SessionID считается повреждённой.
func (sm *SessionManager) Decrypt(encrypted string) (*SessionData, error) {
	var data SessionData
	if err := sm.open(encrypted, &data); err != nil {
		return nil, err
	}
	if data.SessionID == "" {
		return nil, errors.New("в сессии отсутствует sid")
	}
	return &data, nil
}

// SetSessionCookie устанавливает cookie сессии.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, data *SessionData) error {
	encrypted, err := sm.Encrypt(data)
	if err != nil {
		return err
	}
	sm.setCookie(w, SessionCookieName, encrypted, sessionCookieMaxAge)
	return nil
}

// GetSessionFromRequest читает сессию из cookie.
// Возвращает nil, nil если cookie отсутствует.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) (*SessionData, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}
	return sm.Decrypt(cookie.Value)
}

// ClearSessionCookie удаляет cookie сессии (logout).
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	sm.setCookie(w, SessionCookieName, "", -1)
}

// SetStateCookie сохраняет PKCE state в short-lived cookie.
func (sm *SessionManager) SetStateCookie(w http.ResponseWriter, sd *StateData) error {
	encrypted, err := sm.seal(sd)
	if err != nil {
		return err
	}
	sm.setCookie(w, StateCookieName, encrypted, stateCookieMaxAge)
	return nil
}

// PopStateCookie читает state cookie и сразу удаляет его (одноразовый).
func (sm *SessionManager) PopStateCookie(w http.ResponseWriter, r *http.Request) (*StateData, error) {
	cookie, err := r.Cookie(StateCookieName)
	if err != nil {
		return nil, err
	}
	sm.setCookie(w, StateCookieName, "", -1)

	var sd StateData
	if err := sm.open(cookie.Value, &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}

func (sm *SessionManager) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
