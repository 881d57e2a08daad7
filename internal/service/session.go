package service

import (
	"sync"
	"time"
)

// SessionHolder — источник токена текущей сессии.
// Ядро не разбирает токен, только передаёт его хранилищу.
type SessionHolder interface {
	// CurrentToken возвращает токен и признак его наличия.
	CurrentToken() (string, bool)
	// IsAuthenticated сообщает, есть ли у сессии действующий токен.
	IsAuthenticated() bool
}

// SessionState — изменяемая реализация SessionHolder для одной
// браузерной сессии. Токен обновляется при каждом запросе пользователя
// (после авто-refresh в middleware).
type SessionState struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	username  string
	role      string
	now       func() time.Time
}

// NewSessionState создаёт пустую сессию.
func NewSessionState() *SessionState {
	return &SessionState{now: time.Now}
}

// Bind сохраняет актуальный токен и данные пользователя.
func (s *SessionState) Bind(token string, expiresAt time.Time, username, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = expiresAt
	s.username = username
	s.role = role
}

// Clear сбрасывает токен (logout).
func (s *SessionState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}

// CurrentToken возвращает токен, если он задан и не истёк.
func (s *SessionState) CurrentToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", false
	}
	if !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt) {
		return "", false
	}
	return s.token, true
}

// IsAuthenticated сообщает, есть ли действующий токен.
func (s *SessionState) IsAuthenticated() bool {
	_, ok := s.CurrentToken()
	return ok
}

// Username возвращает имя пользователя сессии.
func (s *SessionState) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Role возвращает роль пользователя сессии.
func (s *SessionState) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}
