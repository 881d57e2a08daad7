// readiness.go — проверки готовности внешних зависимостей.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// KeycloakReadinessChecker — проверка доступности Keycloak через JWKS.
type KeycloakReadinessChecker struct {
	jwksURL string
	client  *http.Client
	timeout time.Duration
}

// NewKeycloakReadinessChecker создаёт checker доступности Keycloak.
// client может быть nil — тогда используется клиент с timeout.
func NewKeycloakReadinessChecker(jwksURL string, client *http.Client, timeout time.Duration) *KeycloakReadinessChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &KeycloakReadinessChecker{jwksURL: jwksURL, client: client, timeout: timeout}
}

// Name возвращает имя проверки.
func (k *KeycloakReadinessChecker) Name() string {
	return "keycloak"
}

// CheckReady проверяет доступность JWKS endpoint Keycloak.
func (k *KeycloakReadinessChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req) //nolint:gosec // G704: URL из конфигурации Keycloak
	if err != nil {
		return statusFail, fmt.Sprintf("Keycloak JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("Keycloak JWKS вернул статус %d", resp.StatusCode)
	}

	// Проверяем, что ответ — валидный JSON с ключами
	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return statusDegraded, fmt.Sprintf("Keycloak JWKS: невалидный JSON: %v", err)
	}
	if len(jwksResp.Keys) == 0 {
		return statusDegraded, "Keycloak JWKS: нет ключей"
	}

	return statusOK, fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}

// HealthSource — источник состояний зависимостей (topologymetrics).
type HealthSource interface {
	Health() map[string]bool
}

// DependencyChecker переводит состояние зависимости из topologymetrics
// в проверку готовности.
type DependencyChecker struct {
	name   string
	dep    string
	source HealthSource
}

// NewDependencyChecker создаёт проверку зависимости dep под именем name.
func NewDependencyChecker(name, dep string, source HealthSource) *DependencyChecker {
	return &DependencyChecker{name: name, dep: dep, source: source}
}

// Name возвращает имя проверки.
func (d *DependencyChecker) Name() string {
	return d.name
}

// CheckReady возвращает последнее известное состояние зависимости.
func (d *DependencyChecker) CheckReady() (status, message string) {
	healthy, found := findHealthByPrefix(d.source.Health(), d.dep)
	switch {
	case !found:
		// Первая проверка ещё не выполнена
		return statusDegraded, "состояние " + d.dep + " ещё не известно"
	case !healthy:
		return statusFail, d.dep + " недоступен"
	default:
		return statusOK, d.dep + " доступен"
	}
}

// findHealthByPrefix ищет статус зависимости по префиксу имени.
// Health() из topologymetrics SDK возвращает ключи формата "dependency:host:port".
// Если найдено несколько — healthy только если все healthy.
func findHealthByPrefix(health map[string]bool, prefix string) (healthy, found bool) {
	healthy = true
	for key, ok := range health {
		if strings.HasPrefix(key, prefix+":") || key == prefix {
			found = true
			if !ok {
				healthy = false
			}
		}
	}
	return healthy && found, found
}

// optionalChecker понижает fail до degraded: зависимость не блокирует готовность.
type optionalChecker struct {
	ReadinessChecker
}

// Optional оборачивает проверку вспомогательной зависимости.
func Optional(c ReadinessChecker) ReadinessChecker {
	return optionalChecker{ReadinessChecker: c}
}

func (o optionalChecker) CheckReady() (status, message string) {
	status, message = o.ReadinessChecker.CheckReady()
	if status == statusFail {
		status = statusDegraded
	}
	return status, message
}
