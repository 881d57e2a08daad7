// Пакет config — загрузка и валидация конфигурации Records UI
// из переменных окружения (и опционального .env-файла).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Records UI.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8040-8049)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймауты HTTP-сервера. WriteTimeout = 0 для SSE-потоков.
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- Хранилище записей ---

	// Базовый URL удалённого хранилища записей (обязательный)
	StoreURL string
	// Таймаут HTTP-запросов к хранилищу
	StoreTimeout time.Duration
	// Путь к CA-сертификату для TLS-соединений (опционально)
	StoreCACertPath string
	// Проверять ответы хранилища по встроенному OpenAPI-контракту
	StoreValidateResponses bool
	// Путь, который опрашивает topologymetrics
	StoreHealthPath string

	// --- Keycloak / OIDC ---

	// URL Keycloak для server-to-server запросов
	KeycloakURL string
	// URL Keycloak для редиректов браузера (по умолчанию = KeycloakURL)
	KeycloakBrowserURL string
	// Имя realm
	KeycloakRealm string
	// Client ID публичного OIDC-клиента
	OIDCClientID string

	// --- JWT ---

	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// Допустимое расхождение часов
	JWTLeeway time.Duration

	// --- Маппинг групп → ролей ---

	// Группы, дающие роль editor (через запятую)
	RoleEditorGroups []string
	// Группы, дающие роль viewer (через запятую)
	RoleViewerGroups []string

	// --- Сессии ---

	// Секрет для шифрования cookie (пустой — случайный ключ)
	SessionSecret string
	// Максимальное число рабочих областей в памяти
	SessionMaxSessions int
	// Время жизни неактивной рабочей области
	SessionIdleTTL time.Duration

	// --- Отображение ---

	// Количество строк-заглушек при загрузке
	SkeletonRows int
	// Интервал keepalive-комментариев SSE
	SSEKeepalive time.Duration

	// --- PostgreSQL (журнал мутаций, опционально) ---

	// Хост PostgreSQL. Пустое значение отключает журнал.
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- topologymetrics ---

	// Группа сервиса
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Если задан RU_ENV_FILE или в рабочем каталоге есть .env, переменные
// из файла подгружаются без перезаписи уже заданных.
func Load() (*Config, error) {
	if err := loadEnvFile(getEnvDefault("RU_ENV_FILE", ".env")); err != nil {
		return nil, fmt.Errorf("RU_ENV_FILE: %w", err)
	}

	cfg := &Config{}
	var err error

	// --- Сервер ---

	// RU_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("RU_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("RU_PORT: %w", err)
	}
	if cfg.Port < 8040 || cfg.Port > 8049 {
		return nil, fmt.Errorf("RU_PORT: значение %d вне допустимого диапазона 8040-8049", cfg.Port)
	}

	// RU_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("RU_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("RU_LOG_LEVEL: %w", err)
	}

	// RU_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("RU_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("RU_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.HTTPReadTimeout, err = getEnvDuration("RU_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RU_HTTP_READ_TIMEOUT: %w", err)
	}
	// WriteTimeout по умолчанию 0: SSE-соединения живут долго
	cfg.HTTPWriteTimeout, err = getEnvDuration("RU_HTTP_WRITE_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("RU_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("RU_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RU_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Хранилище записей ---

	// RU_STORE_URL — обязательный
	cfg.StoreURL, err = getEnvRequired("RU_STORE_URL")
	if err != nil {
		return nil, err
	}
	if u, parseErr := url.Parse(cfg.StoreURL); parseErr != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("RU_STORE_URL: некорректный URL %q", cfg.StoreURL)
	}
	cfg.StoreURL = strings.TrimRight(cfg.StoreURL, "/")

	cfg.StoreTimeout, err = getEnvDuration("RU_STORE_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RU_STORE_TIMEOUT: %w", err)
	}
	if cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("RU_STORE_TIMEOUT: значение должно быть положительным")
	}

	cfg.StoreCACertPath = getEnvDefault("RU_STORE_CA_CERT_PATH", "")

	cfg.StoreValidateResponses, err = getEnvBool("RU_STORE_VALIDATE_RESPONSES", false)
	if err != nil {
		return nil, fmt.Errorf("RU_STORE_VALIDATE_RESPONSES: %w", err)
	}

	cfg.StoreHealthPath = getEnvDefault("RU_STORE_HEALTH_PATH", "/")

	// --- Keycloak ---

	// RU_KEYCLOAK_URL — обязательный
	cfg.KeycloakURL, err = getEnvRequired("RU_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	cfg.KeycloakBrowserURL = strings.TrimRight(getEnvDefault("RU_KEYCLOAK_BROWSER_URL", cfg.KeycloakURL), "/")
	cfg.KeycloakRealm = getEnvDefault("RU_KEYCLOAK_REALM", "records")
	cfg.OIDCClientID = getEnvDefault("RU_OIDC_CLIENT_ID", "records-ui")

	// --- JWT ---

	// RU_JWT_ISSUER — по умолчанию вычисляется от браузерного URL:
	// токены выпускаются для адреса, который видел пользователь
	cfg.JWTIssuer = getEnvDefault("RU_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakBrowserURL, cfg.KeycloakRealm))

	cfg.JWTJWKSURL = getEnvDefault("RU_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	cfg.JWKSRefreshInterval, err = getEnvDuration("RU_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("RU_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.JWTLeeway, err = getEnvDuration("RU_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RU_JWT_LEEWAY: %w", err)
	}

	// --- Маппинг групп → ролей ---

	cfg.RoleEditorGroups = parseCSV(getEnvDefault("RU_ROLE_EDITOR_GROUPS", "records-editors"))
	cfg.RoleViewerGroups = parseCSV(getEnvDefault("RU_ROLE_VIEWER_GROUPS", "records-viewers"))

	// --- Сессии ---

	cfg.SessionSecret = getEnvDefault("RU_SESSION_SECRET", "")

	cfg.SessionMaxSessions, err = getEnvInt("RU_SESSION_MAX_SESSIONS", 1000)
	if err != nil {
		return nil, fmt.Errorf("RU_SESSION_MAX_SESSIONS: %w", err)
	}
	if cfg.SessionMaxSessions < 1 {
		return nil, fmt.Errorf("RU_SESSION_MAX_SESSIONS: значение %d должно быть >= 1", cfg.SessionMaxSessions)
	}

	cfg.SessionIdleTTL, err = getEnvDuration("RU_SESSION_IDLE_TTL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("RU_SESSION_IDLE_TTL: %w", err)
	}

	// --- Отображение ---

	cfg.SkeletonRows, err = getEnvInt("RU_SKELETON_ROWS", 5)
	if err != nil {
		return nil, fmt.Errorf("RU_SKELETON_ROWS: %w", err)
	}
	if cfg.SkeletonRows < 1 || cfg.SkeletonRows > 50 {
		return nil, fmt.Errorf("RU_SKELETON_ROWS: значение %d вне допустимого диапазона 1-50", cfg.SkeletonRows)
	}

	cfg.SSEKeepalive, err = getEnvDuration("RU_SSE_KEEPALIVE", 20*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RU_SSE_KEEPALIVE: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("RU_DB_HOST", "")
	if cfg.DBHost != "" {
		cfg.DBPort, err = getEnvInt("RU_DB_PORT", 5432)
		if err != nil {
			return nil, fmt.Errorf("RU_DB_PORT: %w", err)
		}
		cfg.DBName, err = getEnvRequired("RU_DB_NAME")
		if err != nil {
			return nil, err
		}
		cfg.DBUser, err = getEnvRequired("RU_DB_USER")
		if err != nil {
			return nil, err
		}
		cfg.DBPassword, err = getEnvRequired("RU_DB_PASSWORD")
		if err != nil {
			return nil, err
		}
		cfg.DBSSLMode = getEnvDefault("RU_DB_SSL_MODE", "disable")
		validSSLModes := map[string]bool{
			"disable": true, "require": true, "verify-ca": true, "verify-full": true,
		}
		if !validSSLModes[cfg.DBSSLMode] {
			return nil, fmt.Errorf("RU_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
		}
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("RU_DEPHEALTH_GROUP", "records")
	cfg.DephealthCheckInterval, err = getEnvDuration("RU_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RU_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("RU_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RU_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// JournalEnabled сообщает, настроен ли PostgreSQL для журнала мутаций.
func (c *Config) JournalEnabled() bool {
	return c.DBHost != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения (для golang-migrate и topologymetrics).
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// loadEnvFile подгружает переменные из .env-файла. Отсутствующий файл не ошибка.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("чтение %s: %w", path, err)
	}
	return nil
}

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает логическое значение переменной окружения.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
