// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Records UI мониторит:
//   - хранилище записей — HTTP checker (critical)
//   - Keycloak — HTTP checker к JWKS endpoint (critical)
//   - PostgreSQL журнала изменений — SQL checker через pgxpool (не critical, если журнал включён)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthConfig — параметры мониторинга зависимостей.
type DephealthConfig struct {
	// ServiceID — имя вершины графа (records-ui)
	ServiceID string
	// Group — группа в метриках (RU_DEPHEALTH_GROUP)
	Group string
	// StoreURL и StoreHealthPath — адрес и путь проверки хранилища
	StoreURL        string
	StoreHealthPath string
	// KeycloakJWKSURL — JWKS endpoint Keycloak
	KeycloakJWKSURL string
	// DB — *sql.DB из pgxpool (nil, если журнал выключен)
	DB *sql.DB
	// DBURL — URL PostgreSQL для лейблов
	DBURL string
	// CheckInterval — интервал проверок
	CheckInterval time.Duration
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(cfg DephealthConfig, logger *slog.Logger, registerer prometheus.Registerer) (*DephealthService, error) {
	return newDephealthService(cfg, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(cfg DephealthConfig, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	// Путь проверки Keycloak берём из самого JWKS URL:
	// /health доступен только на management-порту
	kcHealthPath := "/health"
	if parsed, err := url.Parse(cfg.KeycloakJWKSURL); err == nil && parsed.Path != "" {
		kcHealthPath = parsed.Path
	}

	storeDepOpts := []dephealth.DependencyOption{
		dephealth.FromURL(cfg.StoreURL),
		dephealth.WithHTTPHealthPath(cfg.StoreHealthPath),
		dephealth.CheckInterval(cfg.CheckInterval),
		dephealth.Critical(true),
	}
	if parsed, err := url.Parse(cfg.StoreURL); err == nil && parsed.Scheme == "https" {
		storeDepOpts = append(storeDepOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}

	opts := make([]dephealth.Option, 0, 4+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.HTTP("record-store", storeDepOpts...),
		dephealth.HTTP("keycloak-jwks",
			dephealth.FromURL(cfg.KeycloakJWKSURL),
			dephealth.WithHTTPHealthPath(kcHealthPath),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		),
	)
	if cfg.DB != nil {
		// Журнал вспомогательный: его недоступность не делает сервис неготовым
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.DBURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(false),
		))
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
