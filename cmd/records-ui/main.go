// Точка входа Records UI — веб-клиента реестра записей о людях.
// Загружает конфигурацию, создаёт клиент хранилища записей и OIDC-клиент
// Keycloak, при наличии PostgreSQL подключает журнал изменений,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/records-ui/internal/api/handlers"
	"github.com/bigkaa/goartstore/records-ui/internal/config"
	"github.com/bigkaa/goartstore/records-ui/internal/database"
	"github.com/bigkaa/goartstore/records-ui/internal/recordstore"
	"github.com/bigkaa/goartstore/records-ui/internal/repository"
	"github.com/bigkaa/goartstore/records-ui/internal/server"
	"github.com/bigkaa/goartstore/records-ui/internal/service"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/auth"
	uihandlers "github.com/bigkaa/goartstore/records-ui/internal/ui/handlers"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/goartstore/records-ui/internal/ui/middleware"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/pages"
)

// drainTimeout — сколько ждать разрешения незавершённых изменений при остановке.
const drainTimeout = 10 * time.Second

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Records UI запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("RU_DEPHEALTH_GROUP") == "" {
		logger.Warn("RU_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// Контекст фоновых задач: запросы к хранилищу, обновление JWKS
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. HTTP-клиент с кастомным CA (для Keycloak)
	var httpClientCA *http.Client
	if cfg.StoreCACertPath != "" {
		httpClientCA, err = buildHTTPClientWithCA(cfg.StoreCACertPath)
		if err != nil {
			logger.Error("Ошибка загрузки CA-сертификата",
				slog.String("path", cfg.StoreCACertPath),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		logger.Info("CA-сертификат загружен", slog.String("path", cfg.StoreCACertPath))
	}

	// 4. Клиент хранилища записей
	store, err := recordstore.New(ctx, recordstore.Options{
		BaseURL:           cfg.StoreURL,
		Timeout:           cfg.StoreTimeout,
		CACertPath:        cfg.StoreCACertPath,
		ValidateResponses: cfg.StoreValidateResponses,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Клиент хранилища создан",
		slog.String("url", store.BaseURL()),
		slog.Bool("validate_responses", cfg.StoreValidateResponses),
	)

	// 5. Журнал изменений (опционально, если задан RU_DB_HOST)
	var (
		pool          *pgxpool.Pool
		pgDB          *sql.DB
		journalWriter service.MutationJournal
		journalReader uihandlers.JournalReader
	)
	if cfg.JournalEnabled() {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}

		pool, err = database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		journalRepo := repository.NewMutationJournalRepository(pool)
		journalWriter = journalRepo
		journalReader = journalRepo
	} else {
		logger.Info("Журнал изменений отключён (RU_DB_HOST не задан)")
	}

	// 6. Локализация и шаблоны
	bundle, err := i18n.Load(logger)
	if err != nil {
		logger.Error("Ошибка загрузки переводов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	renderer, err := pages.NewRenderer(bundle)
	if err != nil {
		logger.Error("Ошибка разбора шаблонов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Сессии и OIDC
	// Secure cookie: true если Keycloak URL начинается с https
	secureCookie := strings.HasPrefix(cfg.KeycloakURL, "https")

	sessionMgr, err := auth.NewSessionManager(cfg.SessionSecret, secureCookie)
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("RU_SESSION_SECRET не задан, сессии не сохраняются между рестартами")
	}

	oidcClient := auth.NewOIDCClient(auth.OIDCConfig{
		KeycloakURL:        cfg.KeycloakURL,
		BrowserKeycloakURL: cfg.KeycloakBrowserURL,
		Realm:              cfg.KeycloakRealm,
		ClientID:           cfg.OIDCClientID,
		HTTPClient:         httpClientCA,
	})

	verifier, err := auth.NewTokenVerifier(ctx, auth.VerifierConfig{
		JWKSURL:         cfg.JWTJWKSURL,
		Issuer:          cfg.JWTIssuer,
		RefreshInterval: cfg.JWKSRefreshInterval,
		Leeway:          cfg.JWTLeeway,
		HTTPClient:      httpClientCA,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания проверки токенов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("OIDC инициализирован",
		slog.String("client_id", cfg.OIDCClientID),
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.Bool("secure_cookie", secureCookie),
	)

	// 8. Рабочие области сессий
	registry := service.NewWorkspaceRegistry(cfg.SessionMaxSessions, cfg.SessionIdleTTL, service.WorkspaceDeps{
		BaseCtx: ctx,
		Store:   store,
		Journal: journalWriter,
		Logger:  logger,
	})

	// 9. Handlers
	authHandler := uihandlers.NewAuthHandler(uihandlers.AuthDeps{
		OIDC:         oidcClient,
		Verifier:     verifier,
		Sessions:     sessionMgr,
		Workspaces:   registry,
		Renderer:     renderer,
		EditorGroups: cfg.RoleEditorGroups,
		ViewerGroups: cfg.RoleViewerGroups,
	}, logger)
	uiAuthMiddleware := uimiddleware.NewUIAuth(sessionMgr, oidcClient, registry, logger)
	recordsHandler := uihandlers.NewRecordsHandler(renderer, cfg.SkeletonRows, journalReader, logger)
	eventsHandler := uihandlers.NewEventsHandler(cfg.SSEKeepalive, logger)

	// 10. topologymetrics — мониторинг зависимостей (хранилище, Keycloak, PostgreSQL)
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:       "records-ui",
		Group:           cfg.DephealthGroup,
		StoreURL:        cfg.StoreURL,
		StoreHealthPath: cfg.StoreHealthPath,
		KeycloakJWKSURL: cfg.JWTJWKSURL,
		DB:              pgDB,
		DBURL:           dbURL(cfg),
		CheckInterval:   cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 11. Readiness checkers
	checkers := []handlers.ReadinessChecker{
		handlers.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, httpClientCA, 5*time.Second),
	}
	if dephealthSvc != nil {
		checkers = append(checkers, handlers.NewDependencyChecker("record-store", "record-store", dephealthSvc))
	}
	if pool != nil {
		checkers = append(checkers, handlers.Optional(database.NewReadinessChecker(pool)))
	}
	healthHandler := handlers.NewHealthHandler(checkers...)

	// 12. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, server.Components{
		Health:         healthHandler,
		Auth:           authHandler,
		AuthMiddleware: uiAuthMiddleware,
		Records:        recordsHandler,
		Events:         eventsHandler,
	})
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 13. Graceful shutdown фоновых задач
	logger.Info("Ожидание незавершённых изменений...")
	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	if err := registry.Drain(drainCtx); err != nil {
		logger.Warn("Не все изменения разрешены до остановки",
			slog.String("error", err.Error()),
		)
	}
	drainCancel()

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	cancel()

	logger.Info("Records UI остановлен")
}

// dbURL возвращает URL PostgreSQL для лейблов topologymetrics или пустую строку.
func dbURL(cfg *config.Config) string {
	if !cfg.JournalEnabled() {
		return ""
	}
	return cfg.DatabaseURL()
}

// buildHTTPClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func buildHTTPClientWithCA(caCertPath string) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: caCertPool,
			},
		},
	}, nil
}
