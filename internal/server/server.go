// Пакет server — HTTP-сервер Records UI с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/records-ui/internal/api/errors"
	apihandlers "github.com/bigkaa/goartstore/records-ui/internal/api/handlers"
	"github.com/bigkaa/goartstore/records-ui/internal/api/middleware"
	"github.com/bigkaa/goartstore/records-ui/internal/config"
	uihandlers "github.com/bigkaa/goartstore/records-ui/internal/ui/handlers"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/goartstore/records-ui/internal/ui/middleware"
	"github.com/bigkaa/goartstore/records-ui/internal/ui/static"
)

// Components — обработчики, из которых собирается маршрутизатор.
type Components struct {
	Health         *apihandlers.HealthHandler
	Auth           *uihandlers.AuthHandler
	AuthMiddleware *uimiddleware.UIAuth
	Records        *uihandlers.RecordsHandler
	Events         *uihandlers.EventsHandler
}

// Server — HTTP-сервер Records UI.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, c Components) *Server {
	// Контекст запросов отменяется в начале Shutdown, SSE-потоки завершаются сразу.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, c),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты Records UI.
//
// Публичные: probes, метрики, статика, вход. Остальное — за UIAuth,
// изменения записей дополнительно за RequireEditor.
func NewRouter(logger *slog.Logger, c Components) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.Recover(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "маршрут не найден")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.MethodNotAllowed(w, "метод не поддерживается")
	})

	// Health и metrics проверяются Kubernetes напрямую.
	router.Get("/health/live", c.Health.HealthLive)
	router.Get("/health/ready", c.Health.HealthReady)
	router.Get("/metrics", c.Health.GetMetrics)

	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static.FileSystem())))

	router.Group(func(r chi.Router) {
		r.Use(i18n.Middleware())

		r.Get("/login", c.Auth.HandleLoginPage)
		r.Get("/login/start", c.Auth.HandleLoginStart)
		r.Get("/callback", c.Auth.HandleCallback)
		r.Post("/logout", c.Auth.HandleLogout)
		r.Post("/set-language", uihandlers.HandleSetLanguage)

		r.Group(func(r chi.Router) {
			r.Use(c.AuthMiddleware.Middleware())

			r.Get("/", c.Records.HandleDashboard)
			r.Get("/partials/records-table", c.Records.HandlePartialTable)
			r.Get("/partials/toasts", c.Records.HandlePartialToasts)
			r.Get("/partials/activity", c.Records.HandlePartialActivity)
			r.Post("/records/refresh", c.Records.HandleRefresh)
			r.Get("/events/records", c.Events.HandleRecordEvents)

			r.Group(func(r chi.Router) {
				r.Use(uimiddleware.RequireEditor(c.Records.HandleForbidden))

				r.Get("/records/new", c.Records.HandleNewRecord)
				r.Get("/records/{id}/edit", c.Records.HandleEditRecord)
				r.Post("/records/dialog", c.Records.HandleSubmitDialog)
				r.Post("/records/dialog/cancel", c.Records.HandleCancelDialog)
				r.Get("/records/{id}/delete", c.Records.HandleConfirmDelete)
				r.Post("/records/{id}/delete", c.Records.HandleDelete)
			})
		})
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
