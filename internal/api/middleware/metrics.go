// Пакет middleware — общие HTTP middleware Records UI.
// metrics.go — Prometheus HTTP метрики: ru_http_requests_total,
// ru_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ru_http_requests_total",
			Help: "Общее количество HTTP-запросов к Records UI",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ru_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Records UI в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// SSE-поток не попадает в гистограмму длительности.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.statusCode)
			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			if normalizedPath != "/events/records" {
				httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(time.Since(start).Seconds())
			}
		})
	}
}

// normalizePath заменяет идентификаторы записей на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /records/65f1c0.../edit → /records/{id}/edit
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/static/"):
		return "/static/*"
	case strings.HasPrefix(path, "/records/"):
		rest := strings.TrimPrefix(path, "/records/")
		switch rest {
		case "new", "dialog", "dialog/cancel", "refresh":
			return path
		}
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return "/records/{id}" + rest[i:]
		}
		return "/records/{id}"
	}

	switch path {
	case "/", "/login", "/login/start", "/callback", "/logout", "/set-language",
		"/health/live", "/health/ready", "/metrics",
		"/partials/records-table", "/partials/toasts", "/partials/activity",
		"/events/records":
		return path
	}
	return "other"
}
