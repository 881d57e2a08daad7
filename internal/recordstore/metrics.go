// metrics.go — Prometheus-метрики обращений к хранилищу записей.
package recordstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// storeRequestsTotal — количество запросов к хранилищу по операции и статусу.
	// status = "error" для сетевых ошибок.
	storeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ru_store_requests_total",
			Help: "Количество запросов к хранилищу записей",
		},
		[]string{"op", "status"},
	)

	// storeRequestDuration — длительность запросов к хранилищу.
	storeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ru_store_request_duration_seconds",
			Help:    "Длительность запросов к хранилищу записей в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// storeContractViolations — ответы, не прошедшие проверку по контракту.
	storeContractViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ru_store_contract_violations_total",
			Help: "Ответы хранилища, не прошедшие проверку OpenAPI-контракта",
		},
		[]string{"op"},
	)
)
