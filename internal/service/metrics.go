// Пакет service — бизнес-логика жизненного цикла документов SLR.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики операций с документами.
var (
	// operationsTotal — результаты публичных операций по коду.
	// Для успешных операций code = "OK".
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slr_operations_total",
		Help: "Общее количество операций с документами SLR по результату",
	}, []string{"operation", "code"})

	// operationDurationSeconds — длительность операций.
	operationDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slr_operation_duration_seconds",
		Help:    "Длительность операций с документами SLR в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	// compensationsTotal — выполненные компенсирующие действия.
	compensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slr_compensations_total",
		Help: "Общее количество компенсирующих действий над файлами",
	}, []string{"action", "result"})

	// auditFailuresTotal — ошибки записи в журналы аудита.
	auditFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slr_audit_failures_total",
		Help: "Общее количество ошибок записи аудита по журналу",
	}, []string{"sink"})

	// downloadStatsFailuresTotal — ошибки обновления счётчика скачиваний.
	downloadStatsFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slr_download_stats_failures_total",
		Help: "Общее количество ошибок обновления статистики скачиваний",
	})

	// documentBytes — размер сгенерированных документов.
	documentBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slr_document_bytes",
		Help:    "Размер сгенерированных документов SLR в байтах",
		Buckets: prometheus.ExponentialBuckets(16*1024, 2, 8),
	})

	// ruleCacheHitsTotal / ruleCacheMissesTotal — кэш правил генерации.
	ruleCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slr_rule_cache_hits_total",
		Help: "Общее количество попаданий в кэш правил генерации",
	})
	ruleCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slr_rule_cache_misses_total",
		Help: "Общее количество промахов кэша правил генерации",
	})

	// reconcileRunsTotal — количество запусков сверки.
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slr_reconcile_runs_total",
		Help: "Общее количество запусков сверки хранилища",
	})

	// reconcileIssuesTotal — обнаруженные проблемы по типу.
	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slr_reconcile_issues_total",
		Help: "Общее количество проблем, обнаруженных сверкой",
	}, []string{"type"})

	// reconcileDurationSeconds — длительность сверки.
	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slr_reconcile_duration_seconds",
		Help:    "Длительность выполнения сверки в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})

	// walRecoveredTotal — записи журнала, завершённые при старте.
	walRecoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slr_wal_recovered_total",
		Help: "Общее количество незавершённых операций, восстановленных при старте",
	}, []string{"operation", "action"})
)
