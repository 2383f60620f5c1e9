// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Сервис мониторит одну зависимость — PostgreSQL, через существующий pgxpool
// (connection pool mode, critical).
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
)

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// DephealthOptions — параметры мониторинга.
type DephealthOptions struct {
	// ServiceID — имя вершины графа текущего приложения
	ServiceID string
	// Group — имя группы в метриках (SLR_DEPHEALTH_GROUP)
	Group string
	// PgConnURL — URL PostgreSQL для лейблов метрик (без пароля)
	PgConnURL string
	// CheckInterval — интервал проверки (SLR_DEPHEALTH_CHECK_INTERVAL)
	CheckInterval time.Duration
	// IsEntry — сервис является точкой входа в граф (DEPHEALTH_ISENTRY)
	IsEntry bool
}

// NewDephealthService создаёт сервис мониторинга.
// db — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool().
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(opts DephealthOptions, db *sql.DB, logger *slog.Logger) (*DephealthService, error) {
	pgDepOpts := []dephealth.DependencyOption{
		dephealth.FromURL(opts.PgConnURL),
		dephealth.CheckInterval(opts.CheckInterval),
		dephealth.Critical(true),
	}
	if opts.IsEntry {
		pgDepOpts = append(pgDepOpts, dephealth.WithLabel("isentry", "yes"))
	}

	dhOpts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)),
			pgDepOpts...,
		),
	}

	dh, err := dephealth.New(opts.ServiceID, opts.Group, dhOpts...)
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
	ds.logger.Info("Мониторинг зависимостей запущен (PostgreSQL)")
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
