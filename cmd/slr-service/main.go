// Точка входа SLR-сервиса — жизненный цикл документов Statement of Loan Receipt.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// инициализирует хранилище файлов, журнал файловых операций и рендерер PDF,
// восстанавливает прерванные операции, запускает фоновую сверку,
// topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/AECHE7/Fanders-sub003/internal/api/handlers"
	"github.com/AECHE7/Fanders-sub003/internal/api/middleware"
	"github.com/AECHE7/Fanders-sub003/internal/config"
	"github.com/AECHE7/Fanders-sub003/internal/database"
	"github.com/AECHE7/Fanders-sub003/internal/renderer"
	"github.com/AECHE7/Fanders-sub003/internal/repository"
	"github.com/AECHE7/Fanders-sub003/internal/schedule"
	"github.com/AECHE7/Fanders-sub003/internal/server"
	"github.com/AECHE7/Fanders-sub003/internal/service"
	"github.com/AECHE7/Fanders-sub003/internal/storage/filestore"
	"github.com/AECHE7/Fanders-sub003/internal/storage/wal"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("SLR-сервис запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	store := repository.NewStore(pool)
	repos := store.Repositories()

	// 5. Хранилище файлов документов и журнал файловых операций
	files, err := filestore.New(cfg.StorageDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища документов",
			slog.String("dir", cfg.StorageDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Хранилище документов готово", slog.String("dir", files.BaseDir()))

	journal, err := wal.New(cfg.WALDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации журнала",
			slog.String("dir", cfg.WALDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// 6. Рендерер PDF (headless Chrome)
	pdf, err := renderer.New(renderer.Options{
		CompanyName: cfg.CompanyName,
		ChromePath:  cfg.ChromePath,
		Timeout:     cfg.RenderTimeout,
	}, logger)
	if err != nil {
		logger.Error("Ошибка инициализации рендерера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Сервисный слой
	rules := service.NewRuleResolver(repos.Rules, cfg.RuleCacheSize, cfg.RuleCacheTTL, logger)
	audit := service.NewAuditLogger(repos.Documents, repos.Events, logger)
	lifecycle := service.NewLifecycleService(
		store,
		rules,
		pdf,
		schedule.NewFlatRateCalculator(),
		files,
		journal,
		audit,
		logger,
	)

	// 8. Завершение файловых операций, прерванных предыдущей остановкой
	report, err := lifecycle.RecoverPending(ctx)
	if err != nil {
		logger.Error("Ошибка восстановления по журналу", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if report.Failed > 0 {
		logger.Warn("Часть операций журнала не восстановлена",
			slog.Int("failed", report.Failed),
			slog.Int("committed", report.Committed),
			slog.Int("rolled_back", report.RolledBack),
		)
	}

	// 9. Фоновая сверка целостности
	reconcileSvc := service.NewReconcileService(repos.Documents, files, journal, cfg.ReconcileInterval, logger)
	reconcileSvc.Start(ctx)

	// 10. topologymetrics — мониторинг PostgreSQL
	var deps handlers.DependencyReporter
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthOptions{
		ServiceID:     "slr-service",
		Group:         cfg.DephealthGroup,
		PgConnURL:     cfg.DatabaseURL(),
		CheckInterval: cfg.DephealthCheckInterval,
		IsEntry:       cfg.DephealthIsEntry,
	}, pgDB, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		dephealthSvc = nil
	} else {
		deps = dephealthSvc
	}

	// 11. HTTP handlers
	healthHandler := handlers.NewHealthHandler(deps).
		WithCheck("postgresql", pool.Ping).
		WithCheck("storage", files.Ready).
		WithCheck("journal", journal.Ready)
	apiHandler := handlers.NewAPIHandler(healthHandler, lifecycle, reconcileSvc, rules, logger)

	// 12. HTTP-сервер (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, apiHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		middleware.Actor("/health/", "/metrics"),
	)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
	}

	// 13. Остановка фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	reconcileSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("SLR-сервис остановлен")
}
