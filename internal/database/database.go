// Пакет database — пул PostgreSQL SLR-сервиса и миграции схемы
// slr_* (golang-migrate, драйвер pgx5, SQL встроен в бинарник).
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AECHE7/Fanders-sub003/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	applicationName = "slr-service"
	// migrationsTable — таблица версий схемы сервиса в общей БД.
	migrationsTable = "slr_schema_migrations"
	pingTimeout     = 5 * time.Second
)

// Connect открывает пул pgxpool. Сессии работают в UTC: номера документов
// и имена файлов строятся из дат, прочитанных из БД.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	poolCfg.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL %s недоступен: %w", cfg.DatabaseURL(), err)
	}

	logger.Info("Пул PostgreSQL открыт",
		slog.String("db", cfg.DatabaseURL()),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)
	return pool, nil
}

// Migrate применяет миграции схемы SLR. Схема в состоянии dirty
// не трогается: её чинят вручную через migrate force.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrationURL(cfg))
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	before, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		before = 0
	case err != nil:
		return fmt.Errorf("ошибка чтения версии схемы: %w", err)
	case dirty:
		return fmt.Errorf("схема в состоянии dirty на версии %d", before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	after, _, _ := m.Version()
	logger.Info("Схема SLR актуальна",
		slog.Uint64("from", uint64(before)),
		slog.Uint64("to", uint64(after)),
	)
	return nil
}

// migrationURL — URL драйвера pgx5 с собственной таблицей версий.
func migrationURL(cfg *config.Config) string {
	q := url.Values{}
	q.Set("sslmode", cfg.DBSSLMode)
	q.Set("x-migrations-table", migrationsTable)

	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort)),
		Path:     "/" + cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}
