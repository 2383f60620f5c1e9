// Пакет dbtest — PostgreSQL в Docker-контейнере для интеграционных тестов.
// Тесты запускаются только при установленной TEST_INTEGRATION.
package dbtest

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/AECHE7/Fanders-sub003/internal/config"
	"github.com/AECHE7/Fanders-sub003/internal/database"
)

// Logger возвращает логгер для тестов.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Config запускает PostgreSQL контейнер и возвращает конфиг, указывающий на него.
// Без TEST_INTEGRATION тест пропускается.
func Config(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("fanders_test"),
		postgres.WithUsername("fanders"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("SLR_DB_HOST", host)
	t.Setenv("SLR_DB_PORT", port.Port())
	t.Setenv("SLR_DB_NAME", "fanders_test")
	t.Setenv("SLR_DB_USER", "fanders")
	t.Setenv("SLR_DB_PASSWORD", "test-password")
	t.Setenv("SLR_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	return cfg
}

// Pool запускает контейнер, применяет миграции и возвращает пул подключений.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	cfg := Config(t)
	logger := Logger()

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

// SeedLoan создаёт клиента и займ, возвращает идентификатор займа.
func SeedLoan(t *testing.T, pool *pgxpool.Pool, principal float64, status string) int64 {
	t.Helper()
	ctx := context.Background()

	var clientID int64
	err := pool.QueryRow(ctx,
		`INSERT INTO clients (name, phone_number, email) VALUES ($1, $2, $3) RETURNING id`,
		"Juan Dela Cruz", "09171234567", "juan@example.com",
	).Scan(&clientID)
	if err != nil {
		t.Fatalf("Ошибка создания клиента: %v", err)
	}

	var loanID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO loans (client_id, principal, total_loan_amount, status)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		clientID, principal, principal*1.2+425, status,
	).Scan(&loanID)
	if err != nil {
		t.Fatalf("Ошибка создания займа: %v", err)
	}
	return loanID
}
