// Пакет config — загрузка и валидация конфигурации SLR-сервиса
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации SLR-сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Хранилище документов ---

	// Базовая директория: внутри active, archive, temp
	StorageDir string
	// Директория журнала файловых операций
	WALDir string

	// --- Правила генерации ---

	// Максимальное число правил в кэше
	RuleCacheSize int
	// Время жизни правила в кэше
	RuleCacheTTL time.Duration

	// --- Фоновые процессы ---

	// Интервал сверки целостности (0 — отключено)
	ReconcileInterval time.Duration

	// --- Рендеринг ---

	// Таймаут рендеринга PDF
	RenderTimeout time.Duration
	// Путь к Chrome/Chromium (пусто — поиск по PATH)
	ChromePath string
	// Название организации в шапке документа
	CompanyName string

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
	DephealthIsEntry       bool

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// SLR_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("SLR_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("SLR_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SLR_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SLR_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SLR_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("SLR_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SLR_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.HTTPReadTimeout, err = getEnvDuration("SLR_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SLR_HTTP_READ_TIMEOUT: %w", err)
	}
	// Должен превышать SLR_RENDER_TIMEOUT: генерация рендерит PDF в запросе
	cfg.HTTPWriteTimeout, err = getEnvDuration("SLR_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SLR_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("SLR_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SLR_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("SLR_DB_HOST")
	if err != nil {
		return nil, err
	}

	cfg.DBPort, err = getEnvInt("SLR_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("SLR_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("SLR_DB_NAME")
	if err != nil {
		return nil, err
	}

	cfg.DBUser, err = getEnvRequired("SLR_DB_USER")
	if err != nil {
		return nil, err
	}

	cfg.DBPassword, err = getEnvRequired("SLR_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("SLR_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("SLR_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Хранилище ---

	cfg.StorageDir = filepath.Clean(getEnvDefault("SLR_STORAGE_DIR", "/data/slr"))
	cfg.WALDir = filepath.Clean(getEnvDefault("SLR_WAL_DIR", "/data/slr-wal"))
	if cfg.WALDir == cfg.StorageDir || strings.HasPrefix(cfg.WALDir, cfg.StorageDir+string(filepath.Separator)) {
		return nil, fmt.Errorf("SLR_WAL_DIR: директория журнала %q не должна находиться внутри SLR_STORAGE_DIR", cfg.WALDir)
	}

	// --- Правила ---

	cfg.RuleCacheSize, err = getEnvInt("SLR_RULE_CACHE_SIZE", 64)
	if err != nil {
		return nil, fmt.Errorf("SLR_RULE_CACHE_SIZE: %w", err)
	}
	if cfg.RuleCacheSize < 1 {
		return nil, fmt.Errorf("SLR_RULE_CACHE_SIZE: значение %d должно быть положительным", cfg.RuleCacheSize)
	}

	// SLR_RULE_CACHE_TTL — 0 отключает кэш правил
	cfg.RuleCacheTTL, err = getEnvDuration("SLR_RULE_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SLR_RULE_CACHE_TTL: %w", err)
	}
	if cfg.RuleCacheTTL < 0 {
		return nil, fmt.Errorf("SLR_RULE_CACHE_TTL: отрицательное значение %v", cfg.RuleCacheTTL)
	}

	// --- Фоновые процессы ---

	// SLR_RECONCILE_INTERVAL — 0 отключает периодическую сверку
	cfg.ReconcileInterval, err = getEnvDuration("SLR_RECONCILE_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("SLR_RECONCILE_INTERVAL: %w", err)
	}
	if cfg.ReconcileInterval < 0 {
		return nil, fmt.Errorf("SLR_RECONCILE_INTERVAL: отрицательное значение %v", cfg.ReconcileInterval)
	}

	// --- Рендеринг ---

	cfg.RenderTimeout, err = getEnvDuration("SLR_RENDER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SLR_RENDER_TIMEOUT: %w", err)
	}
	cfg.ChromePath = getEnvDefault("SLR_CHROME_PATH", "")
	cfg.CompanyName = getEnvDefault("SLR_COMPANY_NAME", "Fanders Microfinance")

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("SLR_DEPHEALTH_GROUP", "slr")
	cfg.DephealthCheckInterval, err = getEnvDuration("SLR_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SLR_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("SLR_SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SLR_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
