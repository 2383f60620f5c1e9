// health.go — /health/live, /health/ready и /metrics SLR-сервиса.
// Сервис готов, когда отвечает PostgreSQL, доступны директории документов
// и журнал файловых операций.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AECHE7/Fanders-sub003/internal/config"
)

const serviceName = "slr-service"

// readinessTimeout — общий срок всех проверок готовности.
const readinessTimeout = 3 * time.Second

// ReadinessCheck проверяет одну зависимость; nil — зависимость готова.
type ReadinessCheck func(ctx context.Context) error

// DependencyReporter — состояние зависимостей по данным topologymetrics.
type DependencyReporter interface {
	Health() map[string]bool
}

type namedCheck struct {
	name  string
	check ReadinessCheck
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	checks  []namedCheck
	deps    DependencyReporter
	metrics http.Handler
}

// NewHealthHandler создаёт обработчик. deps — nil, если topologymetrics не запущен.
func NewHealthHandler(deps DependencyReporter) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		metrics: promhttp.Handler(),
	}
}

// WithCheck добавляет проверку готовности под именем name.
func (h *HealthHandler) WithCheck(name string, check ReadinessCheck) *HealthHandler {
	h.checks = append(h.checks, namedCheck{name: name, check: check})
	return h
}

type readyResponse struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Version      string            `json:"version"`
	Timestamp    string            `json:"timestamp"`
	Checks       map[string]string `json:"checks"`
	Dependencies map[string]bool   `json:"dependencies,omitempty"`
}

// HealthLive — процесс жив, зависимости не проверяются.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   serviceName,
		"version":   config.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthReady выполняет все проверки. 503, если хоть одна не прошла
// или проверки не настроены. Данные topologymetrics только отображаются.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := readyResponse{
		Status:    "ok",
		Service:   serviceName,
		Version:   config.Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]string, len(h.checks)),
	}
	if len(h.checks) == 0 {
		resp.Status = "fail"
	}
	for _, c := range h.checks {
		if err := c.check(ctx); err != nil {
			resp.Checks[c.name] = "fail: " + err.Error()
			resp.Status = "fail"
			continue
		}
		resp.Checks[c.name] = "ok"
	}
	if h.deps != nil {
		resp.Dependencies = h.deps.Health()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
