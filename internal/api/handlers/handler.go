// handler.go — основной обработчик API SLR-сервиса.
// Регистрирует маршруты chi и делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/AECHE7/Fanders-sub003/internal/api/errors"
	"github.com/AECHE7/Fanders-sub003/internal/domain/model"
	"github.com/AECHE7/Fanders-sub003/internal/domain/result"
	"github.com/AECHE7/Fanders-sub003/internal/repository"
	"github.com/AECHE7/Fanders-sub003/internal/service"
)

// SLRService — операции жизненного цикла документов.
type SLRService interface {
	Generate(ctx context.Context, loanID, actorID int64, trigger model.Trigger, rc model.RequestContext) result.Result[*model.SLRDocument]
	Download(ctx context.Context, documentID, actorID int64, reason string, rc model.RequestContext) result.Result[*model.Payload]
	Archive(ctx context.Context, documentID, actorID int64, reason string, rc model.RequestContext) result.Result[service.ArchiveResult]
	View(ctx context.Context, documentID, actorID int64, reason string, rc model.RequestContext) result.Result[*model.SLRDocument]
	GetActiveByLoan(ctx context.Context, loanID int64) result.Result[*model.SLRDocument]
	List(ctx context.Context, filters repository.SLRListFilters, limit, offset int) result.Result[service.DocumentPage]
	AccessHistory(ctx context.Context, documentID int64, limit int) result.Result[[]*model.AccessLogEntry]
	Events(ctx context.Context, documentID int64, limit int) result.Result[[]*model.AuditEvent]
	CheckEligibility(ctx context.Context, loanID int64, trigger model.Trigger) result.Result[service.Eligibility]
	ListRules(ctx context.Context) result.Result[[]*model.GenerationRule]
}

// Reconciler — запуск сверки хранилища по запросу.
type Reconciler interface {
	RunOnce(ctx context.Context) (*service.ReconcileReport, error)
}

// RuleCache — кэш правил генерации.
type RuleCache interface {
	Invalidate()
}

// APIHandler — основной обработчик API SLR-сервиса.
type APIHandler struct {
	health    *HealthHandler
	slr       SLRService
	reconcile Reconciler
	rules     RuleCache
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	slr SLRService,
	reconcile Reconciler,
	rules RuleCache,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:    health,
		slr:       slr,
		reconcile: reconcile,
		rules:     rules,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// Register регистрирует маршруты API в роутере.
func (h *APIHandler) Register(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierrors.NotFound(w, "Маршрут не найден: "+r.URL.Path)
	})

	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/loans/{loan_id}/slr", func(r chi.Router) {
			r.Post("/", h.GenerateSLR)
			r.Get("/", h.GetActiveSLR)
			r.Get("/eligibility", h.CheckEligibility)
		})

		r.Get("/slr", h.ListSLR)
		r.Route("/slr/{slr_id}", func(r chi.Router) {
			r.Get("/", h.GetSLR)
			r.Get("/download", h.DownloadSLR)
			r.Post("/archive", h.ArchiveSLR)
			r.Get("/access-log", h.AccessLog)
			r.Get("/events", h.EventLog)
		})

		r.Get("/slr-rules", h.ListRules)
		r.Post("/maintenance/reconcile", h.RunReconcile)
		r.Post("/maintenance/rule-cache/invalidate", h.InvalidateRuleCache)
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// paginationDefaults нормализует параметры пагинации.
// Возвращает корректные limit и offset.
func paginationDefaults(limit *int, offset *int) (int, int) {
	l := service.DefaultListLimit
	o := 0

	if limit != nil {
		l = *limit
		if l < 1 {
			l = 1
		}
		if l > service.MaxListLimit {
			l = service.MaxListLimit
		}
	}

	if offset != nil {
		o = *offset
		if o < 0 {
			o = 0
		}
	}

	return l, o
}

// requestContext собирает данные вызывающей стороны для журнала доступа.
func requestContext(r *http.Request) model.RequestContext {
	return model.RequestContext{
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		RequestID:  chimw.GetReqID(r.Context()),
	}
}
