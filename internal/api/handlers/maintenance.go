// maintenance.go — служебные обработчики /api/v1/maintenance.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/AECHE7/Fanders-sub003/internal/api/errors"
	"github.com/AECHE7/Fanders-sub003/internal/service"
)

// RunReconcile — POST /api/v1/maintenance/reconcile.
// Запускает сверку синхронно и возвращает отчёт. Повторный запуск во время
// выполняющейся сверки отклоняется с 409.
func (h *APIHandler) RunReconcile(w http.ResponseWriter, r *http.Request) {
	if h.reconcile == nil {
		apierrors.InternalError(w, "Сверка не настроена")
		return
	}

	report, err := h.reconcile.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrReconcileInProgress) {
			apierrors.Conflict(w, "Сверка уже выполняется")
			return
		}
		h.logger.Error("Ошибка сверки по запросу", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка сверки")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// InvalidateRuleCache — POST /api/v1/maintenance/rule-cache/invalidate.
// Сбрасывает кэш правил после изменения slr_generation_rules.
func (h *APIHandler) InvalidateRuleCache(w http.ResponseWriter, r *http.Request) {
	if h.rules == nil {
		apierrors.InternalError(w, "Кэш правил не настроен")
		return
	}
	h.rules.Invalidate()
	h.logger.Info("Кэш правил сброшен по запросу")
	w.WriteHeader(http.StatusNoContent)
}
