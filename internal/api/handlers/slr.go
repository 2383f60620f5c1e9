// slr.go — обработчики /api/v1/loans/{loan_id}/slr и /api/v1/slr endpoints.
// Генерация, скачивание с проверкой целостности, архивация и чтение документов.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/AECHE7/Fanders-sub003/internal/api/errors"
	"github.com/AECHE7/Fanders-sub003/internal/api/middleware"
	"github.com/AECHE7/Fanders-sub003/internal/domain/model"
	"github.com/AECHE7/Fanders-sub003/internal/domain/result"
	"github.com/AECHE7/Fanders-sub003/internal/repository"
	"github.com/AECHE7/Fanders-sub003/internal/service"
)

// HeaderContentSHA256 — заголовок с SHA-256 отданного содержимого.
const HeaderContentSHA256 = "X-Content-SHA256"

// maxBodyBytes — предельный размер тела JSON-запроса.
const maxBodyBytes = 64 << 10

// --- Запросы и ответы ---

type generateRequest struct {
	Trigger string `json:"trigger"`
}

type archiveRequest struct {
	Reason string `json:"reason"`
}

type documentResponse struct {
	ID                      int64      `json:"slr_id"`
	LoanID                  int64      `json:"loan_id"`
	DocumentNumber          string     `json:"document_number"`
	GeneratedBy             int64      `json:"generated_by"`
	GenerationTrigger       string     `json:"generation_trigger"`
	FileName                string     `json:"file_name"`
	FileSize                int64      `json:"file_size"`
	ContentHash             string     `json:"content_hash"`
	ClientSignatureRequired bool       `json:"client_signature_required"`
	Status                  string     `json:"status"`
	DownloadCount           int        `json:"download_count"`
	LastDownloadedAt        *time.Time `json:"last_downloaded_at,omitempty"`
	LastDownloadedBy        *int64     `json:"last_downloaded_by,omitempty"`
	ReplacementReason       *string    `json:"replacement_reason,omitempty"`
	GeneratedAt             time.Time  `json:"generated_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

type documentListResponse struct {
	Items  []documentResponse `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type accessLogResponse struct {
	ID         int64     `json:"id"`
	AccessType string    `json:"access_type"`
	ActorID    int64     `json:"accessed_by"`
	Reason     string    `json:"access_reason,omitempty"`
	RemoteAddr string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Success    bool      `json:"success"`
	AccessedAt time.Time `json:"accessed_at"`
}

type eventResponse struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	ActorID   int64          `json:"user_id"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
}

type ruleResponse struct {
	ID                 int64    `json:"id"`
	RuleName           string   `json:"rule_name"`
	Description        string   `json:"description,omitempty"`
	TriggerEvent       string   `json:"trigger_event"`
	AutoGenerate       bool     `json:"auto_generate"`
	MinPrincipalAmount *float64 `json:"min_principal_amount,omitempty"`
	MaxPrincipalAmount *float64 `json:"max_principal_amount,omitempty"`
	RequireSignatures  bool     `json:"require_signatures"`
	NotifyClient       bool     `json:"notify_client"`
	NotifyOfficers     bool     `json:"notify_officers"`
	IsActive           bool     `json:"is_active"`
}

type eligibilityResponse struct {
	LoanID           int64             `json:"loan_id"`
	Trigger          string            `json:"trigger"`
	Eligible         bool              `json:"eligible"`
	Rule             *ruleResponse     `json:"rule,omitempty"`
	Flags            service.RuleFlags `json:"flags"`
	ActiveDocumentID *int64            `json:"active_slr_id,omitempty"`
}

func mapDocument(d *model.SLRDocument) documentResponse {
	return documentResponse{
		ID:                      d.ID,
		LoanID:                  d.LoanID,
		DocumentNumber:          d.DocumentNumber,
		GeneratedBy:             d.GeneratedBy,
		GenerationTrigger:       string(d.GenerationTrigger),
		FileName:                d.FileName,
		FileSize:                d.FileSize,
		ContentHash:             d.ContentHash,
		ClientSignatureRequired: d.ClientSignatureRequired,
		Status:                  string(d.Status),
		DownloadCount:           d.DownloadCount,
		LastDownloadedAt:        d.LastDownloadedAt,
		LastDownloadedBy:        d.LastDownloadedBy,
		ReplacementReason:       d.ReplacementReason,
		GeneratedAt:             d.GeneratedAt,
		UpdatedAt:               d.UpdatedAt,
	}
}

func mapRule(r *model.GenerationRule) *ruleResponse {
	if r == nil {
		return nil
	}
	return &ruleResponse{
		ID:                 r.ID,
		RuleName:           r.RuleName,
		Description:        r.Description,
		TriggerEvent:       string(r.TriggerEvent),
		AutoGenerate:       r.AutoGenerate,
		MinPrincipalAmount: r.MinPrincipalAmount,
		MaxPrincipalAmount: r.MaxPrincipalAmount,
		RequireSignatures:  r.RequireSignatures,
		NotifyClient:       r.NotifyClient,
		NotifyOfficers:     r.NotifyOfficers,
		IsActive:           r.IsActive,
	}
}

// --- Генерация и чтение по займу ---

// GenerateSLR — POST /api/v1/loans/{loan_id}/slr.
// Тело {"trigger": "..."}; без тела используется manual.
func (h *APIHandler) GenerateSLR(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Пользователь не идентифицирован")
		return
	}
	loanID, ok := pathID(w, r, "loan_id")
	if !ok {
		return
	}

	var req generateRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	trigger := model.TriggerManual
	if strings.TrimSpace(req.Trigger) != "" {
		trigger = service.ParseTrigger(req.Trigger)
	}

	doc, err := h.slr.Generate(r.Context(), loanID, actorID, trigger, requestContext(r)).Unwrap()
	if err != nil {
		h.writeFailure(w, "generate", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapDocument(doc))
}

// GetActiveSLR — GET /api/v1/loans/{loan_id}/slr.
func (h *APIHandler) GetActiveSLR(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loan_id")
	if !ok {
		return
	}
	doc, err := h.slr.GetActiveByLoan(r.Context(), loanID).Unwrap()
	if err != nil {
		h.writeFailure(w, "get_active", err)
		return
	}
	writeJSON(w, http.StatusOK, mapDocument(doc))
}

// CheckEligibility — GET /api/v1/loans/{loan_id}/slr/eligibility?trigger=.
// Отказ правила возвращается с eligible=false и кодом отказа, а не ошибкой.
func (h *APIHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loan_id")
	if !ok {
		return
	}
	trigger := model.TriggerManual
	if raw := r.URL.Query().Get("trigger"); raw != "" {
		trigger = service.ParseTrigger(raw)
	}

	e, err := h.slr.CheckEligibility(r.Context(), loanID, trigger).Unwrap()
	if err != nil {
		var failure *result.Error
		if errors.As(err, &failure) && isRuleFailure(failure.Code) {
			writeJSON(w, http.StatusOK, map[string]any{
				"loan_id":  loanID,
				"trigger":  string(trigger),
				"eligible": false,
				"code":     failure.Code,
				"message":  failure.Message,
			})
			return
		}
		h.writeFailure(w, "eligibility", err)
		return
	}

	writeJSON(w, http.StatusOK, eligibilityResponse{
		LoanID:           e.LoanID,
		Trigger:          string(e.Trigger),
		Eligible:         e.ActiveDocumentID == nil,
		Rule:             mapRule(e.Rule),
		Flags:            e.Flags,
		ActiveDocumentID: e.ActiveDocumentID,
	})
}

// --- Документы ---

// ListSLR — GET /api/v1/slr.
func (h *APIHandler) ListSLR(w http.ResponseWriter, r *http.Request) {
	filters, err := parseListFilters(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	limitParam, err := optionalInt(r, "limit")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	offsetParam, err := optionalInt(r, "offset")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	limit, offset := paginationDefaults(limitParam, offsetParam)

	page, err := h.slr.List(r.Context(), filters, limit, offset).Unwrap()
	if err != nil {
		h.writeFailure(w, "list", err)
		return
	}

	items := make([]documentResponse, 0, len(page.Items))
	for _, d := range page.Items {
		items = append(items, mapDocument(d))
	}
	writeJSON(w, http.StatusOK, documentListResponse{
		Items:  items,
		Total:  page.Total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetSLR — GET /api/v1/slr/{slr_id}?reason=.
// Просмотр карточки документа записывается в журнал доступа как view.
func (h *APIHandler) GetSLR(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Пользователь не идентифицирован")
		return
	}
	id, ok := pathID(w, r, "slr_id")
	if !ok {
		return
	}
	doc, err := h.slr.View(r.Context(), id, actorID, r.URL.Query().Get("reason"), requestContext(r)).Unwrap()
	if err != nil {
		h.writeFailure(w, "view", err)
		return
	}
	writeJSON(w, http.StatusOK, mapDocument(doc))
}

// DownloadSLR — GET /api/v1/slr/{slr_id}/download?reason=.
// Отдаёт содержимое только после успешной проверки SHA-256.
func (h *APIHandler) DownloadSLR(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Пользователь не идентифицирован")
		return
	}
	id, ok := pathID(w, r, "slr_id")
	if !ok {
		return
	}

	p, err := h.slr.Download(r.Context(), id, actorID, r.URL.Query().Get("reason"), requestContext(r)).Unwrap()
	if err != nil {
		h.writeFailure(w, "download", err)
		return
	}

	w.Header().Set("Content-Type", p.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(p.FileSize, 10))
	w.Header().Set(HeaderContentSHA256, p.ContentHash)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(p.Content); err != nil {
		h.logger.Warn("Ошибка отправки документа",
			slog.Int64("slr_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// ArchiveSLR — POST /api/v1/slr/{slr_id}/archive. Тело {"reason": "..."}.
func (h *APIHandler) ArchiveSLR(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Пользователь не идентифицирован")
		return
	}
	id, ok := pathID(w, r, "slr_id")
	if !ok {
		return
	}

	var req archiveRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		apierrors.ValidationError(w, "Причина архивации (reason) обязательна")
		return
	}

	archived, err := h.slr.Archive(r.Context(), id, actorID, req.Reason, requestContext(r)).Unwrap()
	if err != nil {
		h.writeFailure(w, "archive", err)
		return
	}
	writeJSON(w, http.StatusOK, archived)
}

// AccessLog — GET /api/v1/slr/{slr_id}/access-log?limit=.
func (h *APIHandler) AccessLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "slr_id")
	if !ok {
		return
	}
	limit, ok := historyLimit(w, r)
	if !ok {
		return
	}

	entries, err := h.slr.AccessHistory(r.Context(), id, limit).Unwrap()
	if err != nil {
		h.writeFailure(w, "access_log", err)
		return
	}
	items := make([]accessLogResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, accessLogResponse{
			ID:         e.ID,
			AccessType: string(e.AccessType),
			ActorID:    e.ActorID,
			Reason:     e.Reason,
			RemoteAddr: e.RemoteAddr,
			UserAgent:  e.UserAgent,
			RequestID:  e.RequestID,
			Success:    e.Success,
			AccessedAt: e.AccessedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// EventLog — GET /api/v1/slr/{slr_id}/events?limit=.
// События документа из общесистемного журнала, новые первыми.
func (h *APIHandler) EventLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "slr_id")
	if !ok {
		return
	}
	limit, ok := historyLimit(w, r)
	if !ok {
		return
	}

	events, err := h.slr.Events(r.Context(), id, limit).Unwrap()
	if err != nil {
		h.writeFailure(w, "event_log", err)
		return
	}
	items := make([]eventResponse, 0, len(events))
	for _, e := range events {
		items = append(items, eventResponse{
			ID:        e.ID,
			Action:    e.Action,
			ActorID:   e.ActorID,
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ListRules — GET /api/v1/slr-rules.
func (h *APIHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.slr.ListRules(r.Context()).Unwrap()
	if err != nil {
		h.writeFailure(w, "list_rules", err)
		return
	}
	items := make([]*ruleResponse, 0, len(rules))
	for _, rule := range rules {
		items = append(items, mapRule(rule))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// --- Вспомогательные функции ---

// writeFailure записывает ошибку из Result.Unwrap. Код отказа *result.Error
// сохраняется в ответе; отказы с кодом 5xx логируются.
func (h *APIHandler) writeFailure(w http.ResponseWriter, op string, err error) {
	var failure *result.Error
	if !errors.As(err, &failure) {
		h.logger.Error("Ошибка операции SLR",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервиса")
		return
	}
	if apierrors.StatusFor(failure.Code) >= http.StatusInternalServerError {
		h.logger.Error("Отказ операции SLR",
			slog.String("operation", op),
			slog.String("code", string(failure.Code)),
			slog.String("message", failure.Message),
		)
	}
	apierrors.WriteFailure(w, failure.Code, failure.Message)
}

// isRuleFailure — отказ проверки допустимости займа по правилу.
func isRuleFailure(code result.Code) bool {
	switch code {
	case result.CodeInvalidLoanStatus, result.CodeNoGenerationRule, result.CodeRuleNotActive,
		result.CodePrincipalTooLow, result.CodePrincipalTooHigh:
		return true
	}
	return false
}

// historyLimit разбирает limit журналов документа: по умолчанию
// repository.DefaultAccessHistoryLimit, не больше service.MaxListLimit.
func historyLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limitParam, err := optionalInt(r, "limit")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return 0, false
	}
	limit := repository.DefaultAccessHistoryLimit
	if limitParam != nil && *limitParam > 0 {
		limit = min(*limitParam, service.MaxListLimit)
	}
	return limit, true
}

// pathID разбирает положительный числовой параметр пути.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный параметр %s: %q", name, raw))
		return 0, false
	}
	return id, true
}

// decodeOptionalBody разбирает JSON-тело запроса. Пустое тело допустимо.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	return true
}

func optionalInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("некорректный параметр %s: %q", name, raw)
	}
	return &n, nil
}

func optionalInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("некорректный параметр %s: %q", name, raw)
	}
	return &n, nil
}

// optionalDate принимает дату YYYY-MM-DD или RFC 3339.
func optionalDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("некорректная дата %s: %q (YYYY-MM-DD или RFC 3339)", name, raw)
}

func optionalString(r *http.Request, name string) *string {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil
	}
	return &raw
}

func parseListFilters(r *http.Request) (repository.SLRListFilters, error) {
	var f repository.SLRListFilters
	var err error

	if f.LoanID, err = optionalInt64(r, "loan_id"); err != nil {
		return f, err
	}
	if f.ClientID, err = optionalInt64(r, "client_id"); err != nil {
		return f, err
	}
	if f.GeneratedBy, err = optionalInt64(r, "generated_by"); err != nil {
		return f, err
	}
	if f.DateFrom, err = optionalDate(r, "date_from"); err != nil {
		return f, err
	}
	if f.DateTo, err = optionalDate(r, "date_to"); err != nil {
		return f, err
	}
	f.Status = optionalString(r, "status")
	f.Trigger = optionalString(r, "trigger")
	return f, nil
}
