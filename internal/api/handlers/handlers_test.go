package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AECHE7/Fanders-sub003/internal/api/middleware"
	"github.com/AECHE7/Fanders-sub003/internal/domain/model"
	"github.com/AECHE7/Fanders-sub003/internal/domain/result"
	"github.com/AECHE7/Fanders-sub003/internal/repository"
	"github.com/AECHE7/Fanders-sub003/internal/service"
)

// --- Заглушки ---

type stubSLR struct {
	generateFn    func(loanID, actorID int64, trigger model.Trigger) result.Result[*model.SLRDocument]
	downloadFn    func(id, actorID int64, reason string) result.Result[*model.Payload]
	archiveFn     func(id, actorID int64, reason string) result.Result[service.ArchiveResult]
	activeFn      func(loanID int64) result.Result[*model.SLRDocument]
	viewFn        func(id, actorID int64, reason string) result.Result[*model.SLRDocument]
	listFn        func(f repository.SLRListFilters, limit, offset int) result.Result[service.DocumentPage]
	historyFn     func(id int64, limit int) result.Result[[]*model.AccessLogEntry]
	eventsFn      func(id int64, limit int) result.Result[[]*model.AuditEvent]
	eligibilityFn func(loanID int64, trigger model.Trigger) result.Result[service.Eligibility]

	lastRC model.RequestContext
}

func (s *stubSLR) Generate(_ context.Context, loanID, actorID int64, trigger model.Trigger, rc model.RequestContext) result.Result[*model.SLRDocument] {
	s.lastRC = rc
	return s.generateFn(loanID, actorID, trigger)
}

func (s *stubSLR) Download(_ context.Context, id, actorID int64, reason string, rc model.RequestContext) result.Result[*model.Payload] {
	s.lastRC = rc
	return s.downloadFn(id, actorID, reason)
}

func (s *stubSLR) Archive(_ context.Context, id, actorID int64, reason string, _ model.RequestContext) result.Result[service.ArchiveResult] {
	return s.archiveFn(id, actorID, reason)
}

func (s *stubSLR) View(_ context.Context, id, actorID int64, reason string, _ model.RequestContext) result.Result[*model.SLRDocument] {
	return s.viewFn(id, actorID, reason)
}

func (s *stubSLR) GetActiveByLoan(_ context.Context, loanID int64) result.Result[*model.SLRDocument] {
	return s.activeFn(loanID)
}

func (s *stubSLR) List(_ context.Context, f repository.SLRListFilters, limit, offset int) result.Result[service.DocumentPage] {
	return s.listFn(f, limit, offset)
}

func (s *stubSLR) AccessHistory(_ context.Context, id int64, limit int) result.Result[[]*model.AccessLogEntry] {
	return s.historyFn(id, limit)
}

func (s *stubSLR) Events(_ context.Context, id int64, limit int) result.Result[[]*model.AuditEvent] {
	return s.eventsFn(id, limit)
}

func (s *stubSLR) CheckEligibility(_ context.Context, loanID int64, trigger model.Trigger) result.Result[service.Eligibility] {
	return s.eligibilityFn(loanID, trigger)
}

func (s *stubSLR) ListRules(context.Context) result.Result[[]*model.GenerationRule] {
	return result.Success([]*model.GenerationRule{
		{ID: 1, RuleName: "Manual", TriggerEvent: model.TriggerManual, IsActive: true, RequireSignatures: true},
	})
}

type stubReconciler struct {
	report *service.ReconcileReport
	err    error
}

func (s *stubReconciler) RunOnce(context.Context) (*service.ReconcileReport, error) {
	return s.report, s.err
}

type stubRuleCache struct{ invalidated int }

func (c *stubRuleCache) Invalidate() { c.invalidated++ }

type stubDeps map[string]bool

func (d stubDeps) Health() map[string]bool { return d }

// --- Сборка ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(slr SLRService, rec Reconciler, health *HealthHandler, rules RuleCache) http.Handler {
	h := NewAPIHandler(health, slr, rec, rules, testLogger())
	r := chi.NewRouter()
	r.Use(middleware.Actor("/health/", "/metrics"))
	h.Register(r)
	return r
}

func newRouter(slr SLRService, rec Reconciler) http.Handler {
	return newHandler(slr, rec, NewHealthHandler(nil), nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(middleware.HeaderUserID, "5")
	req.Header.Set("User-Agent", "handler-test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("ошибка декодирования тела: %v", err)
	}
	return body.Error.Code
}

var sampleDoc = &model.SLRDocument{
	ID:                11,
	LoanID:            123,
	DocumentNumber:    "SLR-202501-000123",
	GeneratedBy:       5,
	GenerationTrigger: model.TriggerManual,
	FileName:          "SLR_SLR-202501-000123_20250115.pdf",
	FileSize:          4,
	ContentHash:       "abc",
	Status:            model.StatusActive,
	GeneratedAt:       time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
}

// --- Тесты ---

func TestGenerateSLR(t *testing.T) {
	var gotLoan, gotActor int64
	var gotTrigger model.Trigger
	slr := &stubSLR{generateFn: func(loanID, actorID int64, trigger model.Trigger) result.Result[*model.SLRDocument] {
		gotLoan, gotActor, gotTrigger = loanID, actorID, trigger
		return result.Success(sampleDoc)
	}}
	h := newRouter(slr, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/loans/123/slr", `{"trigger":" Loan_Approval "}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if gotLoan != 123 || gotActor != 5 || gotTrigger != model.TriggerLoanApproval {
		t.Errorf("вызов Generate(%d, %d, %q)", gotLoan, gotActor, gotTrigger)
	}
	if slr.lastRC.UserAgent != "handler-test" {
		t.Errorf("UserAgent = %q", slr.lastRC.UserAgent)
	}

	var doc documentResponse
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("ошибка декодирования: %v", err)
	}
	if doc.ID != 11 || doc.DocumentNumber != "SLR-202501-000123" || doc.Status != "active" {
		t.Errorf("ответ = %+v", doc)
	}
}

func TestGenerateSLR_DefaultTrigger(t *testing.T) {
	var gotTrigger model.Trigger
	slr := &stubSLR{generateFn: func(_, _ int64, trigger model.Trigger) result.Result[*model.SLRDocument] {
		gotTrigger = trigger
		return result.Success(sampleDoc)
	}}
	rec := do(t, newRouter(slr, nil), http.MethodPost, "/api/v1/loans/123/slr", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("статус = %d", rec.Code)
	}
	if gotTrigger != model.TriggerManual {
		t.Errorf("trigger = %q, ожидается manual", gotTrigger)
	}
}

func TestGenerateSLR_Failures(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		failure    result.Code
		wantStatus int
		wantCode   string
	}{
		{"активный документ существует", "/api/v1/loans/1/slr", "", result.CodeActiveSLRExists, http.StatusConflict, "ACTIVE_SLR_EXISTS"},
		{"займ не найден", "/api/v1/loans/1/slr", "", result.CodeLoanNotFound, http.StatusNotFound, "LOAN_NOT_FOUND"},
		{"неверный триггер", "/api/v1/loans/1/slr", `{"trigger":"x"}`, result.CodeInvalidTrigger, http.StatusBadRequest, "INVALID_TRIGGER"},
		{"сумма ниже минимума", "/api/v1/loans/1/slr", "", result.CodePrincipalTooLow, http.StatusUnprocessableEntity, "PRINCIPAL_TOO_LOW"},
		{"ошибка рендеринга", "/api/v1/loans/1/slr", "", result.CodePDFGenerationError, http.StatusInternalServerError, "PDF_GENERATION_ERROR"},
		{"некорректный JSON", "/api/v1/loans/1/slr", `{"trigger":`, "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"некорректный loan_id", "/api/v1/loans/abc/slr", "", "", http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slr := &stubSLR{generateFn: func(int64, int64, model.Trigger) result.Result[*model.SLRDocument] {
				return result.Failure[*model.SLRDocument]("отказ", tt.failure)
			}}
			rec := do(t, newRouter(slr, nil), http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("статус = %d, ожидается %d", rec.Code, tt.wantStatus)
			}
			if code := errorCode(t, rec); code != tt.wantCode {
				t.Errorf("code = %q, ожидается %q", code, tt.wantCode)
			}
		})
	}
}

func TestGenerateSLR_Unauthorized(t *testing.T) {
	h := newRouter(&stubSLR{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/1/slr", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d, ожидается 401", rec.Code)
	}
}

func TestDownloadSLR(t *testing.T) {
	content := []byte("%PDF")
	var gotReason string
	slr := &stubSLR{downloadFn: func(id, actorID int64, reason string) result.Result[*model.Payload] {
		gotReason = reason
		return result.Success(&model.Payload{
			Content:     content,
			FileName:    sampleDoc.FileName,
			FileSize:    int64(len(content)),
			ContentType: model.ContentType,
			ContentHash: "deadbeef",
		})
	}}
	rec := do(t, newRouter(slr, nil), http.MethodGet, "/api/v1/slr/11/download?reason=client+copy", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	if gotReason != "client copy" {
		t.Errorf("reason = %q", gotReason)
	}
	hdr := rec.Header()
	if hdr.Get("Content-Type") != "application/pdf" {
		t.Errorf("Content-Type = %q", hdr.Get("Content-Type"))
	}
	if hdr.Get(HeaderContentSHA256) != "deadbeef" {
		t.Errorf("%s = %q", HeaderContentSHA256, hdr.Get(HeaderContentSHA256))
	}
	if want := `attachment; filename="SLR_SLR-202501-000123_20250115.pdf"`; hdr.Get("Content-Disposition") != want {
		t.Errorf("Content-Disposition = %q", hdr.Get("Content-Disposition"))
	}
	if rec.Body.String() != "%PDF" {
		t.Errorf("тело = %q", rec.Body.String())
	}
}

func TestDownloadSLR_IntegrityFailure(t *testing.T) {
	slr := &stubSLR{downloadFn: func(int64, int64, string) result.Result[*model.Payload] {
		return result.Failure[*model.Payload]("SLR document integrity check failed.", result.CodeIntegrityCheckFailed)
	}}
	rec := do(t, newRouter(slr, nil), http.MethodGet, "/api/v1/slr/11/download", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("статус = %d, ожидается 500", rec.Code)
	}
	if rec.Header().Get(HeaderContentSHA256) != "" {
		t.Error("заголовок хеша отдан при отказе")
	}
	if code := errorCode(t, rec); code != "INTEGRITY_CHECK_FAILED" {
		t.Errorf("code = %q", code)
	}
}

func TestArchiveSLR(t *testing.T) {
	var gotReason string
	slr := &stubSLR{archiveFn: func(id, _ int64, reason string) result.Result[service.ArchiveResult] {
		gotReason = reason
		return result.Success(service.ArchiveResult{ID: id, Status: model.StatusArchived})
	}}
	h := newRouter(slr, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/slr/11/archive", `{"reason":" loan closed "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if gotReason != "loan closed" {
		t.Errorf("reason = %q", gotReason)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("ошибка декодирования: %v", err)
	}
	if body["slr_id"] != float64(11) || body["status"] != "archived" {
		t.Errorf("ответ = %v", body)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/slr/11/archive", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("без причины: статус = %d, ожидается 400", rec.Code)
	}
}

func TestArchiveSLR_InvalidStatus(t *testing.T) {
	slr := &stubSLR{archiveFn: func(int64, int64, string) result.Result[service.ArchiveResult] {
		return result.Failure[service.ArchiveResult]("Only active SLR documents can be archived.", result.CodeInvalidStatus)
	}}
	rec := do(t, newRouter(slr, nil), http.MethodPost, "/api/v1/slr/11/archive", `{"reason":"again"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("статус = %d, ожидается 409", rec.Code)
	}
}

func TestListSLR(t *testing.T) {
	var gotFilters repository.SLRListFilters
	var gotLimit, gotOffset int
	slr := &stubSLR{listFn: func(f repository.SLRListFilters, limit, offset int) result.Result[service.DocumentPage] {
		gotFilters, gotLimit, gotOffset = f, limit, offset
		return result.Success(service.DocumentPage{Items: []*model.SLRDocument{sampleDoc}, Total: 7})
	}}
	h := newRouter(slr, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/slr?loan_id=123&status=active&trigger=manual&date_from=2025-01-01&limit=500&offset=-3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if gotFilters.LoanID == nil || *gotFilters.LoanID != 123 {
		t.Errorf("LoanID = %v", gotFilters.LoanID)
	}
	if gotFilters.Status == nil || *gotFilters.Status != "active" {
		t.Errorf("Status = %v", gotFilters.Status)
	}
	if gotFilters.DateFrom == nil || !gotFilters.DateFrom.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("DateFrom = %v", gotFilters.DateFrom)
	}
	if gotFilters.ClientID != nil || gotFilters.DateTo != nil {
		t.Errorf("незаданные фильтры установлены: %+v", gotFilters)
	}
	if gotLimit != service.MaxListLimit || gotOffset != 0 {
		t.Errorf("limit/offset = %d/%d", gotLimit, gotOffset)
	}

	var body documentListResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("ошибка декодирования: %v", err)
	}
	if body.Total != 7 || len(body.Items) != 1 {
		t.Errorf("ответ = %+v", body)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/slr?date_to=yesterday", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("некорректная дата: статус = %d, ожидается 400", rec.Code)
	}
}

func TestGetActiveSLR(t *testing.T) {
	slr := &stubSLR{activeFn: func(loanID int64) result.Result[*model.SLRDocument] {
		if loanID != 123 {
			return result.Failure[*model.SLRDocument]("SLR document not found.", result.CodeSLRNotFound)
		}
		return result.Success(sampleDoc)
	}}
	h := newRouter(slr, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/loans/123/slr", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"slr_id":11`) {
		t.Errorf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/loans/7/slr", ""); rec.Code != http.StatusNotFound {
		t.Errorf("статус = %d, ожидается 404", rec.Code)
	}
}

func TestGetSLR_RecordsViewer(t *testing.T) {
	var gotID, gotActor int64
	var gotReason string
	slr := &stubSLR{viewFn: func(id, actorID int64, reason string) result.Result[*model.SLRDocument] {
		gotID, gotActor, gotReason = id, actorID, reason
		return result.Success(sampleDoc)
	}}

	rec := do(t, newRouter(slr, nil), http.MethodGet, "/api/v1/slr/11?reason=review", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if gotID != 11 || gotActor != 5 || gotReason != "review" {
		t.Errorf("вызов View(%d, %d, %q)", gotID, gotActor, gotReason)
	}
}

func TestGetSLR_NotFound(t *testing.T) {
	slr := &stubSLR{viewFn: func(int64, int64, string) result.Result[*model.SLRDocument] {
		return result.Failure[*model.SLRDocument]("SLR document not found.", result.CodeSLRNotFound)
	}}
	rec := do(t, newRouter(slr, nil), http.MethodGet, "/api/v1/slr/99", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("статус = %d, ожидается 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "SLR_NOT_FOUND" {
		t.Errorf("code = %q, ожидается SLR_NOT_FOUND", code)
	}
}

func TestEventLog(t *testing.T) {
	var gotLimit int
	slr := &stubSLR{eventsFn: func(id int64, limit int) result.Result[[]*model.AuditEvent] {
		gotLimit = limit
		if id != 11 {
			return result.Failure[[]*model.AuditEvent]("SLR document not found.", result.CodeSLRNotFound)
		}
		return result.Success([]*model.AuditEvent{
			{ID: 2, Action: "slr_download", ActorID: 5, Details: map[string]any{"reason": "copy"}},
		})
	}}
	h := newRouter(slr, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/slr/11/events?limit=500", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	if gotLimit != service.MaxListLimit {
		t.Errorf("limit = %d, ожидается %d", gotLimit, service.MaxListLimit)
	}
	if !strings.Contains(rec.Body.String(), `"action":"slr_download"`) {
		t.Errorf("тело = %s", rec.Body.String())
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/slr/12/events", ""); rec.Code != http.StatusNotFound {
		t.Errorf("статус = %d, ожидается 404", rec.Code)
	}
}

func TestWriteFailure_PlainError(t *testing.T) {
	h := NewAPIHandler(NewHealthHandler(nil), &stubSLR{}, nil, nil, testLogger())
	rec := httptest.NewRecorder()

	h.writeFailure(rec, "generate", errors.New("boom"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("статус = %d, ожидается 500", rec.Code)
	}
	if code := errorCode(t, rec); code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, ожидается INTERNAL_ERROR", code)
	}
}

func TestAccessLog_Limit(t *testing.T) {
	var gotLimit int
	slr := &stubSLR{historyFn: func(_ int64, limit int) result.Result[[]*model.AccessLogEntry] {
		gotLimit = limit
		return result.Success([]*model.AccessLogEntry{{ID: 1, AccessType: model.AccessDownload, Success: true}})
	}}
	h := newRouter(slr, nil)

	if rec := do(t, h, http.MethodGet, "/api/v1/slr/11/access-log", ""); rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	if gotLimit != repository.DefaultAccessHistoryLimit {
		t.Errorf("limit = %d, ожидается %d", gotLimit, repository.DefaultAccessHistoryLimit)
	}
	do(t, h, http.MethodGet, "/api/v1/slr/11/access-log?limit=10", "")
	if gotLimit != 10 {
		t.Errorf("limit = %d, ожидается 10", gotLimit)
	}
}

func TestCheckEligibility(t *testing.T) {
	activeID := int64(11)
	slr := &stubSLR{eligibilityFn: func(loanID int64, trigger model.Trigger) result.Result[service.Eligibility] {
		switch loanID {
		case 1:
			return result.Success(service.Eligibility{LoanID: 1, Trigger: trigger, Flags: service.RuleFlags{RequiresSignature: true}})
		case 2:
			return result.Success(service.Eligibility{LoanID: 2, Trigger: trigger, ActiveDocumentID: &activeID})
		default:
			return result.Failure[service.Eligibility]("Loan status 'pending' does not allow SLR generation.", result.CodeInvalidLoanStatus)
		}
	}}
	h := newRouter(slr, nil)

	tests := []struct {
		path         string
		wantEligible bool
	}{
		{"/api/v1/loans/1/slr/eligibility?trigger=manual", true},
		{"/api/v1/loans/2/slr/eligibility", false},
		{"/api/v1/loans/3/slr/eligibility", false},
	}
	for _, tt := range tests {
		rec := do(t, h, http.MethodGet, tt.path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: статус = %d", tt.path, rec.Code)
		}
		var body map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("ошибка декодирования: %v", err)
		}
		if body["eligible"] != tt.wantEligible {
			t.Errorf("%s: eligible = %v, ожидается %v", tt.path, body["eligible"], tt.wantEligible)
		}
	}
}

func TestListRules(t *testing.T) {
	rec := do(t, newRouter(&stubSLR{}, nil), http.MethodGet, "/api/v1/slr-rules", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"trigger_event":"manual"`) {
		t.Errorf("тело = %s", rec.Body.String())
	}
}

func TestRunReconcile(t *testing.T) {
	rep := &service.ReconcileReport{DocumentsChecked: 3, Issues: []service.ReconcileIssue{}}

	rec := do(t, newRouter(&stubSLR{}, &stubReconciler{report: rep}), http.MethodPost, "/api/v1/maintenance/reconcile", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"documents_checked":3`) {
		t.Errorf("тело = %s", rec.Body.String())
	}

	rec = do(t, newRouter(&stubSLR{}, &stubReconciler{err: service.ErrReconcileInProgress}), http.MethodPost, "/api/v1/maintenance/reconcile", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("статус = %d, ожидается 409", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	rec := do(t, newRouter(&stubSLR{}, nil), http.MethodGet, "/api/v1/unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("статус = %d, ожидается 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "NOT_FOUND" {
		t.Errorf("code = %q, ожидается NOT_FOUND", code)
	}
}

func TestInvalidateRuleCache(t *testing.T) {
	cache := &stubRuleCache{}
	h := newHandler(&stubSLR{}, nil, NewHealthHandler(nil), cache)

	rec := do(t, h, http.MethodPost, "/api/v1/maintenance/rule-cache/invalidate", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("статус = %d, ожидается 204", rec.Code)
	}
	if cache.invalidated != 1 {
		t.Errorf("Invalidate вызван %d раз", cache.invalidated)
	}

	rec = do(t, newRouter(&stubSLR{}, nil), http.MethodPost, "/api/v1/maintenance/rule-cache/invalidate", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("без кэша: статус = %d, ожидается 500", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		health     *HealthHandler
		wantStatus int
		wantBody   string
	}{
		{"все проверки прошли", NewHealthHandler(nil).WithCheck("postgresql", ok).WithCheck("storage", ok), http.StatusOK, `"storage":"ok"`},
		{"PostgreSQL недоступен", NewHealthHandler(nil).WithCheck("postgresql", down).WithCheck("storage", ok), http.StatusServiceUnavailable, `"postgresql":"fail: connection refused"`},
		{"нет проверок", NewHealthHandler(nil), http.StatusServiceUnavailable, `"status":"fail"`},
		{"зависимости topologymetrics", NewHealthHandler(stubDeps{"postgres": true}).WithCheck("postgresql", ok), http.StatusOK, `"dependencies":{"postgres":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&stubSLR{}, nil, tt.health, nil)
			req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидается %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("тело = %s, ожидается %s", rec.Body.String(), tt.wantBody)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	newRouter(&stubSLR{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"service":"slr-service"`) {
		t.Errorf("live: статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
}
