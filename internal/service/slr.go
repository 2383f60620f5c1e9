// slr.go — оркестратор жизненного цикла документов SLR.
//
// Документ живёт в двух независимых хранилищах: файл в директории active/archive
// и запись в slr_documents. Каждая операция, затрагивающая оба хранилища,
// выполняется в транзакции PostgreSQL и имеет компенсирующее действие над
// файлом на случай, если запись в БД не удалась:
//   - Generate: запись файла → INSERT; при ошибке INSERT или COMMIT файл удаляется
//   - Archive: перенос файла → UPDATE; при ошибке UPDATE или COMMIT файл возвращается
//
// Файловые операции журналируются в WAL, чтобы компенсация, прерванная
// падением процесса, была завершена при следующем старте (см. recovery.go).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/AECHE7/Fanders-sub003/internal/domain/model"
	"github.com/AECHE7/Fanders-sub003/internal/domain/result"
	"github.com/AECHE7/Fanders-sub003/internal/renderer"
	"github.com/AECHE7/Fanders-sub003/internal/repository"
	"github.com/AECHE7/Fanders-sub003/internal/schedule"
	"github.com/AECHE7/Fanders-sub003/internal/storage/filestore"
	"github.com/AECHE7/Fanders-sub003/internal/storage/wal"
)

// Имена операций для метрик и логов.
const (
	opGenerate        = "generate"
	opDownload        = "download"
	opArchive         = "archive"
	opGet             = "get"
	opView            = "view"
	opGetActiveByLoan = "get_active_by_loan"
	opList            = "list"
	opAccessHistory   = "access_history"
	opEvents          = "events"
	opEligibility     = "eligibility"
	opListRules       = "list_rules"
)

// Пагинация списка документов.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// errRollback — функция транзакции вернула отказ, транзакцию нужно откатить.
var errRollback = errors.New("rollback requested")

// Store — хранилище записей: репозитории вне транзакции и единица работы.
// Реализуется *repository.Store.
type Store interface {
	Repositories() repository.Repositories
	InTx(ctx context.Context, fn func(r repository.Repositories) error) error
}

// Renderer — формирует содержимое документа.
type Renderer interface {
	Render(ctx context.Context, doc renderer.Document) ([]byte, error)
}

// ArchiveResult — результат архивации.
type ArchiveResult struct {
	ID     int64                `json:"slr_id"`
	Status model.DocumentStatus `json:"status"`
}

// DocumentPage — страница списка документов.
type DocumentPage struct {
	Items []*model.SLRDocument
	Total int
}

// Eligibility — результат проверки возможности генерации без самой генерации.
type Eligibility struct {
	LoanID           int64
	Trigger          model.Trigger
	Rule             *model.GenerationRule
	Flags            RuleFlags
	ActiveDocumentID *int64
}

// LifecycleService — генерация, скачивание с проверкой целостности и архивация.
type LifecycleService struct {
	store    Store
	rules    *RuleResolver
	renderer Renderer
	calc     schedule.Calculator
	files    *filestore.FileStore
	journal  *wal.WAL
	audit    *AuditLogger
	now      func() time.Time
	logger   *slog.Logger
}

// NewLifecycleService создаёт оркестратор.
func NewLifecycleService(
	store Store,
	rules *RuleResolver,
	r Renderer,
	calc schedule.Calculator,
	files *filestore.FileStore,
	journal *wal.WAL,
	audit *AuditLogger,
	logger *slog.Logger,
) *LifecycleService {
	return &LifecycleService{
		store:    store,
		rules:    rules,
		renderer: r,
		calc:     calc,
		files:    files,
		journal:  journal,
		audit:    audit,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(slog.String("component", "slr_lifecycle")),
	}
}

// guard — граница публичной операции. Неожиданная ошибка или паника
// превращаются в отказ EXCEPTION, наружу ничего не пробрасывается.
func guard[T any](s *LifecycleService, op string, fn func() (result.Result[T], error)) (res result.Result[T]) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Паника в операции",
				slog.String("operation", op),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			res = result.Failure[T](exceptionMessage(op, fmt.Sprint(rec)), result.CodeException)
		}

		code := "OK"
		if res.IsFailure() {
			code = string(res.Code())
		}
		operationsTotal.WithLabelValues(op, code).Inc()
		operationDurationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	r, err := fn()
	if err != nil {
		s.logger.Error("Ошибка выполнения операции",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return result.Failure[T](exceptionMessage(op, err.Error()), result.CodeException)
	}
	return r
}

func exceptionMessage(op, detail string) string {
	verb := map[string]string{
		opGenerate: "generating",
		opDownload: "downloading",
		opArchive:  "archiving",
	}[op]
	if verb == "" {
		verb = "processing"
	}
	return fmt.Sprintf("An unexpected error occurred while %s SLR: %s", verb, detail)
}

// --- Генерация ---

// pendingBlob — файл, записанный в транзакции генерации, но ещё не закреплённый COMMIT.
type pendingBlob struct {
	path  string
	walID string
}

// Generate создаёт документ SLR для займа.
func (s *LifecycleService) Generate(
	ctx context.Context,
	loanID, actorID int64,
	trigger model.Trigger,
	rc model.RequestContext,
) result.Result[*model.SLRDocument] {
	return guard(s, opGenerate, func() (result.Result[*model.SLRDocument], error) {
		return s.generate(ctx, loanID, actorID, trigger, rc)
	})
}

func (s *LifecycleService) generate(
	ctx context.Context,
	loanID, actorID int64,
	trigger model.Trigger,
	rc model.RequestContext,
) (result.Result[*model.SLRDocument], error) {
	if !trigger.IsValid() {
		return result.Failure[*model.SLRDocument]("Invalid generation trigger: "+string(trigger), result.CodeInvalidTrigger), nil
	}

	var (
		res       result.Result[*model.SLRDocument]
		blob      *pendingBlob
		fnDone    bool
		committed bool
	)

	// Компенсация выполняется и при панике внутри транзакции.
	defer func() {
		if blob != nil && !committed {
			s.discardBlob(blob)
		}
	}()

	err := s.store.InTx(ctx, func(repos repository.Repositories) error {
		var txErr error
		res, txErr = s.generateInTx(ctx, repos, loanID, actorID, trigger, &blob)
		if txErr != nil {
			return txErr
		}
		if res.IsFailure() {
			return errRollback
		}
		fnDone = true
		return nil
	})

	switch {
	case errors.Is(err, errRollback):
		return res, nil
	case err != nil && fnDone:
		s.logger.Error("Ошибка фиксации транзакции генерации",
			slog.Int64("loan_id", loanID),
			slog.String("error", err.Error()),
		)
		return result.Failure[*model.SLRDocument]("Failed to save SLR record to database.", result.CodeDBInsertError), nil
	case err != nil:
		return res, err
	}

	committed = true
	if err := s.journal.Commit(blob.walID); err != nil {
		s.logger.Warn("Не удалось закрыть запись журнала",
			slog.String("wal_id", blob.walID),
			slog.String("error", err.Error()),
		)
	}

	doc := res.Data()
	documentBytes.Observe(float64(doc.FileSize))
	s.audit.Record(ctx, doc.ID, model.AccessGeneration, actorID, "SLR generated via "+trigger.Label(), rc)

	s.logger.Info("Документ SLR сгенерирован",
		slog.Int64("slr_id", doc.ID),
		slog.String("document_number", doc.DocumentNumber),
		slog.Int64("loan_id", loanID),
		slog.String("trigger", string(trigger)),
	)
	return res, nil
}

func (s *LifecycleService) generateInTx(
	ctx context.Context,
	repos repository.Repositories,
	loanID, actorID int64,
	trigger model.Trigger,
	blob **pendingBlob,
) (result.Result[*model.SLRDocument], error) {
	type R = result.Result[*model.SLRDocument]

	// Блокировка строки займа сериализует генерации для одного займа.
	loan, err := repos.Loans.LockWithClient(ctx, loanID)
	if errors.Is(err, repository.ErrNotFound) {
		return result.Failure[*model.SLRDocument]("Loan not found.", result.CodeLoanNotFound), nil
	}
	if err != nil {
		return R{}, err
	}

	if check := s.rules.CanGenerate(ctx, loan, trigger); check.IsFailure() {
		return result.Propagate[*model.SLRDocument](check), nil
	}

	if _, err := repos.Documents.GetActiveByLoanID(ctx, loanID); err == nil {
		return result.Failure[*model.SLRDocument](
			"Active SLR already exists for this loan. Archive the existing SLR first.",
			result.CodeActiveSLRExists), nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return R{}, err
	}

	now := s.now()
	documentNumber := model.DocumentNumber(loanID, now)
	fileName := model.DocumentFileName(documentNumber, now)
	signature := s.rules.RequiresSignature(ctx, trigger)

	content, failure := s.render(ctx, loan, documentNumber, signature, now)
	if failure != nil {
		return *failure, nil
	}

	entry, err := s.journal.BeginWrite(s.files.ActivePath(fileName))
	if err != nil {
		s.logger.Error("Ошибка записи в журнал", slog.String("error", err.Error()))
		return result.Failure[*model.SLRDocument]("Failed to save SLR document to disk.", result.CodeFileSaveError), nil
	}
	saved, err := s.files.WriteActive(fileName, content)
	if err != nil {
		s.rollbackJournal(entry.ID)
		s.logger.Error("Ошибка записи файла документа",
			slog.Int64("loan_id", loanID),
			slog.String("file_name", fileName),
			slog.String("error", err.Error()),
		)
		return result.Failure[*model.SLRDocument]("Failed to save SLR document to disk.", result.CodeFileSaveError), nil
	}
	*blob = &pendingBlob{path: saved.FullPath, walID: entry.ID}

	doc := &model.SLRDocument{
		LoanID:                  loanID,
		DocumentNumber:          documentNumber,
		GeneratedBy:             actorID,
		GenerationTrigger:       trigger,
		FilePath:                saved.FullPath,
		FileName:                fileName,
		FileSize:                saved.Size,
		ContentHash:             saved.Checksum,
		ClientSignatureRequired: signature,
		Status:                  model.StatusActive,
	}
	if err := repos.Documents.Create(ctx, doc); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return result.Failure[*model.SLRDocument](
				"Active SLR already exists for this loan. Archive the existing SLR first.",
				result.CodeActiveSLRExists), nil
		}
		s.logger.Error("Ошибка создания записи документа",
			slog.Int64("loan_id", loanID),
			slog.String("error", err.Error()),
		)
		return result.Failure[*model.SLRDocument]("Failed to save SLR record to database.", result.CodeDBInsertError), nil
	}

	fresh, err := repos.Documents.GetByID(ctx, doc.ID)
	if err != nil {
		return R{}, fmt.Errorf("ошибка чтения созданного документа %d: %w", doc.ID, err)
	}
	return result.Success(fresh), nil
}

// render строит график и отрисовывает документ.
func (s *LifecycleService) render(
	ctx context.Context,
	loan *model.Loan,
	documentNumber string,
	signature bool,
	now time.Time,
) ([]byte, *result.Result[*model.SLRDocument]) {
	fail := func(msg string, code result.Code) ([]byte, *result.Result[*model.SLRDocument]) {
		r := result.Failure[*model.SLRDocument](msg, code)
		return nil, &r
	}

	entries, err := s.calc.Schedule(loan.Principal, loan.EffectiveTermWeeks())
	if err != nil {
		return fail("Failed to generate PDF: "+err.Error(), result.CodePDFGenerationError)
	}

	content, err := s.renderer.Render(ctx, renderer.Document{
		DocumentNumber:    documentNumber,
		Loan:              loan,
		Schedule:          entries,
		SignatureRequired: signature,
		IssuedAt:          now,
	})
	switch {
	case errors.Is(err, renderer.ErrEmptyOutput):
		return fail("PDF generation returned empty content", result.CodePDFEmpty)
	case err != nil:
		s.logger.Error("Ошибка формирования PDF",
			slog.Int64("loan_id", loan.ID),
			slog.String("error", err.Error()),
		)
		return fail("Failed to generate PDF: "+err.Error(), result.CodePDFGenerationError)
	case len(content) == 0:
		return fail("PDF generation returned empty content", result.CodePDFEmpty)
	}
	return content, nil
}

// discardBlob удаляет файл незафиксированной генерации.
func (s *LifecycleService) discardBlob(blob *pendingBlob) {
	if err := s.files.Delete(blob.path); err != nil {
		compensationsTotal.WithLabelValues("delete", "error").Inc()
		s.logger.Error("Не удалось удалить файл незафиксированного документа, удаление выполнит восстановление при старте",
			slog.String("path", blob.path),
			slog.String("wal_id", blob.walID),
			slog.String("error", err.Error()),
		)
		return
	}
	compensationsTotal.WithLabelValues("delete", "ok").Inc()
	s.rollbackJournal(blob.walID)
	s.logger.Warn("Файл незафиксированного документа удалён", slog.String("path", blob.path))
}

func (s *LifecycleService) rollbackJournal(id string) {
	if err := s.journal.Rollback(id); err != nil {
		s.logger.Warn("Не удалось отметить откат в журнале",
			slog.String("wal_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// --- Скачивание ---

// Download возвращает содержимое действующего документа после проверки SHA-256.
// При несовпадении хеша содержимое не возвращается.
func (s *LifecycleService) Download(
	ctx context.Context,
	documentID, actorID int64,
	reason string,
	rc model.RequestContext,
) result.Result[*model.Payload] {
	return guard(s, opDownload, func() (result.Result[*model.Payload], error) {
		return s.download(ctx, documentID, actorID, reason, rc)
	})
}

func (s *LifecycleService) download(
	ctx context.Context,
	documentID, actorID int64,
	reason string,
	rc model.RequestContext,
) (result.Result[*model.Payload], error) {
	var res result.Result[*model.Payload]

	// FOR SHARE удерживает архивацию до конца чтения файла.
	err := s.store.InTx(ctx, func(repos repository.Repositories) error {
		var txErr error
		res, txErr = s.readVerified(ctx, repos, documentID)
		if txErr != nil {
			return txErr
		}
		if res.IsFailure() {
			return errRollback
		}
		return nil
	})
	if err != nil && !errors.Is(err, errRollback) {
		return res, err
	}
	if res.IsFailure() {
		return res, nil
	}

	statsCtx := context.WithoutCancel(ctx)
	if err := s.store.Repositories().Documents.RecordDownload(statsCtx, documentID, actorID, s.now()); err != nil {
		downloadStatsFailuresTotal.Inc()
		s.logger.Warn("Не удалось обновить статистику скачиваний",
			slog.Int64("slr_id", documentID),
			slog.String("error", err.Error()),
		)
	}
	s.audit.Record(ctx, documentID, model.AccessDownload, actorID, reason, rc)
	return res, nil
}

func (s *LifecycleService) readVerified(
	ctx context.Context,
	repos repository.Repositories,
	documentID int64,
) (result.Result[*model.Payload], error) {
	doc, err := repos.Documents.GetByIDForShare(ctx, documentID)
	if errors.Is(err, repository.ErrNotFound) {
		return result.Failure[*model.Payload]("SLR document not found.", result.CodeSLRNotFound), nil
	}
	if err != nil {
		return result.Result[*model.Payload]{}, err
	}
	if !doc.IsActive() {
		return result.Failuref[*model.Payload](result.CodeSLRNotActive,
			"SLR document is not active (status: %s).", doc.Status), nil
	}

	content, err := s.files.Read(doc.FilePath)
	if errors.Is(err, filestore.ErrFileNotFound) {
		s.logger.Error("Файл документа отсутствует на диске",
			slog.Int64("slr_id", documentID),
			slog.String("path", doc.FilePath),
		)
		return result.Failure[*model.Payload]("SLR file not found on disk.", result.CodeFileNotFound), nil
	}
	if err != nil {
		return result.Result[*model.Payload]{}, err
	}

	hash := filestore.Checksum(content)
	if hash != doc.ContentHash {
		s.logger.Error("Нарушена целостность файла документа",
			slog.Int64("slr_id", documentID),
			slog.String("expected", doc.ContentHash),
			slog.String("actual", hash),
		)
		return result.Failure[*model.Payload](
			"SLR file integrity check failed. Document may be corrupted.",
			result.CodeIntegrityCheckFailed), nil
	}

	return result.Success(&model.Payload{
		Content:     content,
		FileName:    doc.FileName,
		FileSize:    int64(len(content)),
		ContentType: model.ContentType,
		ContentHash: hash,
	}), nil
}

// --- Архивация ---

// Archive переводит действующий документ в архив и переносит файл.
func (s *LifecycleService) Archive(
	ctx context.Context,
	documentID, actorID int64,
	reason string,
	rc model.RequestContext,
) result.Result[ArchiveResult] {
	return guard(s, opArchive, func() (result.Result[ArchiveResult], error) {
		return s.archive(ctx, documentID, actorID, reason, rc)
	})
}

// movedBlob — файл, перенесённый в архив в незафиксированной транзакции.
type movedBlob struct {
	from, to string
	walID    string
}

func (s *LifecycleService) archive(
	ctx context.Context,
	documentID, actorID int64,
	reason string,
	rc model.RequestContext,
) (result.Result[ArchiveResult], error) {
	var (
		res       result.Result[ArchiveResult]
		moved     *movedBlob
		fnDone    bool
		committed bool
	)

	defer func() {
		if moved != nil && !committed {
			s.restoreBlob(moved)
		}
	}()

	err := s.store.InTx(ctx, func(repos repository.Repositories) error {
		var txErr error
		res, txErr = s.archiveInTx(ctx, repos, documentID, reason, &moved)
		if txErr != nil {
			return txErr
		}
		if res.IsFailure() {
			return errRollback
		}
		fnDone = true
		return nil
	})

	switch {
	case errors.Is(err, errRollback):
		return res, nil
	case err != nil && fnDone:
		s.logger.Error("Ошибка фиксации транзакции архивации",
			slog.Int64("slr_id", documentID),
			slog.String("error", err.Error()),
		)
		return result.Failure[ArchiveResult]("Failed to update SLR record in database.", result.CodeDBUpdateError), nil
	case err != nil:
		return res, err
	}

	committed = true
	if err := s.journal.Commit(moved.walID); err != nil {
		s.logger.Warn("Не удалось закрыть запись журнала",
			slog.String("wal_id", moved.walID),
			slog.String("error", err.Error()),
		)
	}

	s.audit.Record(ctx, documentID, model.AccessArchive, actorID, reason, rc)
	s.logger.Info("Документ SLR архивирован",
		slog.Int64("slr_id", documentID),
		slog.Int64("actor_id", actorID),
		slog.String("archive_path", moved.to),
	)
	return res, nil
}

func (s *LifecycleService) archiveInTx(
	ctx context.Context,
	repos repository.Repositories,
	documentID int64,
	reason string,
	moved **movedBlob,
) (result.Result[ArchiveResult], error) {
	doc, err := repos.Documents.GetByIDForUpdate(ctx, documentID)
	if errors.Is(err, repository.ErrNotFound) {
		return result.Failure[ArchiveResult]("SLR document not found.", result.CodeSLRNotFound), nil
	}
	if err != nil {
		return result.Result[ArchiveResult]{}, err
	}
	if !doc.IsActive() {
		return result.Failure[ArchiveResult]("Only active SLR documents can be archived.", result.CodeInvalidStatus), nil
	}

	target := s.archiveTarget(doc)
	entry, err := s.journal.BeginMove(doc.ID, doc.FilePath, target)
	if err != nil {
		s.logger.Error("Ошибка записи в журнал", slog.String("error", err.Error()))
		return result.Failure[ArchiveResult]("Failed to move SLR file to archive directory.", result.CodeFileMoveError), nil
	}
	if err := s.files.Move(doc.FilePath, target); err != nil {
		s.rollbackJournal(entry.ID)
		s.logger.Error("Ошибка переноса файла в архив",
			slog.Int64("slr_id", documentID),
			slog.String("from", doc.FilePath),
			slog.String("to", target),
			slog.String("error", err.Error()),
		)
		return result.Failure[ArchiveResult]("Failed to move SLR file to archive directory.", result.CodeFileMoveError), nil
	}
	*moved = &movedBlob{from: doc.FilePath, to: target, walID: entry.ID}

	if err := repos.Documents.Archive(ctx, doc.ID, target, reason); err != nil {
		s.logger.Error("Ошибка обновления записи документа",
			slog.Int64("slr_id", documentID),
			slog.String("error", err.Error()),
		)
		return result.Failure[ArchiveResult]("Failed to update SLR record in database.", result.CodeDBUpdateError), nil
	}
	return result.Success(ArchiveResult{ID: doc.ID, Status: model.StatusArchived}), nil
}

// archiveTarget возвращает свободный путь в архиве.
// При совпадении имени к нему добавляется идентификатор документа.
func (s *LifecycleService) archiveTarget(doc *model.SLRDocument) string {
	name := doc.FileName
	if name == "" {
		name = filepath.Base(doc.FilePath)
	}
	target := s.files.ArchivePath(name)
	if !s.files.Exists(target) {
		return target
	}
	ext := filepath.Ext(name)
	return s.files.ArchivePath(fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), doc.ID, ext))
}

// restoreBlob возвращает файл из архива на исходное место.
func (s *LifecycleService) restoreBlob(m *movedBlob) {
	if err := s.files.Move(m.to, m.from); err != nil {
		compensationsTotal.WithLabelValues("move_back", "error").Inc()
		s.logger.Error("Не удалось вернуть файл из архива, возврат выполнит восстановление при старте",
			slog.String("from", m.to),
			slog.String("to", m.from),
			slog.String("wal_id", m.walID),
			slog.String("error", err.Error()),
		)
		return
	}
	compensationsTotal.WithLabelValues("move_back", "ok").Inc()
	s.rollbackJournal(m.walID)
	s.logger.Warn("Файл документа возвращён из архива", slog.String("path", m.from))
}

// --- Чтение ---

// Get возвращает документ по идентификатору.
func (s *LifecycleService) Get(ctx context.Context, documentID int64) result.Result[*model.SLRDocument] {
	return guard(s, opGet, func() (result.Result[*model.SLRDocument], error) {
		return s.findDocument(ctx, documentID)
	})
}

func (s *LifecycleService) findDocument(ctx context.Context, documentID int64) (result.Result[*model.SLRDocument], error) {
	doc, err := s.store.Repositories().Documents.GetByID(ctx, documentID)
	if errors.Is(err, repository.ErrNotFound) {
		return result.Failure[*model.SLRDocument]("SLR document not found.", result.CodeSLRNotFound), nil
	}
	if err != nil {
		return result.Result[*model.SLRDocument]{}, err
	}
	return result.Success(doc), nil
}

// View возвращает документ и записывает просмотр в журнал доступа.
// Просмотр доступен для документа в любом статусе.
func (s *LifecycleService) View(
	ctx context.Context,
	documentID, actorID int64,
	reason string,
	rc model.RequestContext,
) result.Result[*model.SLRDocument] {
	return guard(s, opView, func() (result.Result[*model.SLRDocument], error) {
		res, err := s.findDocument(ctx, documentID)
		if err != nil || res.IsFailure() {
			return res, err
		}
		s.audit.Record(ctx, documentID, model.AccessView, actorID, reason, rc)
		return res, nil
	})
}

// GetActiveByLoan возвращает действующий документ займа.
func (s *LifecycleService) GetActiveByLoan(ctx context.Context, loanID int64) result.Result[*model.SLRDocument] {
	return guard(s, opGetActiveByLoan, func() (result.Result[*model.SLRDocument], error) {
		doc, err := s.store.Repositories().Documents.GetActiveByLoanID(ctx, loanID)
		if errors.Is(err, repository.ErrNotFound) {
			return result.Failure[*model.SLRDocument]("SLR document not found.", result.CodeSLRNotFound), nil
		}
		if err != nil {
			return result.Result[*model.SLRDocument]{}, err
		}
		return result.Success(doc), nil
	})
}

// List возвращает страницу документов и их общее количество.
func (s *LifecycleService) List(
	ctx context.Context,
	filters repository.SLRListFilters,
	limit, offset int,
) result.Result[DocumentPage] {
	return guard(s, opList, func() (result.Result[DocumentPage], error) {
		if limit <= 0 {
			limit = DefaultListLimit
		}
		if limit > MaxListLimit {
			limit = MaxListLimit
		}
		if offset < 0 {
			offset = 0
		}

		docs := s.store.Repositories().Documents
		items, err := docs.List(ctx, filters, limit, offset)
		if err != nil {
			return result.Result[DocumentPage]{}, err
		}
		total, err := docs.Count(ctx, filters)
		if err != nil {
			return result.Result[DocumentPage]{}, err
		}
		if items == nil {
			items = []*model.SLRDocument{}
		}
		return result.Success(DocumentPage{Items: items, Total: total}), nil
	})
}

// AccessHistory возвращает журнал доступа к документу, новые записи первыми.
func (s *LifecycleService) AccessHistory(
	ctx context.Context,
	documentID int64,
	limit int,
) result.Result[[]*model.AccessLogEntry] {
	return guard(s, opAccessHistory, func() (result.Result[[]*model.AccessLogEntry], error) {
		docs := s.store.Repositories().Documents
		if _, err := docs.GetByID(ctx, documentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return result.Failure[[]*model.AccessLogEntry]("SLR document not found.", result.CodeSLRNotFound), nil
			}
			return result.Result[[]*model.AccessLogEntry]{}, err
		}
		if limit <= 0 {
			limit = repository.DefaultAccessHistoryLimit
		}
		entries, err := docs.AccessHistory(ctx, documentID, limit)
		if err != nil {
			return result.Result[[]*model.AccessLogEntry]{}, err
		}
		if entries == nil {
			entries = []*model.AccessLogEntry{}
		}
		return result.Success(entries), nil
	})
}

// Events возвращает события документа из общесистемного журнала, новые первыми.
func (s *LifecycleService) Events(ctx context.Context, documentID int64, limit int) result.Result[[]*model.AuditEvent] {
	return guard(s, opEvents, func() (result.Result[[]*model.AuditEvent], error) {
		repos := s.store.Repositories()
		if _, err := repos.Documents.GetByID(ctx, documentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return result.Failure[[]*model.AuditEvent]("SLR document not found.", result.CodeSLRNotFound), nil
			}
			return result.Result[[]*model.AuditEvent]{}, err
		}
		if limit <= 0 {
			limit = repository.DefaultAccessHistoryLimit
		}
		events, err := repos.Events.ListByEntity(ctx, repository.EntityTypeSLR, documentID, limit)
		if err != nil {
			return result.Result[[]*model.AuditEvent]{}, err
		}
		if events == nil {
			events = []*model.AuditEvent{}
		}
		return result.Success(events), nil
	})
}

// CheckEligibility выполняет проверки генерации без создания документа.
func (s *LifecycleService) CheckEligibility(
	ctx context.Context,
	loanID int64,
	trigger model.Trigger,
) result.Result[Eligibility] {
	return guard(s, opEligibility, func() (result.Result[Eligibility], error) {
		if !trigger.IsValid() {
			return result.Failure[Eligibility]("Invalid generation trigger: "+string(trigger), result.CodeInvalidTrigger), nil
		}

		repos := s.store.Repositories()
		loan, err := repos.Loans.GetWithClient(ctx, loanID)
		if errors.Is(err, repository.ErrNotFound) {
			return result.Failure[Eligibility]("Loan not found.", result.CodeLoanNotFound), nil
		}
		if err != nil {
			return result.Result[Eligibility]{}, err
		}

		if check := s.rules.CanGenerate(ctx, loan, trigger); check.IsFailure() {
			return result.Propagate[Eligibility](check), nil
		}

		rule, err := s.rules.Resolve(ctx, trigger)
		if err != nil {
			return result.Result[Eligibility]{}, err
		}
		e := Eligibility{
			LoanID:  loanID,
			Trigger: trigger,
			Rule:    rule,
			Flags:   s.rules.Flags(ctx, trigger),
		}

		active, err := repos.Documents.GetActiveByLoanID(ctx, loanID)
		switch {
		case err == nil:
			e.ActiveDocumentID = &active.ID
		case !errors.Is(err, repository.ErrNotFound):
			return result.Result[Eligibility]{}, err
		}
		return result.Success(e), nil
	})
}

// ListRules возвращает все правила генерации.
func (s *LifecycleService) ListRules(ctx context.Context) result.Result[[]*model.GenerationRule] {
	return guard(s, opListRules, func() (result.Result[[]*model.GenerationRule], error) {
		rules, err := s.store.Repositories().Rules.List(ctx)
		if err != nil {
			return result.Result[[]*model.GenerationRule]{}, err
		}
		if rules == nil {
			rules = []*model.GenerationRule{}
		}
		return result.Success(rules), nil
	})
}
