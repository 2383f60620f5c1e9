// reconcile.go — фоновая сверка файлов документов с записями БД.
//
// Сверка проверяет для каждого действующего документа:
//   - missing_file: файла нет на диске
//   - size_mismatch: размер файла не совпадает с file_size
//   - checksum_mismatch: SHA-256 файла не совпадает с content_hash
//
// и ищет в директории active файлы без действующей записи (orphaned_file).
// Сверка только сообщает о проблемах (лог и метрики) и ничего не исправляет.
// Попутно удаляются завершённые записи WAL.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AECHE7/Fanders-sub003/internal/domain/model"
	"github.com/AECHE7/Fanders-sub003/internal/repository"
	"github.com/AECHE7/Fanders-sub003/internal/storage/filestore"
	"github.com/AECHE7/Fanders-sub003/internal/storage/wal"
)

// ErrReconcileInProgress — сверка уже выполняется.
var ErrReconcileInProgress = errors.New("сверка уже выполняется")

// reconcilePageSize — размер страницы при обходе документов.
const reconcilePageSize = 100

// IssueType — тип проблемы, найденной сверкой.
type IssueType string

const (
	IssueMissingFile      IssueType = "missing_file"
	IssueSizeMismatch     IssueType = "size_mismatch"
	IssueChecksumMismatch IssueType = "checksum_mismatch"
	IssueOrphanedFile     IssueType = "orphaned_file"
)

// ReconcileIssue — проблема, найденная сверкой.
type ReconcileIssue struct {
	Type       IssueType `json:"type"`
	DocumentID int64     `json:"slr_id,omitempty"`
	Path       string    `json:"path"`
	Message    string    `json:"message"`
}

// ReconcileReport — результат одного запуска сверки.
type ReconcileReport struct {
	StartedAt        time.Time        `json:"started_at"`
	CompletedAt      time.Time        `json:"completed_at"`
	DocumentsChecked int              `json:"documents_checked"`
	FilesScanned     int              `json:"files_scanned"`
	WALCleaned       int              `json:"wal_cleaned"`
	Issues           []ReconcileIssue `json:"issues"`
}

// ReconcileService — сервис сверки хранилища.
type ReconcileService struct {
	docs     repository.SLRDocumentRepository
	files    *filestore.FileStore
	journal  *wal.WAL
	interval time.Duration
	logger   *slog.Logger

	mu         sync.Mutex // защита от параллельного запуска
	inProgress bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewReconcileService создаёт сервис сверки. interval = 0 отключает фоновый запуск.
func NewReconcileService(
	docs repository.SLRDocumentRepository,
	files *filestore.FileStore,
	journal *wal.WAL,
	interval time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		docs:     docs,
		files:    files,
		journal:  journal,
		interval: interval,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину сверки с периодическим тикером.
func (rs *ReconcileService) Start(ctx context.Context) {
	if rs.interval <= 0 {
		rs.logger.Info("Фоновая сверка отключена")
		return
	}

	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel
	rs.done = make(chan struct{})

	go rs.run(rsCtx)

	rs.logger.Info("Сверка запущена", slog.String("interval", rs.interval.String()))
}

// Stop останавливает фоновую сверку и ждёт завершения горутины.
func (rs *ReconcileService) Stop() {
	if rs.cancel == nil {
		return
	}
	rs.cancel()
	<-rs.done
	rs.logger.Info("Сверка остановлена")
}

func (rs *ReconcileService) run(ctx context.Context) {
	defer close(rs.done)

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := rs.RunOnce(ctx); err != nil && !errors.Is(err, ErrReconcileInProgress) {
				rs.logger.Error("Ошибка сверки", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce выполняет один цикл сверки.
// Если сверка уже выполняется, возвращает ErrReconcileInProgress.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*ReconcileReport, error) {
	rs.mu.Lock()
	if rs.inProgress {
		rs.mu.Unlock()
		rs.logger.Warn("Сверка уже выполняется, пропуск")
		return nil, ErrReconcileInProgress
	}
	rs.inProgress = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProgress = false
		rs.mu.Unlock()
	}()

	report := &ReconcileReport{StartedAt: time.Now().UTC(), Issues: []ReconcileIssue{}}
	rs.logger.Info("Сверка начата")

	known, err := rs.checkDocuments(ctx, report)
	if err != nil {
		return nil, err
	}
	if err := rs.findOrphans(report, known); err != nil {
		return nil, err
	}

	cleaned, err := rs.journal.CleanCompleted()
	if err != nil {
		rs.logger.Warn("Ошибка очистки WAL", slog.String("error", err.Error()))
	}
	report.WALCleaned = cleaned

	report.CompletedAt = time.Now().UTC()
	duration := report.CompletedAt.Sub(report.StartedAt)

	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(duration.Seconds())
	for _, issue := range report.Issues {
		reconcileIssuesTotal.WithLabelValues(string(issue.Type)).Inc()
	}

	rs.logger.Info("Сверка завершена",
		slog.Int("documents_checked", report.DocumentsChecked),
		slog.Int("files_scanned", report.FilesScanned),
		slog.Int("issues", len(report.Issues)),
		slog.Duration("duration", duration),
	)
	return report, nil
}

// checkDocuments обходит действующие документы постранично и возвращает
// множество путей их файлов.
func (rs *ReconcileService) checkDocuments(ctx context.Context, report *ReconcileReport) (map[string]bool, error) {
	status := string(model.StatusActive)
	filters := repository.SLRListFilters{Status: &status}
	known := make(map[string]bool)

	for offset := 0; ; offset += reconcilePageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := rs.docs.List(ctx, filters, reconcilePageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, doc := range page {
			known[doc.FilePath] = true
			report.DocumentsChecked++
			if issue, ok := rs.checkDocument(doc); !ok {
				rs.logger.Warn("Проблема целостности документа",
					slog.String("type", string(issue.Type)),
					slog.Int64("slr_id", doc.ID),
					slog.String("path", doc.FilePath),
				)
				report.Issues = append(report.Issues, issue)
			}
		}
		if len(page) < reconcilePageSize {
			return known, nil
		}
	}
}

func (rs *ReconcileService) checkDocument(doc *model.SLRDocument) (ReconcileIssue, bool) {
	checksum, size, err := rs.files.Digest(doc.FilePath)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, filestore.ErrFileNotFound) {
			msg = "file not found on disk"
		}
		return ReconcileIssue{Type: IssueMissingFile, DocumentID: doc.ID, Path: doc.FilePath, Message: msg}, false
	}
	if size != doc.FileSize {
		return ReconcileIssue{
			Type: IssueSizeMismatch, DocumentID: doc.ID, Path: doc.FilePath,
			Message: "file size differs from record",
		}, false
	}
	if checksum != doc.ContentHash {
		return ReconcileIssue{
			Type: IssueChecksumMismatch, DocumentID: doc.ID, Path: doc.FilePath,
			Message: "SHA-256 differs from content_hash",
		}, false
	}
	return ReconcileIssue{}, true
}

// findOrphans ищет файлы в active без действующей записи.
// Файлы незавершённых операций WAL не считаются осиротевшими.
func (rs *ReconcileService) findOrphans(report *ReconcileReport, known map[string]bool) error {
	paths, err := rs.files.ListActive()
	if err != nil {
		return err
	}

	inFlight := make(map[string]bool)
	pending, err := rs.journal.Pending()
	if err != nil {
		return err
	}
	for _, e := range pending {
		inFlight[e.TargetPath] = true
		inFlight[e.SourcePath] = true
	}

	report.FilesScanned = len(paths)
	for _, p := range paths {
		if known[p] || inFlight[p] {
			continue
		}
		rs.logger.Warn("Файл без действующей записи", slog.String("path", p))
		report.Issues = append(report.Issues, ReconcileIssue{
			Type:    IssueOrphanedFile,
			Path:    p,
			Message: "file has no active record",
		})
	}
	return nil
}
