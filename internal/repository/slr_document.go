package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/AECHE7/Fanders-sub003/internal/domain/model"
)

// DefaultAccessHistoryLimit — размер истории доступа по умолчанию.
const DefaultAccessHistoryLimit = 50

// SLRDocumentRepository — интерфейс таблиц slr_documents и slr_access_log.
// Репозиторий сам не инициирует изменения статуса.
type SLRDocumentRepository interface {
	// Create создаёт запись документа. ErrConflict — у займа уже есть активный документ.
	Create(ctx context.Context, d *model.SLRDocument) error
	// GetByID возвращает документ по идентификатору.
	GetByID(ctx context.Context, id int64) (*model.SLRDocument, error)
	// GetByIDForUpdate возвращает документ с блокировкой строки FOR UPDATE.
	GetByIDForUpdate(ctx context.Context, id int64) (*model.SLRDocument, error)
	// GetByIDForShare возвращает документ с блокировкой строки FOR SHARE.
	GetByIDForShare(ctx context.Context, id int64) (*model.SLRDocument, error)
	// GetActiveByLoanID возвращает действующий документ займа.
	GetActiveByLoanID(ctx context.Context, loanID int64) (*model.SLRDocument, error)
	// GetByFilePath возвращает документ, ссылающийся на файл.
	GetByFilePath(ctx context.Context, path string) (*model.SLRDocument, error)
	// List возвращает документы с фильтрацией, новые первыми.
	List(ctx context.Context, filters SLRListFilters, limit, offset int) ([]*model.SLRDocument, error)
	// Count возвращает количество документов с фильтрацией.
	Count(ctx context.Context, filters SLRListFilters) (int, error)
	// Archive переводит действующий документ в архив с новым путём файла.
	Archive(ctx context.Context, id int64, archivePath, reason string) error
	// RecordDownload увеличивает счётчик скачиваний.
	RecordDownload(ctx context.Context, id, actorID int64, at time.Time) error
	// LogAccess добавляет запись в журнал доступа.
	LogAccess(ctx context.Context, e *model.AccessLogEntry) error
	// AccessHistory возвращает журнал доступа к документу, новые первыми.
	AccessHistory(ctx context.Context, documentID int64, limit int) ([]*model.AccessLogEntry, error)
}

// SLRListFilters — фильтры списка документов.
type SLRListFilters struct {
	LoanID      *int64
	Status      *string
	ClientID    *int64
	GeneratedBy *int64
	Trigger     *string
	DateFrom    *time.Time
	DateTo      *time.Time
}

type slrDocumentRepo struct {
	db DBTX
}

// NewSLRDocumentRepository создаёт репозиторий документов SLR.
func NewSLRDocumentRepository(db DBTX) SLRDocumentRepository {
	return &slrDocumentRepo{db: db}
}

const documentColumns = `d.id, d.loan_id, d.document_number, d.generated_by, d.generation_trigger,
	d.file_path, d.file_name, d.file_size, d.content_hash, d.client_signature_required,
	d.status, d.download_count, d.last_downloaded_at, d.last_downloaded_by,
	d.replacement_reason, d.generated_at, d.updated_at`

func scanDocument(row pgx.Row) (*model.SLRDocument, error) {
	d := &model.SLRDocument{}
	var trigger, status string
	err := row.Scan(
		&d.ID, &d.LoanID, &d.DocumentNumber, &d.GeneratedBy, &trigger,
		&d.FilePath, &d.FileName, &d.FileSize, &d.ContentHash, &d.ClientSignatureRequired,
		&status, &d.DownloadCount, &d.LastDownloadedAt, &d.LastDownloadedBy,
		&d.ReplacementReason, &d.GeneratedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.GenerationTrigger = model.Trigger(trigger)
	d.Status = model.DocumentStatus(status)
	return d, nil
}

func (r *slrDocumentRepo) Create(ctx context.Context, d *model.SLRDocument) error {
	query := `
		INSERT INTO slr_documents (loan_id, document_number, generated_by, generation_trigger,
			file_path, file_name, file_size, content_hash, client_signature_required, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, generated_at, updated_at`

	if d.Status == "" {
		d.Status = model.StatusActive
	}
	err := r.db.QueryRow(ctx, query,
		d.LoanID, d.DocumentNumber, d.GeneratedBy, string(d.GenerationTrigger),
		d.FilePath, d.FileName, d.FileSize, d.ContentHash, d.ClientSignatureRequired,
		string(d.Status),
	).Scan(&d.ID, &d.GeneratedAt, &d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: у займа %d уже есть действующий документ", ErrConflict, d.LoanID)
		}
		return fmt.Errorf("ошибка создания документа SLR: %w", err)
	}
	return nil
}

func (r *slrDocumentRepo) getOne(ctx context.Context, where, lock string, arg any) (*model.SLRDocument, error) {
	query := fmt.Sprintf(`SELECT %s FROM slr_documents d WHERE %s ORDER BY d.id DESC LIMIT 1 %s`,
		documentColumns, where, lock)

	d, err := scanDocument(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения документа SLR: %w", err)
	}
	return d, nil
}

func (r *slrDocumentRepo) GetByID(ctx context.Context, id int64) (*model.SLRDocument, error) {
	return r.getOne(ctx, "d.id = $1", "", id)
}

func (r *slrDocumentRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.SLRDocument, error) {
	return r.getOne(ctx, "d.id = $1", "FOR UPDATE", id)
}

func (r *slrDocumentRepo) GetByIDForShare(ctx context.Context, id int64) (*model.SLRDocument, error) {
	return r.getOne(ctx, "d.id = $1", "FOR SHARE", id)
}

func (r *slrDocumentRepo) GetActiveByLoanID(ctx context.Context, loanID int64) (*model.SLRDocument, error) {
	return r.getOne(ctx, "d.loan_id = $1 AND d.status = 'active'", "", loanID)
}

func (r *slrDocumentRepo) GetByFilePath(ctx context.Context, path string) (*model.SLRDocument, error) {
	return r.getOne(ctx, "d.file_path = $1", "", path)
}

// buildDocumentWhere строит WHERE-условие и аргументы для фильтрации документов.
func buildDocumentWhere(filters SLRListFilters, startArg int) (string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	add := func(cond string, val any) {
		conditions = append(conditions, fmt.Sprintf(cond, argNum))
		args = append(args, val)
		argNum++
	}

	if filters.LoanID != nil {
		add("d.loan_id = $%d", *filters.LoanID)
	}
	if filters.Status != nil {
		add("d.status = $%d", *filters.Status)
	}
	if filters.ClientID != nil {
		add("l.client_id = $%d", *filters.ClientID)
	}
	if filters.GeneratedBy != nil {
		add("d.generated_by = $%d", *filters.GeneratedBy)
	}
	if filters.Trigger != nil {
		add("d.generation_trigger = $%d", *filters.Trigger)
	}
	if filters.DateFrom != nil {
		add("d.generated_at >= $%d", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		add("d.generated_at <= $%d", *filters.DateTo)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

func (r *slrDocumentRepo) List(ctx context.Context, filters SLRListFilters, limit, offset int) ([]*model.SLRDocument, error) {
	where, args := buildDocumentWhere(filters, 1)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s
		FROM slr_documents d
		JOIN loans l ON l.id = d.loan_id
		%s
		ORDER BY d.generated_at DESC, d.id DESC
		LIMIT $%d OFFSET $%d`, documentColumns, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка документов SLR: %w", err)
	}
	defer rows.Close()

	var result []*model.SLRDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования документа SLR: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *slrDocumentRepo) Count(ctx context.Context, filters SLRListFilters) (int, error) {
	where, args := buildDocumentWhere(filters, 1)
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM slr_documents d
		JOIN loans l ON l.id = d.loan_id
		%s`, where)

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта документов SLR: %w", err)
	}
	return count, nil
}

func (r *slrDocumentRepo) Archive(ctx context.Context, id int64, archivePath, reason string) error {
	query := `
		UPDATE slr_documents
		SET status = 'archived', file_path = $2, replacement_reason = $3, updated_at = now()
		WHERE id = $1 AND status = 'active'`

	tag, err := r.db.Exec(ctx, query, id, archivePath, reason)
	if err != nil {
		return fmt.Errorf("ошибка архивации документа SLR: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *slrDocumentRepo) RecordDownload(ctx context.Context, id, actorID int64, at time.Time) error {
	query := `
		UPDATE slr_documents
		SET download_count = download_count + 1,
			last_downloaded_at = $2,
			last_downloaded_by = $3,
			updated_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, at, actorID)
	if err != nil {
		return fmt.Errorf("ошибка обновления статистики скачиваний: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *slrDocumentRepo) LogAccess(ctx context.Context, e *model.AccessLogEntry) error {
	query := `
		INSERT INTO slr_access_log (slr_document_id, access_type, accessed_by, access_reason,
			ip_address, user_agent, request_id, success, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, accessed_at`

	err := r.db.QueryRow(ctx, query,
		e.DocumentID, string(e.AccessType), e.ActorID, e.Reason,
		e.RemoteAddr, e.UserAgent, e.RequestID, e.Success, e.ErrorMessage,
	).Scan(&e.ID, &e.AccessedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи журнала доступа: %w", err)
	}
	return nil
}

func (r *slrDocumentRepo) AccessHistory(ctx context.Context, documentID int64, limit int) ([]*model.AccessLogEntry, error) {
	if limit <= 0 {
		limit = DefaultAccessHistoryLimit
	}

	query := `
		SELECT id, slr_document_id, access_type, accessed_by, access_reason,
			ip_address, user_agent, request_id, success, error_message, accessed_at
		FROM slr_access_log
		WHERE slr_document_id = $1
		ORDER BY accessed_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала доступа: %w", err)
	}
	defer rows.Close()

	var result []*model.AccessLogEntry
	for rows.Next() {
		e := &model.AccessLogEntry{}
		var accessType string
		if err := rows.Scan(
			&e.ID, &e.DocumentID, &accessType, &e.ActorID, &e.Reason,
			&e.RemoteAddr, &e.UserAgent, &e.RequestID, &e.Success, &e.ErrorMessage, &e.AccessedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования журнала доступа: %w", err)
		}
		e.AccessType = model.AccessType(accessType)
		result = append(result, e)
	}
	return result, rows.Err()
}
