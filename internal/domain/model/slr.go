// Пакет model — доменные типы SLR-сервиса (Statement of Loan Receipt).
package model

import (
	"fmt"
	"time"
)

// DocumentStatus — статус документа SLR.
type DocumentStatus string

const (
	// StatusActive — действующий документ (не более одного на займ)
	StatusActive DocumentStatus = "active"
	// StatusArchived — документ перенесён в архив
	StatusArchived DocumentStatus = "archived"
	// StatusReplaced — заменён новым документом (используется смежными подсистемами)
	StatusReplaced DocumentStatus = "replaced"
	// StatusVoid — аннулирован (используется смежными подсистемами)
	StatusVoid DocumentStatus = "void"
)

// Файловые константы документа.
const (
	// ContentType — MIME-тип отрендеренного документа
	ContentType = "application/pdf"
	// FileExtension — расширение файла документа
	FileExtension = ".pdf"
	// DefaultTermWeeks — срок займа по умолчанию, если в займе не указан
	DefaultTermWeeks = 17
)

// SLRDocument — запись документа SLR.
// Хранится в таблице slr_documents.
type SLRDocument struct {
	// ID — идентификатор записи (BIGSERIAL)
	ID int64
	// LoanID — займ, к которому относится документ
	LoanID int64
	// DocumentNumber — номер документа SLR-YYYYMM-NNNNNN
	DocumentNumber string
	// GeneratedBy — пользователь, сгенерировавший документ
	GeneratedBy int64
	// GenerationTrigger — событие, по которому сгенерирован документ
	GenerationTrigger Trigger
	// FilePath — абсолютный путь к файлу документа
	FilePath string
	// FileName — имя файла документа
	FileName string
	// FileSize — размер файла в байтах
	FileSize int64
	// ContentHash — SHA-256 содержимого, записанного на диск
	ContentHash string
	// ClientSignatureRequired — фиксируется из правила в момент генерации
	ClientSignatureRequired bool
	// Status — текущий статус документа
	Status DocumentStatus
	// DownloadCount — число успешных скачиваний
	DownloadCount int
	// LastDownloadedAt — время последнего скачивания
	LastDownloadedAt *time.Time
	// LastDownloadedBy — пользователь, скачавший документ последним
	LastDownloadedBy *int64
	// ReplacementReason — причина архивации
	ReplacementReason *string
	// GeneratedAt — время генерации
	GeneratedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// IsActive возвращает true для действующего документа.
func (d *SLRDocument) IsActive() bool {
	return d.Status == StatusActive
}

// DocumentNumber формирует номер документа: SLR-{YYYY}{MM}-{loanID, 6 цифр}.
// Номер не уникален во времени: повторная генерация в том же месяце даёт тот же номер.
func DocumentNumber(loanID int64, now time.Time) string {
	return fmt.Sprintf("SLR-%s-%06d", now.Format("200601"), loanID)
}

// DocumentFileName формирует имя файла: SLR_{номер}_{YYYYMMDD}.pdf.
func DocumentFileName(documentNumber string, now time.Time) string {
	return fmt.Sprintf("SLR_%s_%s%s", documentNumber, now.Format("20060102"), FileExtension)
}

// Payload — содержимое документа, прошедшее проверку целостности.
type Payload struct {
	Content     []byte
	FileName    string
	FileSize    int64
	ContentType string
	ContentHash string
}

// RequestContext — данные вызывающей стороны для журнала доступа.
// Передаётся явно в каждую публичную операцию.
type RequestContext struct {
	// RemoteAddr — сетевой адрес клиента
	RemoteAddr string
	// UserAgent — строка клиента
	UserAgent string
	// RequestID — идентификатор запроса (chi middleware.RequestID)
	RequestID string
}
