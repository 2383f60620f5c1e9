// Пакет wal — файловый журнал операций с файлами документов.
// Каждая операция — отдельный файл {op_id}.wal.json в SLR_WAL_DIR.
// Журнал позволяет после аварийной остановки довести до конца
// компенсацию записи или переноса файла, не согласованного с БД.
package wal

import "time"

// Operation — тип журналируемой операции с файлом.
type Operation string

const (
	// OpBlobWrite — запись нового файла документа (генерация)
	OpBlobWrite Operation = "blob_write"
	// OpBlobMove — перенос файла документа (архивация)
	OpBlobMove Operation = "blob_move"
)

// Status — состояние операции в журнале.
type Status string

const (
	// StatusPending — операция начата, результат в БД не зафиксирован
	StatusPending Status = "pending"
	// StatusCommitted — файл и запись БД согласованы
	StatusCommitted Status = "committed"
	// StatusRolledBack — файловая операция компенсирована
	StatusRolledBack Status = "rolled_back"
)

// Entry — запись журнала. Хранится как JSON-файл {op_id}.wal.json.
type Entry struct {
	// ID — идентификатор операции (UUID v4)
	ID string `json:"id"`
	// Operation — тип операции
	Operation Operation `json:"operation"`
	// Status — текущее состояние
	Status Status `json:"status"`
	// DocumentID — документ (0, если запись БД ещё не создана)
	DocumentID int64 `json:"document_id,omitempty"`
	// SourcePath — исходный путь файла (для переноса)
	SourcePath string `json:"source_path,omitempty"`
	// TargetPath — путь, по которому файл оказывается после операции
	TargetPath string `json:"target_path"`
	// StartedAt — время начала (UTC)
	StartedAt time.Time `json:"started_at"`
	// CompletedAt — время завершения (UTC), nil для pending
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func entryFileName(id string) string {
	return id + ".wal.json"
}
