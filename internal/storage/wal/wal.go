package wal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotPending — операция уже завершена.
var ErrNotPending = errors.New("операция журнала не в статусе pending")

// WAL — файловый журнал операций с файлами документов.
// Порядок работы: Begin (pending) → файловая операция → запись в БД →
// Commit или, после компенсации, Rollback.
type WAL struct {
	dir    string
	mu     sync.Mutex
	now    func() time.Time
	logger *slog.Logger
}

// New создаёт журнал. Создаёт директорию и проверяет её доступность на запись.
func New(dir string, logger *slog.Logger) (*WAL, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию WAL %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".wal_write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o640); err != nil {
		return nil, fmt.Errorf("директория WAL %s недоступна для записи: %w", dir, err)
	}
	os.Remove(testFile)

	return &WAL{
		dir:    dir,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "wal")),
	}, nil
}

// BeginWrite журналирует запись нового файла по пути target.
func (w *WAL) BeginWrite(target string) (*Entry, error) {
	return w.begin(&Entry{Operation: OpBlobWrite, TargetPath: target})
}

// BeginMove журналирует перенос файла документа из source в target.
func (w *WAL) BeginMove(documentID int64, source, target string) (*Entry, error) {
	return w.begin(&Entry{
		Operation:  OpBlobMove,
		DocumentID: documentID,
		SourcePath: source,
		TargetPath: target,
	})
}

func (w *WAL) begin(entry *Entry) (*Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry.ID = uuid.New().String()
	entry.Status = StatusPending
	entry.StartedAt = w.now()

	if err := w.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("не удалось создать запись WAL: %w", err)
	}

	w.logger.Debug("Операция WAL начата",
		slog.String("op_id", entry.ID),
		slog.String("operation", string(entry.Operation)),
		slog.String("target", entry.TargetPath),
	)
	return entry, nil
}

// Commit отмечает, что файл и запись БД согласованы.
func (w *WAL) Commit(id string) error {
	return w.complete(id, StatusCommitted)
}

// Rollback отмечает, что файловая операция компенсирована.
func (w *WAL) Rollback(id string) error {
	return w.complete(id, StatusRolledBack)
}

func (w *WAL) complete(id string, status Status) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry, err := w.readEntry(id)
	if err != nil {
		return fmt.Errorf("не удалось прочитать запись WAL %s: %w", id, err)
	}
	if entry.Status != StatusPending {
		return fmt.Errorf("%w: %s (%s)", ErrNotPending, id, entry.Status)
	}

	now := w.now()
	entry.Status = status
	entry.CompletedAt = &now

	if err := w.writeEntry(entry); err != nil {
		return fmt.Errorf("не удалось обновить запись WAL %s: %w", id, err)
	}

	w.logger.Debug("Операция WAL завершена",
		slog.String("op_id", id),
		slog.String("status", string(status)),
		slog.Duration("duration", now.Sub(entry.StartedAt)),
	)
	return nil
}

// Pending возвращает незавершённые операции, упорядоченные по времени начала.
// Вызывается при старте сервиса.
func (w *WAL) Pending() ([]*Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	all, err := w.scan()
	if err != nil {
		return nil, err
	}

	var pending []*Entry
	for _, e := range all {
		if e.Status == StatusPending {
			pending = append(pending, e)
		}
	}
	slices.SortFunc(pending, func(a, b *Entry) int { return a.StartedAt.Compare(b.StartedAt) })
	return pending, nil
}

// Get читает запись журнала по идентификатору.
func (w *WAL) Get(id string) (*Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.readEntry(id)
}

// CleanCompleted удаляет записи в статусах committed и rolled_back.
func (w *WAL) CleanCompleted() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	all, err := w.scan()
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, e := range all {
		if e.Status == StatusPending {
			continue
		}
		path := filepath.Join(w.dir, entryFileName(e.ID))
		if err := os.Remove(path); err != nil {
			w.logger.Warn("Не удалось удалить завершённую запись WAL",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		cleaned++
	}

	if cleaned > 0 {
		w.logger.Info("Очистка WAL завершена", slog.Int("cleaned", cleaned))
	}
	return cleaned, nil
}

// Ready проверяет, что директория журнала доступна на запись.
func (w *WAL) Ready(context.Context) error {
	f, err := os.CreateTemp(w.dir, ".ready-*")
	if err != nil {
		return fmt.Errorf("директория журнала %s недоступна на запись: %w", w.dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// scan читает все записи журнала. Нечитаемые записи пропускаются с предупреждением.
func (w *WAL) scan() ([]*Entry, error) {
	paths, err := filepath.Glob(filepath.Join(w.dir, "*.wal.json"))
	if err != nil {
		return nil, fmt.Errorf("не удалось сканировать директорию WAL: %w", err)
	}

	entries := make([]*Entry, 0, len(paths))
	for _, path := range paths {
		id := strings.TrimSuffix(filepath.Base(path), ".wal.json")
		e, err := w.readEntry(id)
		if err != nil {
			w.logger.Warn("Не удалось прочитать запись WAL",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// writeEntry атомарно записывает запись: temp файл → fsync → rename.
func (w *WAL) writeEntry(entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации: %w", err)
	}

	target := filepath.Join(w.dir, entryFileName(entry.ID))
	tmp := target + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("ошибка записи: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}

func (w *WAL) readEntry(id string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(w.dir, entryFileName(id)))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("ошибка десериализации: %w", err)
	}
	return &entry, nil
}
