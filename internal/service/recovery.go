// recovery.go — завершение файловых операций, прерванных остановкой процесса.
//
// Запускается один раз при старте, до приёма HTTP-запросов. Для каждой
// операции WAL в статусе pending состояние БД считается источником истины:
//   - blob_write: запись БД ссылается на файл → commit; нет записи → файл удаляется
//   - blob_move: запись БД ссылается на целевой путь → commit; иначе файл возвращается
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AECHE7/Fanders-sub003/internal/repository"
	"github.com/AECHE7/Fanders-sub003/internal/storage/wal"
)

// RecoveryReport — итог восстановления.
type RecoveryReport struct {
	Committed  int
	RolledBack int
	Failed     int
}

// RecoverPending завершает незакрытые операции журнала.
// Ошибка по отдельной записи не прерывает обработку остальных.
func (s *LifecycleService) RecoverPending(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	pending, err := s.journal.Pending()
	if err != nil {
		return report, fmt.Errorf("ошибка чтения журнала: %w", err)
	}
	if len(pending) == 0 {
		return report, nil
	}

	s.logger.Info("Восстановление незавершённых файловых операций", slog.Int("pending", len(pending)))

	for _, entry := range pending {
		var committed bool
		var err error
		switch entry.Operation {
		case wal.OpBlobWrite:
			committed, err = s.recoverWrite(ctx, entry)
		case wal.OpBlobMove:
			committed, err = s.recoverMove(ctx, entry)
		default:
			err = fmt.Errorf("неизвестная операция %q", entry.Operation)
		}

		if err != nil {
			report.Failed++
			s.logger.Error("Не удалось восстановить операцию журнала",
				slog.String("wal_id", entry.ID),
				slog.String("operation", string(entry.Operation)),
				slog.String("error", err.Error()),
			)
			continue
		}

		action := "rollback"
		if committed {
			action = "commit"
			report.Committed++
			err = s.journal.Commit(entry.ID)
		} else {
			report.RolledBack++
			err = s.journal.Rollback(entry.ID)
		}
		walRecoveredTotal.WithLabelValues(string(entry.Operation), action).Inc()
		if err != nil {
			s.logger.Warn("Не удалось закрыть запись журнала",
				slog.String("wal_id", entry.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("Восстановление завершено",
		slog.Int("committed", report.Committed),
		slog.Int("rolled_back", report.RolledBack),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

// recoverWrite возвращает true, если запись документа была зафиксирована.
func (s *LifecycleService) recoverWrite(ctx context.Context, entry *wal.Entry) (bool, error) {
	_, err := s.store.Repositories().Documents.GetByFilePath(ctx, entry.TargetPath)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	if err := s.files.Delete(entry.TargetPath); err != nil {
		return false, err
	}
	compensationsTotal.WithLabelValues("delete", "recovered").Inc()
	s.logger.Warn("Удалён файл незафиксированной генерации", slog.String("path", entry.TargetPath))
	return false, nil
}

// recoverMove возвращает true, если перенос был зафиксирован в БД.
func (s *LifecycleService) recoverMove(ctx context.Context, entry *wal.Entry) (bool, error) {
	doc, err := s.store.Repositories().Documents.GetByID(ctx, entry.DocumentID)
	switch {
	case err == nil && doc.FilePath == entry.TargetPath:
		return true, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return false, err
	}

	// Файл ещё не перенесён или уже возвращён.
	if !s.files.Exists(entry.TargetPath) {
		return false, nil
	}
	if err := s.files.Move(entry.TargetPath, entry.SourcePath); err != nil {
		return false, err
	}
	compensationsTotal.WithLabelValues("move_back", "recovered").Inc()
	s.logger.Warn("Файл документа возвращён из архива при восстановлении",
		slog.Int64("slr_id", entry.DocumentID),
		slog.String("path", entry.SourcePath),
	)
	return false, nil
}
