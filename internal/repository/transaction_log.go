package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AECHE7/Fanders-sub003/internal/domain/model"
)

// EntityTypeSLR — тип сущности документа SLR в общесистемном журнале.
const EntityTypeSLR = "slr_document"

// TransactionLogRepository — общесистемный журнал событий (transaction_logs).
type TransactionLogRepository interface {
	// LogEvent записывает событие eventName над документом subjectID.
	// Ключ details["remote_addr"] дублируется в колонку ip_address.
	LogEvent(ctx context.Context, eventName string, actorID, subjectID int64, details map[string]any) error
	// ListByEntity возвращает события сущности, новые первыми.
	ListByEntity(ctx context.Context, entityType string, entityID int64, limit int) ([]*model.AuditEvent, error)
}

type transactionLogRepo struct {
	db DBTX
}

// NewTransactionLogRepository создаёт репозиторий журнала событий.
func NewTransactionLogRepository(db DBTX) TransactionLogRepository {
	return &transactionLogRepo{db: db}
}

func (r *transactionLogRepo) LogEvent(ctx context.Context, eventName string, actorID, subjectID int64, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("ошибка сериализации деталей события: %w", err)
	}
	ip, _ := details["remote_addr"].(string)

	query := `
		INSERT INTO transaction_logs (entity_type, entity_id, action, user_id, details, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.Exec(ctx, query, EntityTypeSLR, subjectID, eventName, actorID, payload, ip); err != nil {
		return fmt.Errorf("ошибка записи события %s: %w", eventName, err)
	}
	return nil
}

func (r *transactionLogRepo) ListByEntity(ctx context.Context, entityType string, entityID int64, limit int) ([]*model.AuditEvent, error) {
	query := `
		SELECT id, entity_type, entity_id, action, user_id, details, created_at
		FROM transaction_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала событий: %w", err)
	}
	defer rows.Close()

	var result []*model.AuditEvent
	for rows.Next() {
		e := &model.AuditEvent{}
		var raw []byte
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.ActorID, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования события: %w", err)
		}
		if err := json.Unmarshal(raw, &e.Details); err != nil {
			return nil, fmt.Errorf("ошибка разбора деталей события %d: %w", e.ID, err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
