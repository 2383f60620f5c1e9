package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/AECHE7/Fanders-sub003/internal/domain/model"
)

// GenerationRuleRepository — чтение таблицы slr_generation_rules.
type GenerationRuleRepository interface {
	// FindByTrigger возвращает правило триггера. Активные правила
	// предпочтительнее неактивных, среди равных — последнее созданное.
	FindByTrigger(ctx context.Context, trigger model.Trigger) (*model.GenerationRule, error)
	// List возвращает все правила.
	List(ctx context.Context) ([]*model.GenerationRule, error)
}

type generationRuleRepo struct {
	db DBTX
}

// NewGenerationRuleRepository создаёт репозиторий правил генерации.
func NewGenerationRuleRepository(db DBTX) GenerationRuleRepository {
	return &generationRuleRepo{db: db}
}

const ruleColumns = `id, rule_name, description, trigger_event, auto_generate,
	min_principal_amount::float8, max_principal_amount::float8,
	require_signatures, notify_client, notify_officers, is_active, created_at, updated_at`

func scanRule(row pgx.Row) (*model.GenerationRule, error) {
	r := &model.GenerationRule{}
	var trigger string
	err := row.Scan(
		&r.ID, &r.RuleName, &r.Description, &trigger, &r.AutoGenerate,
		&r.MinPrincipalAmount, &r.MaxPrincipalAmount,
		&r.RequireSignatures, &r.NotifyClient, &r.NotifyOfficers, &r.IsActive,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.TriggerEvent = model.Trigger(trigger)
	return r, nil
}

func (r *generationRuleRepo) FindByTrigger(ctx context.Context, trigger model.Trigger) (*model.GenerationRule, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM slr_generation_rules
		WHERE trigger_event = $1
		ORDER BY is_active DESC, id DESC
		LIMIT 1`, ruleColumns)

	rule, err := scanRule(r.db.QueryRow(ctx, query, string(trigger)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения правила генерации: %w", err)
	}
	return rule, nil
}

func (r *generationRuleRepo) List(ctx context.Context) ([]*model.GenerationRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM slr_generation_rules ORDER BY trigger_event, id`, ruleColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка правил: %w", err)
	}
	defer rows.Close()

	var result []*model.GenerationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования правила: %w", err)
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
