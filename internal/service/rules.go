package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/AECHE7/Fanders-sub003/internal/domain/model"
	"github.com/AECHE7/Fanders-sub003/internal/domain/result"
	"github.com/AECHE7/Fanders-sub003/internal/repository"
)

// triggerAliases — исторические переименования триггеров.
// Поиск делает ровно один переход по таблице, цепочки не раскрываются.
var triggerAliases = map[model.Trigger]model.Trigger{
	model.TriggerManual:           model.TriggerManualRequest,
	model.TriggerManualRequest:    model.TriggerManual,
	model.TriggerAutoApproval:     model.TriggerLoanApproval,
	model.TriggerAutoDisbursement: model.TriggerLoanDisbursement,
}

// RuleFlags — флаги правила, применяемые к документу и уведомлениям.
type RuleFlags struct {
	RequiresSignature           bool `json:"requires_signature"`
	RequiresClientNotification  bool `json:"requires_client_notification"`
	RequiresOfficerNotification bool `json:"requires_officer_notification"`
}

// defaultRuleFlags — значения при отсутствии правила: подпись требуется.
var defaultRuleFlags = RuleFlags{RequiresSignature: true}

// RuleResolver — разрешение правил генерации и проверка допустимости займа.
// Найденные правила кэшируются в LRU с TTL. При нулевом TTL кэша нет.
type RuleResolver struct {
	rules  repository.GenerationRuleRepository
	cache  *expirable.LRU[model.Trigger, *model.GenerationRule]
	logger *slog.Logger
}

// NewRuleResolver создаёт резолвер правил.
// cacheSize — максимум записей в кэше, ttl — время жизни записи.
// ttl <= 0 отключает кэш: expirable.LRU с таким TTL хранит записи бессрочно.
func NewRuleResolver(
	rules repository.GenerationRuleRepository,
	cacheSize int,
	ttl time.Duration,
	logger *slog.Logger,
) *RuleResolver {
	r := &RuleResolver{
		rules:  rules,
		logger: logger.With(slog.String("component", "rule_resolver")),
	}
	if ttl > 0 {
		r.cache = expirable.NewLRU[model.Trigger, *model.GenerationRule](max(cacheSize, 1), nil, ttl)
	}
	return r
}

// Resolve возвращает правило триггера.
// Сначала точное имя, затем одно имя из таблицы псевдонимов. Неактивное
// правило возвращается, только если активного нет ни под одним из имён.
// repository.ErrNotFound — правило не найдено.
func (r *RuleResolver) Resolve(ctx context.Context, trigger model.Trigger) (*model.GenerationRule, error) {
	if r.cache == nil {
		return r.lookup(ctx, trigger)
	}
	if rule, ok := r.cache.Get(trigger); ok {
		ruleCacheHitsTotal.Inc()
		return rule, nil
	}
	ruleCacheMissesTotal.Inc()

	rule, err := r.lookup(ctx, trigger)
	if err != nil {
		return nil, err
	}
	r.cache.Add(trigger, rule)
	return rule, nil
}

func (r *RuleResolver) lookup(ctx context.Context, trigger model.Trigger) (*model.GenerationRule, error) {
	exact, err := r.find(ctx, trigger)
	if err != nil {
		return nil, err
	}
	if exact != nil && exact.IsActive {
		return exact, nil
	}

	if alias, ok := triggerAliases[trigger]; ok {
		aliased, err := r.find(ctx, alias)
		if err != nil {
			return nil, err
		}
		if aliased != nil && (aliased.IsActive || exact == nil) {
			r.logger.Debug("Правило найдено по псевдониму триггера",
				slog.String("trigger", string(trigger)),
				slog.String("alias", string(alias)),
				slog.Int64("rule_id", aliased.ID),
			)
			return aliased, nil
		}
	}

	if exact != nil {
		return exact, nil
	}
	return nil, repository.ErrNotFound
}

// find возвращает nil без ошибки, если правила нет.
func (r *RuleResolver) find(ctx context.Context, trigger model.Trigger) (*model.GenerationRule, error) {
	rule, err := r.rules.FindByTrigger(ctx, trigger)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска правила %s: %w", trigger, err)
	}
	return rule, nil
}

// Invalidate очищает кэш правил.
func (r *RuleResolver) Invalidate() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

// CanGenerate проверяет, допускает ли займ генерацию документа по триггеру.
func (r *RuleResolver) CanGenerate(ctx context.Context, loan *model.Loan, trigger model.Trigger) result.Result[result.Unit] {
	if !loan.AllowsSLR() {
		return result.Failuref[result.Unit](result.CodeInvalidLoanStatus,
			"SLR can only be generated for approved, active, or completed loans. Current status: %s", loan.Status)
	}

	rule, err := r.Resolve(ctx, trigger)
	if errors.Is(err, repository.ErrNotFound) {
		return result.Failure[result.Unit]("No generation rule found for trigger: "+string(trigger), result.CodeNoGenerationRule)
	}
	if err != nil {
		return result.Failure[result.Unit](err.Error(), result.CodeException)
	}
	if !rule.IsActive {
		return result.Failure[result.Unit]("SLR generation is disabled for "+trigger.Label(), result.CodeRuleNotActive)
	}

	// Граница 0 означает, что граница не задана.
	if minAmount := rule.MinPrincipalAmount; minAmount != nil && *minAmount > 0 && loan.Principal < *minAmount {
		return result.Failuref[result.Unit](result.CodePrincipalTooLow,
			"Loan principal (%s) is below minimum amount (%s) for SLR generation.",
			model.FormatPeso(loan.Principal), model.FormatPeso(*minAmount))
	}
	if maxAmount := rule.MaxPrincipalAmount; maxAmount != nil && *maxAmount > 0 && loan.Principal > *maxAmount {
		return result.Failuref[result.Unit](result.CodePrincipalTooHigh,
			"Loan principal (%s) exceeds maximum amount (%s) for SLR generation.",
			model.FormatPeso(loan.Principal), model.FormatPeso(*maxAmount))
	}
	return result.Success(result.Unit{})
}

// Flags возвращает флаги правила триггера или значения по умолчанию.
func (r *RuleResolver) Flags(ctx context.Context, trigger model.Trigger) RuleFlags {
	rule, err := r.Resolve(ctx, trigger)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn("Ошибка разрешения правила, используются значения по умолчанию",
				slog.String("trigger", string(trigger)),
				slog.String("error", err.Error()),
			)
		}
		return defaultRuleFlags
	}
	return RuleFlags{
		RequiresSignature:           rule.RequireSignatures,
		RequiresClientNotification:  rule.NotifyClient,
		RequiresOfficerNotification: rule.NotifyOfficers,
	}
}

// RequiresSignature — требуется ли подпись клиента (по умолчанию true).
func (r *RuleResolver) RequiresSignature(ctx context.Context, trigger model.Trigger) bool {
	return r.Flags(ctx, trigger).RequiresSignature
}

// RequiresClientNotification — уведомлять ли клиента (по умолчанию false).
func (r *RuleResolver) RequiresClientNotification(ctx context.Context, trigger model.Trigger) bool {
	return r.Flags(ctx, trigger).RequiresClientNotification
}

// RequiresOfficerNotification — уведомлять ли сотрудников (по умолчанию false).
func (r *RuleResolver) RequiresOfficerNotification(ctx context.Context, trigger model.Trigger) bool {
	return r.Flags(ctx, trigger).RequiresOfficerNotification
}

// ParseTrigger нормализует имя триггера из внешнего ввода.
func ParseTrigger(s string) model.Trigger {
	return model.Trigger(strings.ToLower(strings.TrimSpace(s)))
}
