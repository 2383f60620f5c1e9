// Пакет schedule — график еженедельных платежей по займу.
// Сервис SLR использует калькулятор как внешний компонент: ему нужен
// только готовый график для включения в документ.
package schedule

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/AECHE7/Fanders-sub003/internal/domain/model"
)

// Calculator строит график платежей по сумме займа и сроку в неделях.
type Calculator interface {
	Schedule(principal float64, termWeeks int) ([]model.ScheduleEntry, error)
}

// ErrInvalidPrincipal — сумма займа должна быть положительной.
var ErrInvalidPrincipal = errors.New("principal amount must be greater than zero")

// FlatRateCalculator — фиксированная ставка за весь срок и фиксированная страховка.
// Проценты: principal × MonthlyRate × TermMonths. Каждая неделя округляется до
// сотых, остаток от округления приходится на последнюю неделю.
type FlatRateCalculator struct {
	MonthlyRate  decimal.Decimal
	TermMonths   int64
	InsuranceFee decimal.Decimal
}

// NewFlatRateCalculator возвращает калькулятор со стандартными условиями:
// 5% в месяц на 4 месяца, страховка ₱425.
func NewFlatRateCalculator() *FlatRateCalculator {
	return &FlatRateCalculator{
		MonthlyRate:  decimal.RequireFromString("0.05"),
		TermMonths:   4,
		InsuranceFee: decimal.NewFromInt(425),
	}
}

// Totals — итоговые суммы по займу.
type Totals struct {
	Principal float64
	Interest  float64
	Insurance float64
	Total     float64
	Weekly    float64
}

// Totals рассчитывает итоговые суммы займа.
func (c *FlatRateCalculator) Totals(principal float64, termWeeks int) (Totals, error) {
	p, interest, err := c.base(principal)
	if err != nil {
		return Totals{}, err
	}
	weeks := normalizeWeeks(termWeeks)
	total := p.Add(interest).Add(c.InsuranceFee)

	return Totals{
		Principal: p.InexactFloat64(),
		Interest:  interest.InexactFloat64(),
		Insurance: c.InsuranceFee.InexactFloat64(),
		Total:     total.InexactFloat64(),
		Weekly:    total.Div(decimal.NewFromInt(int64(weeks))).Round(2).InexactFloat64(),
	}, nil
}

// Schedule строит график из termWeeks строк (0 — срок по умолчанию).
func (c *FlatRateCalculator) Schedule(principal float64, termWeeks int) ([]model.ScheduleEntry, error) {
	p, interest, err := c.base(principal)
	if err != nil {
		return nil, err
	}
	weeks := normalizeWeeks(termWeeks)
	n := decimal.NewFromInt(int64(weeks))

	principalWeek := p.Div(n).Round(2)
	interestWeek := interest.Div(n).Round(2)
	insuranceWeek := c.InsuranceFee.Div(n).Round(2)

	remPrincipal, remInterest, remInsurance := p, interest, c.InsuranceFee

	entries := make([]model.ScheduleEntry, 0, weeks)
	for week := 1; week <= weeks; week++ {
		pp, ip, sp := principalWeek, interestWeek, insuranceWeek
		if week == weeks {
			pp, ip, sp = remPrincipal, remInterest, remInsurance
		}

		entries = append(entries, model.ScheduleEntry{
			Week:             week,
			ExpectedPayment:  pp.Add(ip).Add(sp).InexactFloat64(),
			PrincipalPayment: pp.InexactFloat64(),
			InterestPayment:  ip.InexactFloat64(),
			InsurancePayment: sp.InexactFloat64(),
		})

		remPrincipal = remPrincipal.Sub(pp)
		remInterest = remInterest.Sub(ip)
		remInsurance = remInsurance.Sub(sp)
	}
	return entries, nil
}

func (c *FlatRateCalculator) base(principal float64) (decimal.Decimal, decimal.Decimal, error) {
	if principal <= 0 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidPrincipal, principal)
	}
	p := decimal.NewFromFloat(principal).Round(2)
	interest := p.Mul(c.MonthlyRate).Mul(decimal.NewFromInt(c.TermMonths)).Round(2)
	return p, interest, nil
}

func normalizeWeeks(termWeeks int) int {
	if termWeeks <= 0 {
		return model.DefaultTermWeeks
	}
	return termWeeks
}
