package model

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Статусы займа, допускающие генерацию SLR.
const (
	LoanStatusApproved  = "approved"
	LoanStatusActive    = "active"
	LoanStatusCompleted = "completed"
)

// Loan — займ вместе с данными клиента.
// Принадлежит подсистеме выдачи займов, сервис только читает его.
type Loan struct {
	ID              int64
	ClientID        int64
	ClientName      string
	ClientPhone     string
	ClientEmail     string
	ClientAddress   string
	Principal       float64
	TotalLoanAmount float64
	TermWeeks       int
	Status          string
	CreatedAt       time.Time
	ApprovedAt      *time.Time
	DisbursedAt     *time.Time
}

// EffectiveTermWeeks возвращает срок займа или срок по умолчанию.
func (l *Loan) EffectiveTermWeeks() int {
	if l.TermWeeks <= 0 {
		return DefaultTermWeeks
	}
	return l.TermWeeks
}

// AllowsSLR проверяет статус займа (без учёта регистра).
func (l *Loan) AllowsSLR() bool {
	switch strings.ToLower(l.Status) {
	case LoanStatusApproved, LoanStatusActive, LoanStatusCompleted:
		return true
	}
	return false
}

// CurrencySymbol — символ валюты в суммах документа и сообщениях.
const CurrencySymbol = "₱"

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount форматирует сумму с разделителями тысяч и двумя знаками: 10,000.00.
func FormatAmount(v float64) string {
	return amountPrinter.Sprintf("%.2f", v)
}

// FormatPeso форматирует сумму с символом валюты: ₱10,000.00.
func FormatPeso(v float64) string {
	return CurrencySymbol + FormatAmount(v)
}
