package model

import "time"

// GenerationRule — правило генерации SLR для триггера.
// Хранится в таблице slr_generation_rules, сервисом только читается.
type GenerationRule struct {
	ID                 int64
	RuleName           string
	Description        string
	TriggerEvent       Trigger
	AutoGenerate       bool
	MinPrincipalAmount *float64
	MaxPrincipalAmount *float64
	RequireSignatures  bool
	NotifyClient       bool
	NotifyOfficers     bool
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ScheduleEntry — строка графика платежей.
type ScheduleEntry struct {
	Week             int     `json:"week"`
	DueDate          string  `json:"due_date,omitempty"`
	ExpectedPayment  float64 `json:"expected_payment"`
	PrincipalPayment float64 `json:"principal_payment"`
	InterestPayment  float64 `json:"interest_payment"`
	InsurancePayment float64 `json:"insurance_payment"`
}
