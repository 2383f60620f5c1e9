package model

import "strings"

// Trigger — событие, инициирующее генерацию документа.
type Trigger string

const (
	TriggerManual           Trigger = "manual"
	TriggerManualRequest    Trigger = "manual_request"
	TriggerLoanApproval     Trigger = "loan_approval"
	TriggerAutoApproval     Trigger = "auto_approval"
	TriggerLoanDisbursement Trigger = "loan_disbursement"
	TriggerAutoDisbursement Trigger = "auto_disbursement"
)

var validTriggers = map[Trigger]bool{
	TriggerManual:           true,
	TriggerManualRequest:    true,
	TriggerLoanApproval:     true,
	TriggerAutoApproval:     true,
	TriggerLoanDisbursement: true,
	TriggerAutoDisbursement: true,
}

// IsValid проверяет, что триггер входит в перечень распознаваемых.
func (t Trigger) IsValid() bool {
	return validTriggers[t]
}

// Label возвращает название триггера для журнала аудита.
func (t Trigger) Label() string {
	switch t {
	case TriggerManual, TriggerManualRequest:
		return "Manual Generation"
	case TriggerLoanApproval, TriggerAutoApproval:
		return "Automatic on Approval"
	case TriggerLoanDisbursement, TriggerAutoDisbursement:
		return "Automatic on Disbursement"
	default:
		return strings.ReplaceAll(string(t), "_", " ")
	}
}

// AccessType — тип обращения к документу в журнале доступа.
type AccessType string

const (
	AccessGeneration AccessType = "generation"
	AccessView       AccessType = "view"
	AccessDownload   AccessType = "download"
	AccessArchive    AccessType = "archive"
)

// EventName возвращает имя события для общесистемного журнала: slr_<тип>.
func (a AccessType) EventName() string {
	return "slr_" + string(a)
}

// Label возвращает подпись события: "SLR Generation", "SLR Download" и т.п.
func (a AccessType) Label() string {
	s := string(a)
	if s == "" {
		return "SLR"
	}
	return "SLR " + strings.ToUpper(s[:1]) + s[1:]
}
