package model

import (
	"testing"
	"time"
)

func TestDocumentNumber(t *testing.T) {
	tests := []struct {
		name   string
		loanID int64
		now    time.Time
		want   string
	}{
		{"январь 2025", 123, time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC), "SLR-202501-000123"},
		{"шесть цифр", 654321, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), "SLR-202412-654321"},
		{"длиннее шести цифр", 1234567, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), "SLR-202407-1234567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DocumentNumber(tt.loanID, tt.now); got != tt.want {
				t.Errorf("DocumentNumber() = %q, ожидается %q", got, tt.want)
			}
		})
	}
}

func TestDocumentFileName(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	got := DocumentFileName("SLR-202501-000123", now)
	want := "SLR_SLR-202501-000123_20250115.pdf"
	if got != want {
		t.Errorf("DocumentFileName() = %q, ожидается %q", got, want)
	}
}

func TestFormatPeso(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{10000, "₱10,000.00"},
		{5000.5, "₱5,000.50"},
		{999.999, "₱1,000.00"},
		{0, "₱0.00"},
	}
	for _, tt := range tests {
		if got := FormatPeso(tt.v); got != tt.want {
			t.Errorf("FormatPeso(%v) = %q, ожидается %q", tt.v, got, tt.want)
		}
	}
}

func TestLoan_AllowsSLR(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"approved", true},
		{"Active", true},
		{"COMPLETED", true},
		{"application", false},
		{"defaulted", false},
		{"", false},
	}
	for _, tt := range tests {
		l := &Loan{Status: tt.status}
		if got := l.AllowsSLR(); got != tt.want {
			t.Errorf("AllowsSLR(%q) = %v, ожидается %v", tt.status, got, tt.want)
		}
	}
}

func TestLoan_EffectiveTermWeeks(t *testing.T) {
	if got := (&Loan{}).EffectiveTermWeeks(); got != DefaultTermWeeks {
		t.Errorf("EffectiveTermWeeks() = %d, ожидается %d", got, DefaultTermWeeks)
	}
	if got := (&Loan{TermWeeks: 12}).EffectiveTermWeeks(); got != 12 {
		t.Errorf("EffectiveTermWeeks() = %d, ожидается 12", got)
	}
}

func TestTrigger(t *testing.T) {
	for _, tr := range []Trigger{
		TriggerManual, TriggerManualRequest, TriggerLoanApproval,
		TriggerAutoApproval, TriggerLoanDisbursement, TriggerAutoDisbursement,
	} {
		if !tr.IsValid() {
			t.Errorf("%q должен быть допустимым триггером", tr)
		}
	}
	if Trigger("bogus").IsValid() {
		t.Error("bogus не должен быть допустимым триггером")
	}
	if got := TriggerAutoApproval.Label(); got != "Automatic on Approval" {
		t.Errorf("Label() = %q", got)
	}
}

func TestAccessType(t *testing.T) {
	if got := AccessDownload.EventName(); got != "slr_download" {
		t.Errorf("EventName() = %q, ожидается slr_download", got)
	}
	if got := AccessGeneration.Label(); got != "SLR Generation" {
		t.Errorf("Label() = %q, ожидается SLR Generation", got)
	}
}
