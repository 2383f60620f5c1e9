package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AECHE7/Fanders-sub003/internal/domain/result"
)

func TestWriteFailure_Body(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteFailure(rec, result.CodeActiveSLRExists, "An active SLR already exists for this loan.")

	if rec.Code != http.StatusConflict {
		t.Errorf("статус = %d, ожидается 409", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("ошибка декодирования: %v", err)
	}
	if body.Error.Code != "ACTIVE_SLR_EXISTS" {
		t.Errorf("code = %q", body.Error.Code)
	}
	if body.Error.Message != "An active SLR already exists for this loan." {
		t.Errorf("message = %q", body.Error.Message)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code result.Code
		want int
	}{
		{result.CodeLoanNotFound, http.StatusNotFound},
		{result.CodeSLRNotFound, http.StatusNotFound},
		{result.CodeFileNotFound, http.StatusNotFound},
		{result.CodeInvalidTrigger, http.StatusBadRequest},
		{result.CodeActiveSLRExists, http.StatusConflict},
		{result.CodeSLRNotActive, http.StatusConflict},
		{result.CodeInvalidStatus, http.StatusConflict},
		{result.CodeInvalidLoanStatus, http.StatusUnprocessableEntity},
		{result.CodeNoGenerationRule, http.StatusUnprocessableEntity},
		{result.CodeRuleNotActive, http.StatusUnprocessableEntity},
		{result.CodePrincipalTooLow, http.StatusUnprocessableEntity},
		{result.CodePrincipalTooHigh, http.StatusUnprocessableEntity},
		{result.CodeIntegrityCheckFailed, http.StatusInternalServerError},
		{result.CodePDFEmpty, http.StatusInternalServerError},
		{result.CodeException, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := StatusFor(tt.code); got != tt.want {
				t.Errorf("StatusFor(%s) = %d, ожидается %d", tt.code, got, tt.want)
			}
		})
	}
}
