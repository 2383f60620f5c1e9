// Пакет errors — ответы с ошибками SLR API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/AECHE7/Fanders-sub003/internal/domain/result"
)

// Коды ошибок HTTP-слоя. Коды отказов сервиса передаются как есть.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeConflict        = "CONFLICT"
	CodeInternalError   = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// WriteFailure записывает отказ операции сервиса. Код отказа сохраняется,
// HTTP-статус определяется StatusFor.
func WriteFailure(w http.ResponseWriter, code result.Code, message string) {
	WriteError(w, StatusFor(code), string(code), message)
}

// StatusFor возвращает HTTP-статус для кода отказа.
func StatusFor(code result.Code) int {
	switch code {
	case result.CodeLoanNotFound, result.CodeSLRNotFound, result.CodeFileNotFound:
		return http.StatusNotFound
	case result.CodeInvalidTrigger:
		return http.StatusBadRequest
	case result.CodeActiveSLRExists, result.CodeSLRNotActive, result.CodeInvalidStatus:
		return http.StatusConflict
	case result.CodeInvalidLoanStatus, result.CodeNoGenerationRule, result.CodeRuleNotActive,
		result.CodePrincipalTooLow, result.CodePrincipalTooHigh:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 вызывающий не идентифицирован.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Conflict — 409 конфликт состояния.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
