// Пакет result — тип Result[T]: успех с данными или отказ с кодом и сообщением.
// Внутренние компоненты сервиса обмениваются только значениями Result;
// превращение отказа в error допускается лишь на внешней границе (HTTP).
package result

import "fmt"

// Code — стабильный машиночитаемый код отказа.
type Code string

// Коды отказов.
const (
	CodeInvalidTrigger       Code = "INVALID_TRIGGER"
	CodeLoanNotFound         Code = "LOAN_NOT_FOUND"
	CodeInvalidLoanStatus    Code = "INVALID_LOAN_STATUS"
	CodeNoGenerationRule     Code = "NO_GENERATION_RULE"
	CodeRuleNotActive        Code = "RULE_NOT_ACTIVE"
	CodePrincipalTooLow      Code = "PRINCIPAL_TOO_LOW"
	CodePrincipalTooHigh     Code = "PRINCIPAL_TOO_HIGH"
	CodeActiveSLRExists      Code = "ACTIVE_SLR_EXISTS"
	CodePDFGenerationError   Code = "PDF_GENERATION_ERROR"
	CodePDFEmpty             Code = "PDF_EMPTY"
	CodeFileSaveError        Code = "FILE_SAVE_ERROR"
	CodeDBInsertError        Code = "DB_INSERT_ERROR"
	CodeSLRNotFound          Code = "SLR_NOT_FOUND"
	CodeSLRNotActive         Code = "SLR_NOT_ACTIVE"
	CodeFileNotFound         Code = "FILE_NOT_FOUND"
	CodeIntegrityCheckFailed Code = "INTEGRITY_CHECK_FAILED"
	CodeInvalidStatus        Code = "INVALID_STATUS"
	CodeFileMoveError        Code = "FILE_MOVE_ERROR"
	CodeDBUpdateError        Code = "DB_UPDATE_ERROR"
	CodeException            Code = "EXCEPTION"
)

// Unit — пустое значение для операций без данных.
type Unit struct{}

// Result — успех (Success) или отказ (Failure). Третьего состояния нет.
// Нулевое значение не используется: создавайте через Success/Failure.
type Result[T any] struct {
	data    T
	ok      bool
	message string
	code    Code
}

// Success создаёт успешный результат.
func Success[T any](data T) Result[T] {
	return Result[T]{data: data, ok: true}
}

// Failure создаёт отказ с сообщением и кодом.
func Failure[T any](message string, code Code) Result[T] {
	return Result[T]{message: message, code: code}
}

// Failuref — Failure с форматированием сообщения.
func Failuref[T any](code Code, format string, args ...any) Result[T] {
	return Failure[T](fmt.Sprintf(format, args...), code)
}

// Propagate переносит отказ в результат другого типа без изменений.
// Для успешного r возвращает отказ EXCEPTION: вызывать только на отказах.
func Propagate[U, T any](r Result[T]) Result[U] {
	if r.ok {
		return Failure[U]("propagate called on a successful result", CodeException)
	}
	return Failure[U](r.message, r.code)
}

// IsSuccess возвращает true для успешного результата.
func (r Result[T]) IsSuccess() bool { return r.ok }

// IsFailure возвращает true для отказа.
func (r Result[T]) IsFailure() bool { return !r.ok }

// Data возвращает данные; для отказа — нулевое значение T.
func (r Result[T]) Data() T { return r.data }

// DataOr возвращает данные или def для отказа.
func (r Result[T]) DataOr(def T) T {
	if r.ok {
		return r.data
	}
	return def
}

// Message возвращает сообщение отказа (пустое для успеха).
func (r Result[T]) Message() string { return r.message }

// Code возвращает код отказа (пустой для успеха).
func (r Result[T]) Code() Code { return r.code }

// Unwrap возвращает данные или *Error для отказа.
// Используется только обработчиками запросов на внешней границе.
func (r Result[T]) Unwrap() (T, error) {
	if r.ok {
		return r.data, nil
	}
	var zero T
	return zero, &Error{Code: r.code, Message: r.message}
}

// Error — отказ Result, преобразованный в error.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
