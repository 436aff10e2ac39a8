package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeInvalidSigner       Code = "INVALID_SIGNER"
	CodeDuplicateApproval   Code = "DUPLICATE_APPROVAL"
	CodeNotFound            Code = "NOT_FOUND"
	CodeLedger              Code = "LEDGER_ERROR"
	CodeStore               Code = "STORE_ERROR"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
	CodeInternal            Code = "INTERNAL_ERROR"
)

type AppError struct {
	Code Code
	Op   string
	Err  error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Op, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so callers can test with
// errors.Is(err, apperrors.ErrNotFound).
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Code == e.Code
}

func WrapWithCode(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code: code,
		Op:   op,
		Err:  err,
	}
}

// New builds an AppError from a message.
func New(code Code, op, msg string) error {
	return &AppError{Code: code, Op: op, Err: errors.New(msg)}
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation          = &AppError{Code: CodeValidation}
	ErrInvalidSigner       = &AppError{Code: CodeInvalidSigner}
	ErrDuplicateApproval   = &AppError{Code: CodeDuplicateApproval}
	ErrNotFound            = &AppError{Code: CodeNotFound}
	ErrLedger              = &AppError{Code: CodeLedger}
	ErrStore               = &AppError{Code: CodeStore}
	ErrConcurrencyConflict = &AppError{Code: CodeConcurrencyConflict}
)

// CodeOf returns the code of the outermost AppError in err's chain.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error code to the status the API responds with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeInvalidSigner:
		return http.StatusForbidden
	case CodeDuplicateApproval, CodeConcurrencyConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeLedger:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for err. Ledger and store failures
// are reported generically; their detail stays in the logs.
func Message(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "internal error"
	}
	switch appErr.Code {
	case CodeLedger:
		return "ledger operation failed"
	case CodeStore, CodeInternal:
		return "internal error"
	case CodeConcurrencyConflict:
		return "request conflicted with a concurrent update, retry"
	}
	if appErr.Err != nil {
		return appErr.Err.Error()
	}
	return string(appErr.Code)
}
