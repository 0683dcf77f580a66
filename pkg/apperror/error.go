package apperror

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation   Code = "validation"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodePrecondition Code = "precondition"
	CodeInfeasible   Code = "infeasible"
	CodeInternal     Code = "internal"
)

type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Precondition fails a whole operation before any solver work starts.
func Precondition(message string) *Error {
	return New(CodePrecondition, message)
}

// Infeasible carries a solver's explanation verbatim.
func Infeasible(reason string) *Error {
	return New(CodeInfeasible, reason)
}

func NotFound(what string) *Error {
	return Newf(CodeNotFound, "%s not found", what)
}

func GetCode(err error) Code {
	if err == nil {
		return ""
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return CodeInternal
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}
