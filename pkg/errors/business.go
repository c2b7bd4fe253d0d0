package errors

import "fmt"

// Stable error codes delivered to clients in ERROR events.
const (
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeValidation    = "VALIDATION"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeInternalError = "INTERNAL_ERROR"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewBusinessError(code string, message string) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
	}
}

func (e *BusinessError) WithDetails(details map[string]any) *BusinessError {
	return &BusinessError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

func Unauthorized(message string) *BusinessError {
	return NewBusinessError(CodeUnauthorized, message)
}

func Validation(message string) *BusinessError {
	return NewBusinessError(CodeValidation, message)
}

func NotFound(message string) *BusinessError {
	return NewBusinessError(CodeNotFound, message)
}

func Conflict(message string) *BusinessError {
	return NewBusinessError(CodeConflict, message)
}

func Internal(message string) *BusinessError {
	return NewBusinessError(CodeInternalError, message)
}
