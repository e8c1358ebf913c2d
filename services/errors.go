package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable machine-readable error codes returned in the response envelope.
const (
	CodeUnknown            = 1000
	CodeInvalidParams      = 1001
	CodeNotFound           = 1002
	CodePermissionDenied   = 1003
	CodeUnauthorized       = 2000
	CodeInvalidToken       = 2001
	CodeInvalidCredentials = 2003
	CodeUserNotFound       = 2004
	CodeUserDisabled       = 2005
	CodeEmailExists        = 2006
	CodeGoogleNotEnabled   = 2007
	CodeMembershipExpired  = 3000
	CodeMembershipRequired = 3001

	CodeExtractionFailed    = 6001
	CodeExtractionTimeout   = 6002
	CodePageTooLarge        = 6003
	CodeNotHTML             = 6004
	CodeInsufficientContent = 6005

	CodeGenerationNotConfigured = 6101
	CodeGenerationFailed        = 6102
	CodeGenerationTimeout       = 6103
	CodeGenerationDecode        = 6104

	CodeSpeechNotConfigured = 6201
	CodeSpeechFailed        = 6202
)

// AppError carries an HTTP status and a stable code alongside the
// user-facing message. Err keeps the underlying cause for logs.
type AppError struct {
	Status  int
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(status, code int, message string, err error) *AppError {
	return &AppError{Status: status, Code: code, Message: message, Err: err}
}

func ErrNotFound(what string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: what + " not found"}
}

func ErrInvalidParams(msg string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeInvalidParams, Message: msg}
}

// AsAppError unwraps err into an AppError, mapping anything unknown to a 500.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Status: http.StatusInternalServerError, Code: CodeUnknown, Message: "internal server error", Err: err}
}

// UserMessage is the text stored on a failed material. AppErrors expose
// their message only; other errors are described as-is.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
