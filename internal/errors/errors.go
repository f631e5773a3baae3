package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
)

// ErrorType represents different types of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeStorage    ErrorType = "local_storage"
	ErrorTypeExternal   ErrorType = "external_api"
	ErrorTypeConfig     ErrorType = "configuration"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError represents an application error with additional context
type AppError struct {
	Type     ErrorType
	Message  string
	Code     string
	Internal error
	Context  map[string]interface{}
	Source   string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the internal error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is matches another AppError by type and code, anything else by the
// wrapped error.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return errors.Is(e.Internal, target)
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// LogFields returns structured logging fields
func (e *AppError) LogFields() []interface{} {
	fields := []interface{}{
		"error_type", e.Type,
		"error_code", e.Code,
		"error_message", e.Message,
		"source", e.Source,
	}

	if e.Internal != nil {
		fields = append(fields, "internal_error", e.Internal.Error())
	}

	for k, v := range e.Context {
		fields = append(fields, k, v)
	}

	return fields
}

func caller(skip int) string {
	_, file, line, _ := runtime.Caller(skip + 1)
	return fmt.Sprintf("%s:%d", file, line)
}

// New creates a new AppError
func New(errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Source:  caller(1),
		Context: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error into AppError
func Wrap(err error, errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:     errorType,
		Code:     code,
		Message:  message,
		Internal: err,
		Source:   caller(1),
		Context:  make(map[string]interface{}),
	}
}

// TypeOf returns the type of the first AppError in err's chain, or
// ErrorTypeInternal.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// Handler provides error handling strategies
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new error handler
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// Handle processes an error according to its type
func (h *Handler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		h.handleAppError(ctx, appErr)
	} else {
		h.logger.ErrorContext(ctx, "Unhandled error", "error", err.Error())
	}
}

func (h *Handler) handleAppError(ctx context.Context, err *AppError) {
	switch err.Type {
	case ErrorTypeValidation:
		h.logger.WarnContext(ctx, "Validation error", err.LogFields()...)
	case ErrorTypeNotFound:
		h.logger.InfoContext(ctx, "Not found", err.LogFields()...)
	case ErrorTypeDatabase, ErrorTypeStorage, ErrorTypeExternal, ErrorTypeConfig, ErrorTypeInternal:
		h.logger.ErrorContext(ctx, "Critical error", err.LogFields()...)
	default:
		h.logger.ErrorContext(ctx, "Unknown error type", err.LogFields()...)
	}
}

// LogAndReturn logs an error and returns it
func (h *Handler) LogAndReturn(ctx context.Context, err error) error {
	h.Handle(ctx, err)
	return err
}

// Predefined errors, compared with errors.Is by type and code.
var (
	ErrInvalidCarbRatio = New(ErrorTypeValidation, "INVALID_CARB_RATIO", "Carb ratio must be a positive number")
	ErrInvalidTable     = New(ErrorTypeValidation, "INVALID_TABLE", "Dose table is invalid")
	ErrEntryNotFound    = New(ErrorTypeNotFound, "ENTRY_NOT_FOUND", "History entry not found")
	ErrUserNotFound     = New(ErrorTypeNotFound, "USER_NOT_FOUND", "User not found")
	ErrDatabaseError    = New(ErrorTypeDatabase, "DB_ERROR", "Database operation failed")
	ErrStorageError     = New(ErrorTypeStorage, "STORAGE_ERROR", "Local storage operation failed")
	ErrWrongPassphrase  = New(ErrorTypeStorage, "WRONG_PASSPHRASE", "Local storage passphrase does not match")
	ErrExternalAPI      = New(ErrorTypeExternal, "EXTERNAL_API", "External API error")
	ErrEstimatorOff     = New(ErrorTypeConfig, "ESTIMATOR_DISABLED", "Food estimation is not configured")
)

// Convenience functions for common errors
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, "VALIDATION", message)
}

func NewInvalidTableError(err error) *AppError {
	return Wrap(err, ErrorTypeValidation, "INVALID_TABLE", "Dose table is invalid")
}

func NewDatabaseError(err error) *AppError {
	return Wrap(err, ErrorTypeDatabase, "DB_ERROR", "Database operation failed")
}

func NewStorageError(err error) *AppError {
	return Wrap(err, ErrorTypeStorage, "STORAGE_ERROR", "Local storage operation failed")
}

// NewWrongPassphraseError reports a local store opened with the wrong
// passphrase.
func NewWrongPassphraseError(err error) *AppError {
	return Wrap(err, ErrorTypeStorage, "WRONG_PASSPHRASE", "Local storage passphrase does not match")
}

func NewEntryNotFoundError(entryID string) *AppError {
	return New(ErrorTypeNotFound, "ENTRY_NOT_FOUND", "History entry not found").
		WithContext("entry_id", entryID)
}

func NewUserNotFoundError(telegramID int64) *AppError {
	return New(ErrorTypeNotFound, "USER_NOT_FOUND", "User not found").
		WithContext("telegram_id", telegramID)
}

func NewExternalAPIError(err error, api string) *AppError {
	return Wrap(err, ErrorTypeExternal, "EXTERNAL_API", fmt.Sprintf("%s API error", api)).
		WithContext("api", api)
}

func NewConfigError(message string) *AppError {
	return New(ErrorTypeConfig, "CONFIG", message)
}

func NewInternalError(err error) *AppError {
	return Wrap(err, ErrorTypeInternal, "INTERNAL", "Internal server error")
}
