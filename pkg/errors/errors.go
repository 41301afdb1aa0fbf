package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Standard error types
var (
	ErrNotFound          = errors.New("resource not found")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("resource conflict")
	ErrInternal          = errors.New("internal server error")
	ErrValidation        = errors.New("validation error")
	ErrInvalidReference  = errors.New("invalid reference")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrTransactionFailed = errors.New("transaction failed")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// InvalidReference reports a write that points at a row that does not exist.
// Ledger operations use it for missing items, units, suppliers and menu items.
func InvalidReference(resource string, id int64) *AppError {
	e := &AppError{
		Err:        ErrInvalidReference,
		Code:       "INVALID_REFERENCE",
		Message:    fmt.Sprintf("%s %d does not exist", resource, id),
		StatusCode: http.StatusBadRequest,
		Details:    map[string]string{"resource": resource},
	}
	if id > 0 {
		e.Details["id"] = strconv.FormatInt(id, 10)
	} else {
		e.Message = fmt.Sprintf("referenced %s does not exist", resource)
	}
	return e
}

// InsufficientStock reports a deduction larger than the available balance.
// Quantities are passed pre-formatted so this package stays free of decimal types.
func InsufficientStock(itemID int64, itemName, requested, available string) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock for %s: requested %s, available %s", itemName, requested, available),
		StatusCode: http.StatusBadRequest,
		Details: map[string]string{
			"itemId":    strconv.FormatInt(itemID, 10),
			"itemName":  itemName,
			"requested": requested,
			"available": available,
		},
	}
}

// TransactionFailed hides the underlying store error from the caller.
func TransactionFailed(err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %v", ErrTransactionFailed, err),
		Code:       "TRANSACTION_FAILED",
		Message:    "the operation could not be completed and was rolled back",
		StatusCode: http.StatusInternalServerError,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}

// AsAppError returns the AppError in err's chain, if any.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
