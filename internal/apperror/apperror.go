package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("Validation Error")
	ErrForbidden   = errors.New("forbidden")
	ErrRateLimited = errors.New("rate limited")

	// The two ways an item can be rejected. Both are validation failures,
	// so errors.Is(err, ErrValidation) holds for either of them.
	ErrEmptyText     = fmt.Errorf("%w: empty text", ErrValidation)
	ErrDuplicateItem = fmt.Errorf("%w: duplicate item", ErrValidation)
)

// Messages shown to the user for rejected items.
const (
	EmptyTextMessage     = "You can't have an empty list item"
	DuplicateItemMessage = "You've already got this in your list"
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// EmptyText reports blank item text on the given field.
func EmptyText(field string) *AppError {
	return &AppError{
		Err:     ErrEmptyText,
		Message: EmptyTextMessage,
		Field:   field,
	}
}

// DuplicateItem reports that text is already present in the target list.
func DuplicateItem(field string) *AppError {
	return &AppError{
		Err:     ErrDuplicateItem,
		Message: DuplicateItemMessage,
		Field:   field,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// RateLimited is returned when a caller asks for login links faster than allowed.
// HTTP handlers map this to 429 Too Many Requests.
func RateLimited(message string) *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: message,
	}
}
