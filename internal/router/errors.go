package router

import (
	"context"
	"errors"
	"fmt"
)

// NavigationError describes a navigation that could not load its target.
type NavigationError struct {
	// Code identifies the error category.
	Code NavigationErrorCode

	// Slug is the route key being loaded.
	Slug string

	// Path is the requested path.
	Path string

	// Err is the underlying cause, if any.
	Err error
}

// NavigationErrorCode categorizes navigation errors.
type NavigationErrorCode string

const (
	// ErrCodeViewNotFound indicates no view factory is registered for the route.
	ErrCodeViewNotFound NavigationErrorCode = "VIEW_NOT_FOUND"

	// ErrCodeViewFailed indicates the view factory returned an error.
	ErrCodeViewFailed NavigationErrorCode = "VIEW_FAILED"

	// ErrCodeDataFetchFailed indicates the route's data loader failed.
	ErrCodeDataFetchFailed NavigationErrorCode = "DATA_FETCH_FAILED"

	// ErrCodeGuardFailed indicates the route guard returned an error.
	ErrCodeGuardFailed NavigationErrorCode = "GUARD_FAILED"

	// ErrCodePanic indicates the not-found view could not be shown either.
	// The router stays in the Panicked phase afterwards.
	ErrCodePanic NavigationErrorCode = "PANIC"
)

// Error implements the error interface.
func (e *NavigationError) Error() string {
	msg := fmt.Sprintf("%s: route %q", e.Code, e.Slug)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *NavigationError) Unwrap() error {
	return e.Err
}

// ErrViewNotFound is returned by Registry.Build for unregistered view paths.
var ErrViewNotFound = errors.New("view not found")

// IsCancelled reports whether err is a superseded or cancelled navigation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsNotFound reports whether err is a missing-view navigation error.
func IsNotFound(err error) bool {
	var ne *NavigationError
	if errors.As(err, &ne) {
		return ne.Code == ErrCodeViewNotFound
	}
	return errors.Is(err, ErrViewNotFound)
}

// IsPanic reports whether err is the terminal router panic.
func IsPanic(err error) bool {
	var ne *NavigationError
	return errors.As(err, &ne) && ne.Code == ErrCodePanic
}
