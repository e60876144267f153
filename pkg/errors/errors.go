package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrResolutionRead indicates that a matched entry script exists but could not be read
	ErrResolutionRead = errors.New("failed to read rackup input")

	// ErrApplicationInit indicates that the application object could not be loaded
	ErrApplicationInit = errors.New("application initialization failed")

	// ErrErrorAppConstruction indicates that the fallback error application could not be built
	ErrErrorAppConstruction = errors.New("error application could not be initialized")

	// ErrMissingContext indicates that no enclosing rack context could be located
	ErrMissingContext = errors.New("rack context not found")

	// ErrFrozen indicates a write against a frozen environment
	ErrFrozen = errors.New("environment is frozen")

	// ErrNotInitialized indicates a call into an application that was never initialized
	ErrNotInitialized = errors.New("application not initialized")

	// ErrDestroyed indicates use of an application whose runtime was torn down
	ErrDestroyed = errors.New("application destroyed")
)

// Error codes
const (
	CodeResolutionRead       = "RESOLUTION_READ"
	CodeApplicationInit      = "APPLICATION_INIT"
	CodeErrorAppConstruction = "ERROR_APP_CONSTRUCTION"
	CodeMissingContext       = "MISSING_CONTEXT"
)

var sentinels = map[string]error{
	CodeResolutionRead:       ErrResolutionRead,
	CodeApplicationInit:      ErrApplicationInit,
	CodeErrorAppConstruction: ErrErrorAppConstruction,
	CodeMissingContext:       ErrMissingContext,
}

// Error represents a structured bridge error
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel matching this error's code.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.Code]
	return ok && sentinel == target
}

// NewError creates a new bridge error
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ResolutionRead wraps a failure to read a matched script resource.
func ResolutionRead(path string, err error) *Error {
	return NewError(CodeResolutionRead, fmt.Sprintf("failed to read rackup from '%s'", path), err)
}

// ApplicationInit wraps the original failure raised while loading an application.
func ApplicationInit(err error) *Error {
	return NewError(CodeApplicationInit, "failed to initialize application", err)
}

// MissingContext reports that no rack context is available.
func MissingContext() *Error {
	return NewError(CodeMissingContext, "no rack context available from request or process fallback", nil)
}

// IsResolutionRead checks if an error is a script read failure
func IsResolutionRead(err error) bool {
	return errors.Is(err, ErrResolutionRead)
}

// IsApplicationInit checks if an error is an application initialization failure
func IsApplicationInit(err error) bool {
	return errors.Is(err, ErrApplicationInit)
}

// IsMissingContext checks if an error is a missing context failure
func IsMissingContext(err error) bool {
	return errors.Is(err, ErrMissingContext)
}
