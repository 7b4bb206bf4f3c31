package dom

import (
	"errors"
	"fmt"
)

// Error names used by the bridge.
const (
	ArgumentError              = "ArgumentError"
	ConstraintError            = "ConstraintError"
	CapabilityUnavailableError = "CapabilityUnavailableError"
	NativeOperationError       = "NativeOperationError"
	InvalidStateError          = "InvalidStateError"
	HierarchyRequestError      = "HierarchyRequestError"
	NotFoundError              = "NotFoundError"
)

// DOMError represents a DOM exception with a name and message.
type DOMError struct {
	Name    string
	Message string
}

func (e *DOMError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// IsDOMError reports whether err wraps a DOMError with the given name.
func IsDOMError(err error, name string) bool {
	var de *DOMError
	return errors.As(err, &de) && de.Name == name
}

// ErrArgument creates an ArgumentError.
func ErrArgument(message string) *DOMError {
	return &DOMError{Name: ArgumentError, Message: message}
}

// ErrConstraint creates a ConstraintError.
func ErrConstraint(message string) *DOMError {
	return &DOMError{Name: ConstraintError, Message: message}
}

// ErrCapabilityUnavailable creates a CapabilityUnavailableError.
func ErrCapabilityUnavailable(message string) *DOMError {
	return &DOMError{Name: CapabilityUnavailableError, Message: message}
}

// ErrNativeOperation creates a NativeOperationError.
func ErrNativeOperation(message string) *DOMError {
	return &DOMError{Name: NativeOperationError, Message: message}
}

// ErrInvalidState creates an InvalidStateError.
func ErrInvalidState(message string) *DOMError {
	return &DOMError{Name: InvalidStateError, Message: message}
}

// ErrHierarchyRequest creates a HierarchyRequestError.
func ErrHierarchyRequest(message string) *DOMError {
	return &DOMError{Name: HierarchyRequestError, Message: message}
}

// ErrNotFound creates a NotFoundError.
func ErrNotFound(message string) *DOMError {
	return &DOMError{Name: NotFoundError, Message: message}
}
