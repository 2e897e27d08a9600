package core

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes bridge errors.
type ErrorCode string

const (
	// CodeDuplicateHandle indicates a second wrapper was registered for a live handle.
	CodeDuplicateHandle ErrorCode = "DUPLICATE_HANDLE"

	// CodeHandleNotFound indicates a lookup or unregister for an unknown handle.
	CodeHandleNotFound ErrorCode = "HANDLE_NOT_FOUND"

	// CodeLifecycleOrderViolation indicates a lifecycle phase called out of
	// sequence, or for a handle the registry does not know.
	CodeLifecycleOrderViolation ErrorCode = "LIFECYCLE_ORDER_VIOLATION"

	// CodeSchedulerNodeNotFound indicates a cancel that referenced a node
	// which is not active (already completed, already cancelled, or never run).
	CodeSchedulerNodeNotFound ErrorCode = "SCHEDULER_NODE_NOT_FOUND"

	// CodeInvalidTimeStep indicates a negative or non-finite frame time step.
	CodeInvalidTimeStep ErrorCode = "INVALID_TIME_STEP"

	// CodeQueueClosed indicates work posted to a queue after its owner stopped.
	CodeQueueClosed ErrorCode = "QUEUE_CLOSED"

	// CodeInvalidHandle indicates a nil wrapper or the zero handle was
	// offered for registration.
	CodeInvalidHandle ErrorCode = "INVALID_HANDLE"
)

// BridgeError is the error type returned by every bridge component.
//
// Registry and lifecycle errors are structural bugs in the native/managed
// handshake and must not be swallowed (see IsFatal). Scheduler, queue and
// time-step errors are recoverable and may be ignored by the caller.
type BridgeError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Handle identifies the native object involved, if any.
	Handle Handle

	// Phase names the lifecycle phase involved (lifecycle errors only).
	Phase string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is matching. Two BridgeErrors match when their codes match.
var (
	ErrDuplicateHandle         = &BridgeError{Code: CodeDuplicateHandle, Message: "handle already registered"}
	ErrHandleNotFound          = &BridgeError{Code: CodeHandleNotFound, Message: "handle not registered"}
	ErrLifecycleOrderViolation = &BridgeError{Code: CodeLifecycleOrderViolation, Message: "lifecycle phase out of order"}
	ErrSchedulerNodeNotFound   = &BridgeError{Code: CodeSchedulerNodeNotFound, Message: "scheduler node not active"}
	ErrInvalidTimeStep         = &BridgeError{Code: CodeInvalidTimeStep, Message: "invalid time step"}
	ErrQueueClosed             = &BridgeError{Code: CodeQueueClosed, Message: "queue closed"}
	ErrInvalidHandle           = &BridgeError{Code: CodeInvalidHandle, Message: "invalid handle"}
)

// Error implements the error interface.
func (e *BridgeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Handle.Valid() && e.Phase != "":
		msg = fmt.Sprintf("%s (handle=%s, phase=%s)", msg, e.Handle, e.Phase)
	case e.Handle.Valid():
		msg = fmt.Sprintf("%s (handle=%s)", msg, e.Handle)
	case e.Phase != "":
		msg = fmt.Sprintf("%s (phase=%s)", msg, e.Phase)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *BridgeError) Unwrap() error {
	return e.Err
}

// Is matches any BridgeError with the same code.
func (e *BridgeError) Is(target error) bool {
	t, ok := target.(*BridgeError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDuplicateHandleError creates an error for a second registration of h.
func NewDuplicateHandleError(h Handle) *BridgeError {
	return &BridgeError{
		Code:    CodeDuplicateHandle,
		Message: "handle already has a live wrapper",
		Handle:  h,
	}
}

// NewHandleNotFoundError creates an error for a lookup miss on h.
func NewHandleNotFoundError(h Handle) *BridgeError {
	return &BridgeError{
		Code:    CodeHandleNotFound,
		Message: "no wrapper registered for handle",
		Handle:  h,
	}
}

// NewLifecycleError creates a lifecycle order violation for phase on h.
// cause may be nil.
func NewLifecycleError(h Handle, phase, message string, cause error) *BridgeError {
	return &BridgeError{
		Code:    CodeLifecycleOrderViolation,
		Message: message,
		Handle:  h,
		Phase:   phase,
		Err:     cause,
	}
}

// NewNodeNotFoundError creates an error for a cancel of an inactive node.
func NewNodeNotFoundError(id uint64) *BridgeError {
	return &BridgeError{
		Code:    CodeSchedulerNodeNotFound,
		Message: "action is not active",
		Details: map[string]string{
			"id": fmt.Sprintf("%d", id),
		},
	}
}

// NewInvalidTimeStepError creates an error for a rejected frame time step.
func NewInvalidTimeStepError(dt float64) *BridgeError {
	return &BridgeError{
		Code:    CodeInvalidTimeStep,
		Message: fmt.Sprintf("time step must be finite and non-negative, got %v", dt),
	}
}

// IsDuplicateHandle reports whether err is (or wraps) a DuplicateHandle error.
func IsDuplicateHandle(err error) bool {
	return errors.Is(err, ErrDuplicateHandle)
}

// IsHandleNotFound reports whether err is (or wraps) a HandleNotFound error.
func IsHandleNotFound(err error) bool {
	return errors.Is(err, ErrHandleNotFound)
}

// IsLifecycleOrderViolation reports whether err is (or wraps) a lifecycle violation.
func IsLifecycleOrderViolation(err error) bool {
	return errors.Is(err, ErrLifecycleOrderViolation)
}

// IsSchedulerNodeNotFound reports whether err is (or wraps) a SchedulerNodeNotFound error.
func IsSchedulerNodeNotFound(err error) bool {
	return errors.Is(err, ErrSchedulerNodeNotFound)
}

// IsInvalidHandle reports whether err is (or wraps) an InvalidHandle error.
func IsInvalidHandle(err error) bool {
	return errors.Is(err, ErrInvalidHandle)
}

// IsFatal reports whether err is a structural handshake violation
// (bad or duplicate registration, lifecycle order) that must abort the caller.
func IsFatal(err error) bool {
	var be *BridgeError
	if !errors.As(err, &be) {
		return false
	}
	switch be.Code {
	case CodeDuplicateHandle, CodeInvalidHandle, CodeLifecycleOrderViolation:
		return true
	default:
		return false
	}
}

// CodeOf returns the code of the outermost BridgeError in err's chain.
// Returns "" for nil and "ERROR" for errors outside the taxonomy.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Code
	}
	return "ERROR"
}
