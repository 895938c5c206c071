// Package dberror defines the structured error type returned by every layer
// of the engine. Errors carry a stable code, a category that tells callers how
// to react, and the operation and component where they were raised.
package dberror

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCategory classifies errors by their nature and appropriate handling strategy.
type ErrorCategory int

const (
	// ErrCategoryUser represents errors caused by the caller's input, such as
	// inserting a duplicate key or deleting a row that does not exist.
	ErrCategoryUser ErrorCategory = iota

	// ErrCategoryTransient represents errors that may succeed later, such as
	// a buffer pool with every page pinned.
	ErrCategoryTransient

	// ErrCategorySystem represents I/O failures and unusable files.
	ErrCategorySystem

	// ErrCategoryData represents on-disk or in-memory structure violations.
	// These are never repaired automatically.
	ErrCategoryData

	// ErrCategoryConcurrency represents lock conflicts and deadlocks.
	ErrCategoryConcurrency

	// ErrCategoryConfig represents invalid engine configuration detected at open.
	ErrCategoryConfig
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryUser:
		return "user"
	case ErrCategoryTransient:
		return "transient"
	case ErrCategorySystem:
		return "system"
	case ErrCategoryData:
		return "data"
	case ErrCategoryConcurrency:
		return "concurrency"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error codes.
const (
	CodePageSizeTooSmall   = "PAGE_SIZE_TOO_SMALL"
	CodeInvalidSchema      = "INVALID_SCHEMA"
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeStructureViolation = "STRUCTURE_VIOLATION"
	CodeCorruptPage        = "CORRUPT_PAGE"
	CodeShortRead          = "SHORT_READ"
	CodeIOFailure          = "IO_FAILURE"
	CodeFileLocked         = "FILE_LOCKED"
	CodeFileClosed         = "FILE_CLOSED"
	CodeBufferPoolFull     = "BUFFER_POOL_FULL"
	CodeDeadlock           = "DEADLOCK"
	CodeLockTimeout        = "LOCK_TIMEOUT"
	CodeDuplicateKey       = "DUPLICATE_KEY"
	CodeRowNotFound        = "ROW_NOT_FOUND"
	CodeTypeMismatch       = "TYPE_MISMATCH"
)

// DBError represents a structured database error with rich context information.
type DBError struct {
	// Code is a unique identifier for this error type (e.g., "DEADLOCK", "SHORT_READ").
	Code string

	// Category classifies the error for appropriate handling strategy.
	Category ErrorCategory

	// Message is a human-readable description of what went wrong.
	Message string

	// Detail provides additional context about the specific error instance,
	// typically the page or key involved.
	Detail string

	// Operation identifies the operation being performed, e.g. "InsertRow".
	Operation string

	// Component identifies where the error originated, e.g. "BufferPool".
	Component string

	// Cause is the underlying error that triggered this database error.
	Cause error

	// Stack contains the call stack where this error was created.
	Stack []uintptr
}

// New creates a new DBError with the specified code, category, and message.
func New(category ErrorCategory, code, message string) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Newf is New with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...any) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  fmt.Sprintf(format, args...),
		Stack:    captureStack(),
	}
}

// Wrap wraps an existing error with database-specific context information.
// If the error is already a DBError, it enriches the existing error with
// operation and component context (only if not already set).
func Wrap(err error, code, operation, component string) *DBError {
	if err == nil {
		return nil
	}

	var dbErr *DBError
	if errors.As(err, &dbErr) {
		if dbErr.Operation == "" {
			dbErr.Operation = operation
		}
		if dbErr.Component == "" {
			dbErr.Component = component
		}
		return dbErr
	}

	return &DBError{
		Code:      code,
		Category:  ErrCategorySystem,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// WithDetail sets Detail and returns the receiver for chaining.
func (e *DBError) WithDetail(format string, args ...any) *DBError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithOperation sets Operation and Component and returns the receiver.
func (e *DBError) WithOperation(operation, component string) *DBError {
	e.Operation = operation
	e.Component = component
	return e
}

// WithCause attaches an underlying error.
func (e *DBError) WithCause(cause error) *DBError {
	e.Cause = cause
	return e
}

func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// Error implements the standard Go error interface.
//
// The format follows the pattern:
// [ERROR_CODE] Message: Detail (operation: Operation, component: Component) caused by: underlying error
func (e *DBError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)

	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}

	if e.Operation != "" {
		fmt.Fprintf(&b, " (operation: %s", e.Operation)
		if e.Component != "" {
			fmt.Fprintf(&b, ", component: %s", e.Component)
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		fmt.Fprintf(&b, " caused by: %v", e.Cause)
	}

	return b.String()
}

// Unwrap returns the underlying cause error.
func (e *DBError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DBError with the same code, so sentinel
// values can be matched with errors.Is.
func (e *DBError) Is(target error) bool {
	t, ok := target.(*DBError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// FormatStack returns a human-readable stack trace for debugging purposes.
func (e *DBError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)

	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "  %s\n    %s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}

	return b.String()
}

// HasCode reports whether any error in err's chain is a DBError with code.
func HasCode(err error, code string) bool {
	var dbErr *DBError
	for err != nil {
		if errors.As(err, &dbErr) {
			if dbErr.Code == code {
				return true
			}
			err = dbErr.Cause
			continue
		}
		return false
	}
	return false
}

// CategoryOf returns the category of the first DBError in err's chain.
func CategoryOf(err error) (ErrorCategory, bool) {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Category, true
	}
	return 0, false
}
