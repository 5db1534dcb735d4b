package engine

import (
	"errors"
	"fmt"
)

// Code categorizes operation errors.
type Code string

const (
	// CodeAlreadyExists indicates duplicate creation of a type or project.
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// CodeUnknownType indicates an unregistered unit type.
	CodeUnknownType Code = "UNKNOWN_TYPE"

	// CodeUnknownUnit indicates a unit id that does not resolve.
	CodeUnknownUnit Code = "UNKNOWN_UNIT"

	// CodeUnknownFeature indicates a feature key not declared for the
	// unit's type.
	CodeUnknownFeature Code = "UNKNOWN_FEATURE"

	// CodeNotFound indicates an absent or inactive unit on the read path.
	CodeNotFound Code = "NOT_FOUND"

	// CodeInvalidKind indicates a value kind outside int/bool/str/ref.
	CodeInvalidKind Code = "INVALID_KIND"

	// CodeInvalidMetaField indicates a disallowed declaration under the
	// meta tier.
	CodeInvalidMetaField Code = "INVALID_META_FIELD"

	// CodeTypeMismatch indicates a value whose shape does not match the
	// declared kind.
	CodeTypeMismatch Code = "TYPE_MISMATCH"

	// CodeValidation indicates malformed input not covered by a more
	// specific code.
	CodeValidation Code = "VALIDATION"

	// CodeCycleDetected indicates a unit reachable from itself during
	// materialization.
	CodeCycleDetected Code = "CYCLE_DETECTED"

	// CodeStorage indicates an underlying persistence failure. The
	// operation must not be assumed to have partially committed.
	CodeStorage Code = "STORAGE"
)

// Class is the coarse-grained status class of an error, the only part
// of the taxonomy the transport layer needs.
type Class int

const (
	ClassValidation Class = iota
	ClassNotFound
	ClassConflict
	ClassStorage
)

// OpError is a structured operation error with a machine-readable code.
type OpError struct {
	Code    Code
	Message string
	Err     error // wrapped cause, if any
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *OpError) Unwrap() error {
	return e.Err
}

// Class maps the code to its status class.
func (e *OpError) Class() Class {
	switch e.Code {
	case CodeAlreadyExists:
		return ClassConflict
	case CodeUnknownType, CodeUnknownUnit, CodeUnknownFeature, CodeNotFound:
		return ClassNotFound
	case CodeInvalidKind, CodeInvalidMetaField, CodeTypeMismatch, CodeValidation:
		return ClassValidation
	}
	return ClassStorage
}

// Errorf creates an OpError with a formatted message.
func Errorf(code Code, format string, args ...any) *OpError {
	return &OpError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// storageErr wraps an underlying store failure.
func storageErr(err error) *OpError {
	return &OpError{Code: CodeStorage, Message: "storage failure", Err: err}
}

// ErrClass extracts the status class from any error. Non-OpError values
// classify as storage failures.
func ErrClass(err error) Class {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Class()
	}
	return ClassStorage
}

// IsNotFound reports whether err is a not-found class error.
func IsNotFound(err error) bool {
	return hasClass(err, ClassNotFound)
}

// IsValidation reports whether err is a validation class error.
func IsValidation(err error) bool {
	return hasClass(err, ClassValidation)
}

// IsConflict reports whether err is a conflict class error.
func IsConflict(err error) bool {
	return hasClass(err, ClassConflict)
}

// IsCycle reports whether err is a cycle detection error.
func IsCycle(err error) bool {
	var oe *OpError
	return errors.As(err, &oe) && oe.Code == CodeCycleDetected
}

func hasClass(err error, class Class) bool {
	var oe *OpError
	return errors.As(err, &oe) && oe.Class() == class
}
