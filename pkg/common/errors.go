// Package common provides shared error types and diagnostic
// utilities used across the permission tree packages.
//
// # Error Handling
//
// The [PermissionError] type provides structured error information
// for access-decision failures: a machine-readable [ErrorKind] and a
// human-readable message that includes the offending value, for
// diagnosis.
package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a [PermissionError].
type ErrorKind int

const (
	// MissingArgument means a required parameter was omitted.
	MissingArgument ErrorKind = iota + 1
	// InvalidArgumentType means a parameter has the wrong structural
	// kind (e.g. a tree root that is neither Bool, Str, List, nor Map).
	InvalidArgumentType
	// InvalidArgumentValue means a parameter is structurally correct
	// but semantically illegal (empty or reserved type name,
	// misplaced NO_BYPASS, a boolean leaf under an active type, a
	// nested type, a malformed NO_BYPASS payload).
	InvalidArgumentValue
	// PermissionTypeAlreadyExists means Registry.Add was called with
	// a name that is already registered.
	PermissionTypeAlreadyExists
	// PermissionTypeNotRegistered means a lookup (Remove, Get,
	// Replace, or leaf evaluation) named a type that isn't registered.
	PermissionTypeNotRegistered
	// InvalidValueForLogicGate means a gate's value has the wrong
	// shape or too few elements for its arity floor.
	InvalidValueForLogicGate
	// InvalidCallbackReturnType means a registered callback (a
	// permission type or the bypass predicate) returned a value that
	// isn't a boolean.
	InvalidCallbackReturnType
)

// String returns the kind's name, matching spec.md §7's taxonomy.
func (k ErrorKind) String() string {
	switch k {
	case MissingArgument:
		return "MissingArgument"
	case InvalidArgumentType:
		return "InvalidArgumentType"
	case InvalidArgumentValue:
		return "InvalidArgumentValue"
	case PermissionTypeAlreadyExists:
		return "PermissionTypeAlreadyExists"
	case PermissionTypeNotRegistered:
		return "PermissionTypeNotRegistered"
	case InvalidValueForLogicGate:
		return "InvalidValueForLogicGate"
	case InvalidCallbackReturnType:
		return "InvalidCallbackReturnType"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// PermissionError is the error type raised by every package in this
// module for a well-typed, named failure condition. It is returned
// instead of a bare error so callers can branch on Kind with
// errors.As, while the message still carries a human-readable,
// serialized rendering of the offending Value for diagnosis.
type PermissionError struct {
	Kind    ErrorKind
	Message string
	// Value is the offending value, included in Error()'s output.
	// It may be nil when no single value is at fault (e.g. a missing
	// argument).
	Value interface{}
}

// Error implements the error interface.
func (e *PermissionError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (value=%s)", e.Kind, e.Message, Marshal(e.Value))
}

// New creates a [PermissionError] of the given kind, wrapped with a
// stack trace via [github.com/pkg/errors] so the origin of an error
// raised deep in a recursive tree walk is still recoverable.
func New(kind ErrorKind, msg string, value interface{}) error {
	return errors.WithStack(&PermissionError{Kind: kind, Message: msg, Value: value})
}

// Newf is New with a formatted message.
func Newf(kind ErrorKind, value interface{}, format string, args ...interface{}) error {
	return New(kind, fmt.Sprintf(format, args...), value)
}

// As reports whether err (or any error it wraps) is a *PermissionError
// of the given kind, mirroring the standard errors.As idiom for this
// module's one error type.
func As(err error) (*PermissionError, bool) {
	var pe *PermissionError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Is reports whether err is a *PermissionError of the given kind.
func Is(err error, kind ErrorKind) bool {
	pe, ok := As(err)
	return ok && pe.Kind == kind
}
