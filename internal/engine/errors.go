package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeLoadFailure indicates the rule repository was unreachable.
	// Fatal to engine readiness: the engine stays unloaded.
	CodeLoadFailure ErrorCode = "LOAD_FAILURE"

	// CodeNotLoaded indicates evaluation was attempted before a
	// successful Load.
	CodeNotLoaded ErrorCode = "ENGINE_NOT_LOADED"

	// CodeAlreadyLoaded indicates Load was called on a loaded engine.
	// Hot reload is not supported; build a new engine instead.
	CodeAlreadyLoaded ErrorCode = "ENGINE_ALREADY_LOADED"
)

// UnknownRuleTypeMessage is the error string reported in a rule's result
// when no registered handler covers its type.
const UnknownRuleTypeMessage = "UnknownRuleType"

// Error is a coded engine error with structured fields for diagnostics.
type Error struct {
	Code    ErrorCode
	Message string
	Tenant  string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Tenant != "" {
		return fmt.Sprintf("%s: %s (tenant=%s)", e.Code, e.Message, e.Tenant)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotLoaded reports whether err is an evaluation-before-load error.
// Uses errors.As to handle wrapped errors.
func IsNotLoaded(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Code == CodeNotLoaded
}

// IsLoadFailure reports whether err is a fatal repository load failure.
func IsLoadFailure(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Code == CodeLoadFailure
}

func newLoadFailure(tenant string, err error) *Error {
	return &Error{
		Code:    CodeLoadFailure,
		Message: "rule repository unavailable",
		Tenant:  tenant,
		Err:     err,
	}
}

func newNotLoaded() *Error {
	return &Error{
		Code:    CodeNotLoaded,
		Message: "evaluation requires a successful Load",
	}
}

func newAlreadyLoaded() *Error {
	return &Error{
		Code:    CodeAlreadyLoaded,
		Message: "engine is already loaded; hot reload is not supported",
	}
}
