// Package failure defines the closed error taxonomy shared by the completion
// engine, its provider adapters, and the configuration and storage
// collaborators.
//
// Every taxonomy member embeds CoreError, which carries a stable Code, a
// human-readable message, a fully-populated Context and an optional Cause.
// The Code is the tag of the union: callers branch on it with CodeOf, or on
// the concrete kind with errors.As.
//
//	var apiErr *failure.APIError
//	if errors.As(err, &apiErr) && apiErr.IsRateLimitError() {
//	    // back off
//	}
//
// Only APIError carries a retryability verdict. Validation and parse failures
// describe malformed input and are never retried.
package failure

import (
	"errors"
	"fmt"
)

// Code is the stable machine-readable identifier of a taxonomy member.
type Code string

const (
	CodeAPI          Code = "API_ERROR"
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeParse        Code = "PARSE_ERROR"
	CodeFileNotFound Code = "FILE_NOT_FOUND"
)

// Context is the structured diagnostic bag attached to every failure.
// UserMessage is safe to show verbatim; Details is diagnostic-only.
type Context struct {
	Operation   string `json:"operation,omitempty"`
	Resource    string `json:"resource,omitempty"`
	UserMessage string `json:"userMessage,omitempty"`
	Details     any    `json:"details,omitempty"`
}

// merge overlays the non-zero fields of override on top of c.
func (c Context) merge(override Context) Context {
	if override.Operation != "" {
		c.Operation = override.Operation
	}
	if override.Resource != "" {
		c.Resource = override.Resource
	}
	if override.UserMessage != "" {
		c.UserMessage = override.UserMessage
	}
	if override.Details != nil {
		c.Details = override.Details
	}
	return c
}

// CoreError is the base record embedded by every taxonomy member.
type CoreError struct {
	Message string
	Code    Code
	Context Context
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Core returns the embedded base record.
func (e *CoreError) Core() *CoreError {
	return e
}

// UserMessage returns the end-user-safe text.
func (e *CoreError) UserMessage() string {
	return e.Context.UserMessage
}

// Failure is implemented by every taxonomy member.
type Failure interface {
	error
	Core() *CoreError
}

// newError builds a base record, falling back to generated defaults for the
// operation and user message.
func newError(message string, code Code, ctx Context, cause error) CoreError {
	if ctx.Operation == "" {
		ctx.Operation = "unknown operation"
	}
	if ctx.UserMessage == "" {
		ctx.UserMessage = "An unexpected error occurred. Please try again."
	}
	return CoreError{
		Message: message,
		Code:    code,
		Context: ctx,
		Cause:   cause,
	}
}

// As returns the base record of the first taxonomy member in err's chain.
func As(err error) (*CoreError, bool) {
	var f Failure
	if errors.As(err, &f) {
		return f.Core(), true
	}
	return nil, false
}

// CodeOf returns the taxonomy code of err, if it is a taxonomy member.
func CodeOf(err error) (Code, bool) {
	base, ok := As(err)
	if !ok {
		return "", false
	}
	return base.Code, true
}

// HasCode reports whether err carries the given taxonomy code.
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// UserFacing returns text that is safe to display for any error. Errors
// outside the taxonomy get a generic message so transport details never leak.
func UserFacing(err error) string {
	if err == nil {
		return ""
	}
	if base, ok := As(err); ok && base.Context.UserMessage != "" {
		return base.Context.UserMessage
	}
	return "An unexpected error occurred. Please try again."
}
