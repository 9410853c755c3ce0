package failure

import (
	"fmt"
	"reflect"
	"strings"
)

// ValidationDetails describes which invariant a value violated.
type ValidationDetails struct {
	Field    string              `json:"field,omitempty"`
	Value    any                 `json:"value,omitempty"`
	Expected any                 `json:"expected,omitempty"`
	Rule     string              `json:"rule,omitempty"`
	Path     string              `json:"path,omitempty"`
	Errors   []ValidationDetails `json:"errors,omitempty"`
}

// ValidationError is returned when input or configuration violates a
// declared invariant. It is never retryable.
type ValidationError struct {
	CoreError
	ValidationDetails
}

// NewValidationError creates a validation failure.
func NewValidationError(message string, details ValidationDetails, ctx Context, cause error) *ValidationError {
	base := Context{
		Operation:   "validate",
		UserMessage: validationUserMessage(details),
		Details:     details,
	}
	return &ValidationError{
		CoreError:         newError(message, CodeValidation, base.merge(ctx), cause),
		ValidationDetails: details,
	}
}

func validationUserMessage(d ValidationDetails) string {
	switch {
	case d.Field != "" && d.Expected != nil:
		if list, ok := expectedList(d.Expected); ok {
			return fmt.Sprintf("The field %q must be one of: %s", d.Field, strings.Join(list, ", "))
		}
		return fmt.Sprintf("The field %q must be %v", d.Field, d.Expected)
	case d.Field != "":
		return fmt.Sprintf("The field %q is invalid", d.Field)
	default:
		return "The provided data failed validation"
	}
}

func expectedList(v any) ([]string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]string, rv.Len())
	for i := range out {
		out[i] = fmt.Sprint(rv.Index(i).Interface())
	}
	return out, true
}

// ForRequiredField reports a missing required field.
func ForRequiredField(field string, ctx Context) *ValidationError {
	return NewValidationError(fmt.Sprintf("Required field %q is missing", field),
		ValidationDetails{Field: field, Rule: "required"},
		Context{
			Operation:   "validateRequired",
			UserMessage: fmt.Sprintf("The field %q is required", field),
		}.merge(ctx),
		nil,
	)
}

// ForInvalidEnum reports a value outside an allowed set.
func ForInvalidEnum(field string, value any, allowed []string, ctx Context) *ValidationError {
	return NewValidationError(fmt.Sprintf("Invalid value \"%v\" for field %q", value, field),
		ValidationDetails{Field: field, Value: value, Expected: allowed, Rule: "enum"},
		Context{Operation: "validateEnum"}.merge(ctx),
		nil,
	)
}

// ForInvalidType reports a value of the wrong type.
func ForInvalidType(field string, value any, expectedType string, ctx Context) *ValidationError {
	actual := "null"
	if value != nil {
		actual = reflect.TypeOf(value).String()
	}
	return NewValidationError(
		fmt.Sprintf("Invalid type for field %q: expected %s, got %s", field, expectedType, actual),
		ValidationDetails{Field: field, Value: value, Expected: expectedType, Rule: "type"},
		Context{
			Operation:   "validateType",
			UserMessage: fmt.Sprintf("The field %q must be a %s", field, expectedType),
		}.merge(ctx),
		nil,
	)
}

// ForRange reports a value outside its declared range. expected is the
// human-readable range, for example "number between 0 and 2".
func ForRange(field string, value any, expected string, ctx Context) *ValidationError {
	return NewValidationError(
		fmt.Sprintf("%s must be a %s (got %v)", field, expected, value),
		ValidationDetails{Field: field, Value: value, Expected: expected, Rule: "range"},
		Context{Operation: "validateRange"}.merge(ctx),
		nil,
	)
}

// ForSchema aggregates sub-errors from validating data against a named schema.
func ForSchema(schema string, errs []ValidationDetails, ctx Context) *ValidationError {
	plural := "s"
	if len(errs) == 1 {
		plural = ""
	}
	return NewValidationError(
		fmt.Sprintf("Schema validation failed for %s (%d error%s)", schema, len(errs), plural),
		ValidationDetails{Rule: "schema", Errors: errs},
		Context{
			Operation:   "validateSchema",
			UserMessage: fmt.Sprintf("The data does not match the expected %s format", schema),
		}.merge(ctx),
		nil,
	)
}

// ForTask reports an invalid field on a task record.
func ForTask(taskID, field string, value any, expectedType string, ctx Context) *ValidationError {
	return NewValidationError(fmt.Sprintf("Task %s validation failed: invalid %s", taskID, field),
		ValidationDetails{Field: field, Value: value, Expected: expectedType, Rule: "task-field"},
		Context{
			Resource:    "task:" + taskID,
			Operation:   "validateTask",
			UserMessage: fmt.Sprintf("Task %s has an invalid %s", taskID, field),
		}.merge(ctx),
		nil,
	)
}

// ForTaskStatus reports a task status outside the allowed set.
func ForTaskStatus(taskID, status string, allowed []string, ctx Context) *ValidationError {
	return NewValidationError(fmt.Sprintf("Invalid status %q for task %s", status, taskID),
		ValidationDetails{Field: "status", Value: status, Expected: allowed, Rule: "task-status"},
		Context{
			Resource:  "task:" + taskID,
			Operation: "validateTaskStatus",
			UserMessage: fmt.Sprintf("Task status %q is not valid. Allowed statuses are: %s",
				status, strings.Join(allowed, ", ")),
		}.merge(ctx),
		nil,
	)
}

// ForTaskDependency reports an invalid dependency edge.
func ForTaskDependency(taskID, dependencyID, reason string, ctx Context) *ValidationError {
	return NewValidationError(
		fmt.Sprintf("Invalid dependency for task %s: %s (%s)", taskID, dependencyID, reason),
		ValidationDetails{Field: "dependencies", Value: dependencyID, Rule: "dependency"},
		Context{
			Resource:    "task:" + taskID,
			Operation:   "validateTaskDependencies",
			UserMessage: fmt.Sprintf("Task %s has an invalid dependency: %s", taskID, reason),
		}.merge(ctx),
		nil,
	)
}
