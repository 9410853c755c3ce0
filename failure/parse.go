package failure

import (
	"fmt"
	"strings"
)

// ParseError is returned when data cannot be decoded into the expected shape.
type ParseError struct {
	CoreError
	Source string
	Format string
}

// NewParseError creates a parse failure for source. format may be empty.
func NewParseError(message, source, format string, ctx Context, cause error) *ParseError {
	userMessage := "Failed to parse " + source
	if format != "" {
		userMessage += " as " + strings.ToUpper(format)
	}
	base := Context{
		Operation:   "parse",
		Resource:    source,
		UserMessage: userMessage,
	}
	return &ParseError{
		CoreError: newError(message, CodeParse, base.merge(ctx), cause),
		Source:    source,
		Format:    format,
	}
}

// Position locates a syntax error inside a document.
type Position struct {
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

// ForJSON reports invalid JSON syntax.
func ForJSON(source string, pos *Position, cause error) *ParseError {
	return NewParseError(fmt.Sprintf("Invalid JSON syntax in %s", source), source, "json",
		Context{
			Operation:   "parseJSON",
			UserMessage: fmt.Sprintf("The JSON file %q contains syntax errors. Please check the file format.", source),
			Details:     positionDetails(pos),
		},
		cause,
	)
}

// ForYAML reports invalid YAML syntax.
func ForYAML(source string, pos *Position, cause error) *ParseError {
	return NewParseError(fmt.Sprintf("Invalid YAML syntax in %s", source), source, "yaml",
		Context{
			Operation:   "parseYAML",
			UserMessage: fmt.Sprintf("The YAML file %q contains syntax errors. Please check the file format.", source),
			Details:     positionDetails(pos),
		},
		cause,
	)
}

// TaskLocation points at the task record that failed to decode.
type TaskLocation struct {
	TaskID string `json:"taskId,omitempty"`
	Field  string `json:"field,omitempty"`
}

// ForTaskData reports a malformed task data structure.
func ForTaskData(source string, loc *TaskLocation, cause error) *ParseError {
	var details any
	if loc != nil {
		details = *loc
	}
	return NewParseError(fmt.Sprintf("Invalid task data structure in %s", source), source, "task-data",
		Context{
			Operation:   "parseTaskData",
			UserMessage: fmt.Sprintf("The task data in %q is not properly formatted. Please check the structure.", source),
			Details:     details,
		},
		cause,
	)
}

// DocumentLocation points at a section of a requirements document.
type DocumentLocation struct {
	Section string `json:"section,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ForPRD reports a product requirements document that could not be parsed.
func ForPRD(source string, loc *DocumentLocation, cause error) *ParseError {
	var details any
	if loc != nil {
		details = *loc
	}
	return NewParseError(fmt.Sprintf("Failed to parse PRD content in %s", source), source, "prd",
		Context{
			Operation:   "parsePRD",
			UserMessage: fmt.Sprintf("The PRD document %q could not be parsed. Please check the document format.", source),
			Details:     details,
		},
		cause,
	)
}

// ForFormat reports a parse failure for an arbitrary data format.
func ForFormat(source, format string, details any, cause error) *ParseError {
	upper := strings.ToUpper(format)
	return NewParseError(fmt.Sprintf("Failed to parse %s data in %s", upper, source), source, format,
		Context{
			Operation:   "parse" + upper,
			UserMessage: fmt.Sprintf("The %s data in %q could not be parsed. Please check the format.", upper, source),
			Details:     details,
		},
		cause,
	)
}

func positionDetails(pos *Position) any {
	if pos == nil {
		return nil
	}
	return *pos
}
