package failure

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Serializable is the export form of a failure for logs and diagnostics.
// Cause is flattened to a chain of messages.
type Serializable struct {
	Name    string   `json:"name"`
	Message string   `json:"message"`
	Code    Code     `json:"code"`
	Context Context  `json:"context"`
	Cause   []string `json:"cause,omitempty"`
}

// Serialize converts err to its export form. Errors outside the taxonomy are
// reported with an empty code.
func Serialize(err error) Serializable {
	if err == nil {
		return Serializable{}
	}
	base, ok := As(err)
	if !ok {
		return Serializable{Name: "Error", Message: err.Error()}
	}
	s := Serializable{
		Name:    kindName(err),
		Message: base.Message,
		Code:    base.Code,
		Context: base.Context,
	}
	for c := base.Cause; c != nil; c = errors.Unwrap(c) {
		s.Cause = append(s.Cause, c.Error())
	}
	return s
}

// ToJSON renders the export form of err.
func ToJSON(err error) ([]byte, error) {
	data, jerr := json.Marshal(Serialize(err))
	if jerr != nil {
		return nil, fmt.Errorf("serialize failure: %w", jerr)
	}
	return data, nil
}

func kindName(err error) string {
	var f Failure
	if !errors.As(err, &f) {
		return "Error"
	}
	name := fmt.Sprintf("%T", f)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// IsRetryable reports whether err is an API failure whose status marks it
// retryable. Other taxonomy members and plain errors return false.
func IsRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsRetryable()
}
