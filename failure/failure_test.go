package failure

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestAPIUserMessage(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{0, "API request failed. Please try again."},
		{400, "The request was invalid. Please check your input and try again."},
		{401, "Authentication failed. Please check your credentials."},
		{403, "You do not have permission to access this resource."},
		{404, "The requested resource was not found."},
		{429, "Too many requests. Please wait before trying again."},
		{500, "The service is temporarily unavailable. Please try again later."},
		{503, "The service is temporarily unavailable. Please try again later."},
		{599, "The service is temporarily unavailable. Please try again later."},
		{418, "API request failed with status 418"},
		{302, "API request failed with status 302"},
	}

	for _, tt := range tests {
		if got := APIUserMessage(tt.status); got != tt.want {
			t.Errorf("APIUserMessage(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestAPIErrorRetryable(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
		client    bool
		server    bool
	}{
		{0, false, false, false},
		{400, false, true, false},
		{401, false, true, false},
		{403, false, true, false},
		{404, false, true, false},
		{408, false, true, false},
		{429, true, true, false},
		{500, true, false, true},
		{502, true, false, true},
		{503, true, false, true},
		{599, true, false, true},
		{600, false, false, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := NewAPIError("boom", APIDetails{StatusCode: tt.status}, Context{}, nil)
			if got := err.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := err.IsClientError(); got != tt.client {
				t.Errorf("IsClientError() = %v, want %v", got, tt.client)
			}
			if got := err.IsServerError(); got != tt.server {
				t.Errorf("IsServerError() = %v, want %v", got, tt.server)
			}
			if got := IsRetryable(fmt.Errorf("wrapped: %w", err)); got != tt.retryable {
				t.Errorf("package IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestIsRetryableNonAPI(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"nil", nil},
		{"plain", errors.New("reset by peer")},
		{"validation", ForRequiredField("prompt", Context{})},
		{"parse", ForJSON("tasks.json", nil, nil)},
		{"not found", ForTasksFile("tasks.json", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if IsRetryable(tt.err) {
				t.Errorf("IsRetryable(%T) = true, want false", tt.err)
			}
		})
	}
}

func TestNewAPIErrorContextDefaults(t *testing.T) {
	err := NewAPIError("boom", APIDetails{StatusCode: 503, Method: "post", Endpoint: "/v1/messages"}, Context{}, nil)

	want := Context{
		Operation:   "POST /v1/messages",
		Resource:    "/v1/messages",
		UserMessage: "The service is temporarily unavailable. Please try again later.",
		Details:     APIDetails{StatusCode: 503, Method: "post", Endpoint: "/v1/messages"},
	}
	if diff := cmp.Diff(want, err.Context); diff != "" {
		t.Errorf("context mismatch (-want +got):\n%s", diff)
	}
	if err.Code != CodeAPI {
		t.Errorf("Code = %q, want %q", err.Code, CodeAPI)
	}
}

func TestNewAPIErrorContextOverride(t *testing.T) {
	err := NewAPIError("boom", APIDetails{StatusCode: 500}, Context{
		Operation:   "generateCompletion",
		UserMessage: "custom",
	}, nil)
	if err.Context.Operation != "generateCompletion" {
		t.Errorf("Operation = %q", err.Context.Operation)
	}
	if err.UserMessage() != "custom" {
		t.Errorf("UserMessage() = %q", err.UserMessage())
	}
}

func TestAPIFactories(t *testing.T) {
	tests := []struct {
		name      string
		err       *APIError
		status    int
		operation string
		retryable bool
	}{
		{"authentication", ForAuthentication("/v1/messages", Context{}), 401, "authenticate", false},
		{"authorization", ForAuthorization("/v1/messages", Context{}), 403, "authorize", false},
		{"rate limit", ForRateLimit("/v1/messages", nil, Context{}), 429, "rateLimitCheck", true},
		{"network", ForNetwork("/v1/messages", errors.New("dial tcp"), Context{}), 0, "networkRequest", false},
		{"timeout", ForTimeout("/v1/messages", 5*time.Second, Context{}), 0, "timeoutCheck", false},
		{"server", ForServerError(502, "/v1/messages", nil, Context{}), 502, "serverRequest", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.status)
			}
			if tt.err.Context.Operation != tt.operation {
				t.Errorf("Operation = %q, want %q", tt.err.Context.Operation, tt.operation)
			}
			if tt.err.IsRetryable() != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", tt.err.IsRetryable(), tt.retryable)
			}
			if tt.err.UserMessage() == "" {
				t.Error("expected non-empty user message")
			}
		})
	}
}

func TestForRateLimitWaitMessage(t *testing.T) {
	err := ForRateLimit("/v1/chat", &RateLimitInfo{Limit: 100, ResetTime: time.Now().Add(30 * time.Second)}, Context{})
	msg := err.UserMessage()
	if !strings.Contains(msg, "Please wait") || !strings.Contains(msg, "seconds") {
		t.Errorf("expected wait hint in %q", msg)
	}
	if err.RateLimit == nil || err.RateLimit.Limit != 100 {
		t.Errorf("rate limit info not retained: %+v", err.RateLimit)
	}
}

func TestForTimeoutMessage(t *testing.T) {
	err := ForTimeout("/v1/chat", 1500*time.Millisecond, Context{})
	if got, want := err.UserMessage(), "Request timed out after 1500ms. Please try again."; got != want {
		t.Errorf("UserMessage() = %q, want %q", got, want)
	}
}

func TestFromResponse(t *testing.T) {
	err := FromResponse(
		HTTPResponse{Status: 404, StatusText: "Not Found", Data: map[string]any{"error": "missing"}},
		&HTTPRequest{Method: "get", URL: "https://api.example.com/v1/models/x"},
		Context{},
		nil,
	)
	if err.Message != "HTTP 404 Not Found" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.URL != "https://api.example.com/v1/models/x" {
		t.Errorf("URL = %q", err.URL)
	}
	if err.Context.Operation != "HTTP GET" {
		t.Errorf("Operation = %q", err.Context.Operation)
	}
	if err.UserMessage() != "The requested resource was not found." {
		t.Errorf("UserMessage() = %q", err.UserMessage())
	}
}

func TestFromResponseRateLimitHeaders(t *testing.T) {
	cause := errors.New("sdk error")
	err := FromResponse(HTTPResponse{
		Status: 429,
		Headers: map[string]string{
			"Anthropic-Ratelimit-Requests-Limit":     "50",
			"Anthropic-Ratelimit-Requests-Remaining": "0",
			"Retry-After":                            "20",
		},
	}, nil, Context{}, cause)

	if err.RateLimit == nil {
		t.Fatal("expected rate limit info")
	}
	if err.RateLimit.Limit != 50 || err.RateLimit.Remaining != 0 {
		t.Errorf("RateLimit = %+v", err.RateLimit)
	}
	if until := time.Until(err.RateLimit.ResetTime); until <= 0 || until > 20*time.Second {
		t.Errorf("ResetTime %v not within retry-after window", err.RateLimit.ResetTime)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be retained")
	}
	if !err.IsRetryable() {
		t.Error("expected 429 to be retryable")
	}
}

func TestFromHTTP(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://api.example.com/v1/messages", nil)
	resp := &http.Response{StatusCode: 503, Header: http.Header{"Request-Id": []string{"req_1"}}}
	cause := errors.New("overloaded")

	err := FromHTTP(0, req, resp, Context{}, cause)
	if err.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", err.StatusCode)
	}
	if err.Message != "HTTP 503 Service Unavailable" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Method != "POST" || err.URL != "https://api.example.com/v1/messages" {
		t.Errorf("Method/URL = %q %q", err.Method, err.URL)
	}
	if err.Headers["Request-Id"] != "req_1" {
		t.Errorf("Headers = %v", err.Headers)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be retained")
	}
}

func TestFromHTTPNilExchange(t *testing.T) {
	err := FromHTTP(401, nil, nil, Context{}, nil)
	if err.StatusCode != 401 || err.IsRetryable() {
		t.Errorf("unexpected failure %+v", err.APIDetails)
	}
}

func TestParseRateLimitAbsent(t *testing.T) {
	if info := parseRateLimit(map[string]string{"content-type": "application/json"}, time.Now()); info != nil {
		t.Errorf("expected nil, got %+v", info)
	}
}

func TestValidationUserMessage(t *testing.T) {
	tests := []struct {
		name    string
		details ValidationDetails
		want    string
	}{
		{"list", ValidationDetails{Field: "status", Expected: []string{"pending", "done"}}, `The field "status" must be one of: pending, done`},
		{"scalar", ValidationDetails{Field: "temperature", Expected: "number between 0 and 2"}, `The field "temperature" must be number between 0 and 2`},
		{"field only", ValidationDetails{Field: "title"}, `The field "title" is invalid`},
		{"generic", ValidationDetails{}, "The provided data failed validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError("invalid", tt.details, Context{}, nil)
			if got := err.UserMessage(); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
			if err.Context.Operation != "validate" {
				t.Errorf("Operation = %q", err.Context.Operation)
			}
		})
	}
}

func TestForSchemaPluralisation(t *testing.T) {
	one := ForSchema("task", []ValidationDetails{{Field: "id"}}, Context{})
	if !strings.HasSuffix(one.Message, "(1 error)") {
		t.Errorf("Message = %q", one.Message)
	}
	two := ForSchema("task", []ValidationDetails{{Field: "id"}, {Field: "title"}}, Context{})
	if !strings.HasSuffix(two.Message, "(2 errors)") {
		t.Errorf("Message = %q", two.Message)
	}
	if len(two.Errors) != 2 {
		t.Errorf("len(Errors) = %d", len(two.Errors))
	}
}

func TestValidationFactories(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		rule string
	}{
		{"required", ForRequiredField("title", Context{}), "required"},
		{"enum", ForInvalidEnum("priority", "urgent", []string{"low", "high"}, Context{}), "enum"},
		{"type", ForInvalidType("id", "abc", "number", Context{}), "type"},
		{"range", ForRange("temperature", 3.0, "number between 0 and 2", Context{}), "range"},
		{"task", ForTask("7", "title", nil, "string", Context{}), "task-field"},
		{"task status", ForTaskStatus("7", "later", []string{"pending", "done"}, Context{}), "task-status"},
		{"dependency", ForTaskDependency("7", "7", "self reference", Context{}), "dependency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Rule != tt.rule {
				t.Errorf("Rule = %q, want %q", tt.err.Rule, tt.rule)
			}
			if tt.err.Code != CodeValidation {
				t.Errorf("Code = %q", tt.err.Code)
			}
			if tt.err.UserMessage() == "" {
				t.Error("expected user message")
			}
		})
	}
}

func TestInvalidTypeMessage(t *testing.T) {
	err := ForInvalidType("id", "abc", "number", Context{})
	if err.Message != `Invalid type for field "id": expected number, got string` {
		t.Errorf("Message = %q", err.Message)
	}
	err = ForInvalidType("id", nil, "number", Context{})
	if !strings.HasSuffix(err.Message, "got null") {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestParseFactories(t *testing.T) {
	cause := errors.New("unexpected token")
	tests := []struct {
		name      string
		err       *ParseError
		format    string
		operation string
	}{
		{"json", ForJSON("tasks.json", &Position{Line: 3, Column: 7}, cause), "json", "parseJSON"},
		{"yaml", ForYAML("config.yaml", nil, cause), "yaml", "parseYAML"},
		{"task data", ForTaskData("tasks.json", &TaskLocation{TaskID: "4"}, cause), "task-data", "parseTaskData"},
		{"prd", ForPRD("prd.txt", nil, cause), "prd", "parsePRD"},
		{"format", ForFormat("data.csv", "csv", nil, cause), "csv", "parseCSV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Format != tt.format {
				t.Errorf("Format = %q, want %q", tt.err.Format, tt.format)
			}
			if tt.err.Context.Operation != tt.operation {
				t.Errorf("Operation = %q, want %q", tt.err.Context.Operation, tt.operation)
			}
			if !errors.Is(tt.err, cause) {
				t.Error("expected parse failure to unwrap to its cause")
			}
			if !HasCode(tt.err, CodeParse) {
				t.Error("expected PARSE_ERROR code")
			}
		})
	}
}

func TestParseDefaultUserMessage(t *testing.T) {
	err := NewParseError("bad", "input.toml", "toml", Context{}, nil)
	if got, want := err.UserMessage(), "Failed to parse input.toml as TOML"; got != want {
		t.Errorf("UserMessage() = %q, want %q", got, want)
	}
}

func TestFileNotFoundFactories(t *testing.T) {
	tests := []struct {
		name      string
		err       *FileNotFoundError
		operation string
	}{
		{"operation", ForOperation("prd.txt", "parsePRD", nil), "parsePRD"},
		{"tasks", ForTasksFile("tasks/tasks.json", nil), "loadTasksFile"},
		{"config", ForConfigFile(".taskmaster/config.json", nil), "loadConfigFile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Context.Operation != tt.operation {
				t.Errorf("Operation = %q, want %q", tt.err.Context.Operation, tt.operation)
			}
			if tt.err.Context.Resource != tt.err.FilePath {
				t.Errorf("Resource = %q, want %q", tt.err.Context.Resource, tt.err.FilePath)
			}
			if code, _ := CodeOf(tt.err); code != CodeFileNotFound {
				t.Errorf("CodeOf() = %q", code)
			}
		})
	}
}

func TestCoreErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ForNetwork("/v1", cause, Context{})
	if !errors.Is(err, cause) {
		t.Error("expected APIError to unwrap to its cause")
	}
	if got := err.Error(); got != "Network request failed: root cause" {
		t.Errorf("Error() = %q", got)
	}

	var apiErr *APIError
	if !errors.As(fmt.Errorf("outer: %w", err), &apiErr) {
		t.Fatal("errors.As failed to find *APIError")
	}
}

func TestNewErrorDefaults(t *testing.T) {
	base := newError("x", CodeAPI, Context{}, nil)
	if base.Context.Operation != "unknown operation" {
		t.Errorf("Operation = %q", base.Context.Operation)
	}
	if base.Context.UserMessage != "An unexpected error occurred. Please try again." {
		t.Errorf("UserMessage = %q", base.Context.UserMessage)
	}
}

func TestUserFacing(t *testing.T) {
	if got := UserFacing(nil); got != "" {
		t.Errorf("UserFacing(nil) = %q", got)
	}
	if got := UserFacing(errors.New("secret transport detail")); got != "An unexpected error occurred. Please try again." {
		t.Errorf("UserFacing(plain) = %q", got)
	}
	if got := UserFacing(fmt.Errorf("wrap: %w", ForAuthentication("/v1", Context{}))); got != "Authentication failed. Please check your API credentials." {
		t.Errorf("UserFacing(auth) = %q", got)
	}
}

func TestSerialize(t *testing.T) {
	cause := fmt.Errorf("read body: %w", errors.New("EOF"))
	err := ForJSON("tasks.json", nil, cause)

	s := Serialize(err)
	if s.Name != "ParseError" {
		t.Errorf("Name = %q", s.Name)
	}
	if s.Code != CodeParse {
		t.Errorf("Code = %q", s.Code)
	}
	if diff := cmp.Diff([]string{"read body: EOF", "EOF"}, s.Cause); diff != "" {
		t.Errorf("cause chain mismatch (-want +got):\n%s", diff)
	}

	data, jerr := ToJSON(err)
	if jerr != nil {
		t.Fatalf("ToJSON: %v", jerr)
	}
	var decoded map[string]any
	if jerr := json.Unmarshal(data, &decoded); jerr != nil {
		t.Fatalf("unmarshal: %v", jerr)
	}
	if decoded["code"] != "PARSE_ERROR" {
		t.Errorf("code = %v", decoded["code"])
	}

	plain := Serialize(errors.New("plain"))
	if plain.Name != "Error" || plain.Code != "" {
		t.Errorf("plain = %+v", plain)
	}
}
