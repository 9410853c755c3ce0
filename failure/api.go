package failure

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitInfo is the provider's rate limit state at the time of failure.
type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"resetTime"`
}

// RetryInfo records where in a retry sequence a failure was observed.
type RetryInfo struct {
	Attempt     int       `json:"attempt"`
	MaxRetries  int       `json:"maxRetries"`
	NextRetryAt time.Time `json:"nextRetryAt,omitempty"`
}

// APIDetails describes a failed remote call. A zero StatusCode means no
// status was received (network-level failure).
type APIDetails struct {
	StatusCode  int               `json:"statusCode,omitempty"`
	Response    any               `json:"response,omitempty"`
	URL         string            `json:"url,omitempty"`
	Method      string            `json:"method,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestBody any               `json:"requestBody,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`
	RateLimit   *RateLimitInfo    `json:"rateLimit,omitempty"`
	RetryInfo   *RetryInfo        `json:"retryInfo,omitempty"`
}

// APIError is returned when a remote call fails with a structured error.
type APIError struct {
	CoreError
	APIDetails
}

// NewAPIError creates an API failure. Fields set in ctx override the
// generated operation, resource and user message.
func NewAPIError(message string, details APIDetails, ctx Context, cause error) *APIError {
	resource := details.URL
	if resource == "" {
		resource = details.Endpoint
	}
	base := Context{
		Operation:   apiOperationName(details.Method, details.Endpoint),
		Resource:    resource,
		UserMessage: APIUserMessage(details.StatusCode),
		Details:     details,
	}
	return &APIError{
		CoreError:  newError(message, CodeAPI, base.merge(ctx), cause),
		APIDetails: details,
	}
}

func apiOperationName(method, endpoint string) string {
	switch {
	case method != "" && endpoint != "":
		return strings.ToUpper(method) + " " + endpoint
	case method != "":
		return "HTTP " + strings.ToUpper(method)
	default:
		return "API request"
	}
}

// APIUserMessage maps a status code to plain-language text. It is total: a
// zero code yields the generic retry text and unmapped codes cite the code.
func APIUserMessage(statusCode int) string {
	switch {
	case statusCode == 0:
		return "API request failed. Please try again."
	case statusCode == http.StatusBadRequest:
		return "The request was invalid. Please check your input and try again."
	case statusCode == http.StatusUnauthorized:
		return "Authentication failed. Please check your credentials."
	case statusCode == http.StatusForbidden:
		return "You do not have permission to access this resource."
	case statusCode == http.StatusNotFound:
		return "The requested resource was not found."
	case statusCode == http.StatusTooManyRequests:
		return "Too many requests. Please wait before trying again."
	case statusCode >= 500 && statusCode < 600:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return fmt.Sprintf("API request failed with status %d", statusCode)
	}
}

// IsClientError reports a 4xx status.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsServerError reports a 5xx status.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRateLimitError reports a 429 status.
func (e *APIError) IsRateLimitError() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsNetworkError reports a failure where no status code was received.
func (e *APIError) IsNetworkError() bool {
	return e.StatusCode == 0
}

// IsRetryable is true for rate limits and server errors only.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimitError() || e.IsServerError()
}

// ForAuthentication creates a 401 failure.
func ForAuthentication(endpoint string, ctx Context) *APIError {
	return NewAPIError("Authentication failed",
		APIDetails{StatusCode: http.StatusUnauthorized, Endpoint: endpoint},
		Context{
			Operation:   "authenticate",
			UserMessage: "Authentication failed. Please check your API credentials.",
		}.merge(ctx),
		nil,
	)
}

// ForAuthorization creates a 403 failure.
func ForAuthorization(endpoint string, ctx Context) *APIError {
	return NewAPIError("Authorization failed",
		APIDetails{StatusCode: http.StatusForbidden, Endpoint: endpoint},
		Context{
			Operation:   "authorize",
			UserMessage: "You do not have permission to perform this action.",
		}.merge(ctx),
		nil,
	)
}

// ForRateLimit creates a 429 failure. When the reset time is known the user
// message tells the caller how long to wait.
func ForRateLimit(endpoint string, rateLimit *RateLimitInfo, ctx Context) *APIError {
	userMessage := "Rate limit exceeded. Please wait before trying again."
	if rateLimit != nil && !rateLimit.ResetTime.IsZero() {
		wait := int(math.Ceil(time.Until(rateLimit.ResetTime).Seconds()))
		if wait > 0 {
			userMessage = fmt.Sprintf("Rate limit exceeded. Please wait %d seconds before trying again.", wait)
		}
	}
	return NewAPIError("Rate limit exceeded",
		APIDetails{StatusCode: http.StatusTooManyRequests, Endpoint: endpoint, RateLimit: rateLimit},
		Context{
			Operation:   "rateLimitCheck",
			UserMessage: userMessage,
		}.merge(ctx),
		nil,
	)
}

// ForNetwork creates a status-less failure for transport errors.
func ForNetwork(endpoint string, cause error, ctx Context) *APIError {
	return NewAPIError("Network request failed",
		APIDetails{Endpoint: endpoint},
		Context{
			Operation:   "networkRequest",
			UserMessage: "Network request failed. Please check your internet connection and try again.",
		}.merge(ctx),
		cause,
	)
}

// ForTimeout creates a status-less failure for a request that ran out of time.
func ForTimeout(endpoint string, timeout time.Duration, ctx Context) *APIError {
	userMessage := "Request timed out. Please try again."
	var response any
	if timeout > 0 {
		userMessage = fmt.Sprintf("Request timed out after %dms. Please try again.", timeout.Milliseconds())
		response = map[string]any{"timeout": timeout.Milliseconds()}
	}
	return NewAPIError("Request timeout",
		APIDetails{Endpoint: endpoint, Response: response},
		Context{
			Operation:   "timeoutCheck",
			UserMessage: userMessage,
		}.merge(ctx),
		nil,
	)
}

// ForServerError creates a failure for a 5xx (or other server-side) status.
func ForServerError(statusCode int, endpoint string, response any, ctx Context) *APIError {
	return NewAPIError(fmt.Sprintf("Server error %d", statusCode),
		APIDetails{StatusCode: statusCode, Endpoint: endpoint, Response: response},
		Context{Operation: "serverRequest"}.merge(ctx),
		nil,
	)
}

// HTTPResponse is the subset of a response FromResponse reads.
type HTTPResponse struct {
	Status     int
	StatusText string
	URL        string
	Data       any
	Headers    map[string]string
}

// HTTPRequest is the subset of a request FromResponse reads.
type HTTPRequest struct {
	Method string
	URL    string
	Body   any
}

// FromResponse creates a failure from an HTTP exchange. Rate limit headers
// on a 429 response are decoded into RateLimit.
func FromResponse(resp HTTPResponse, req *HTTPRequest, ctx Context, cause error) *APIError {
	statusText := resp.StatusText
	if statusText == "" {
		statusText = "Error"
	}
	details := APIDetails{
		StatusCode: resp.Status,
		URL:        resp.URL,
		Response:   resp.Data,
		Headers:    resp.Headers,
	}
	if req != nil {
		if details.URL == "" {
			details.URL = req.URL
		}
		details.Method = req.Method
		details.RequestBody = req.Body
	}
	if resp.Status == http.StatusTooManyRequests {
		details.RateLimit = parseRateLimit(resp.Headers, time.Now())
	}
	return NewAPIError(fmt.Sprintf("HTTP %d %s", resp.Status, statusText), details, ctx, cause)
}

// FromHTTP creates a failure from a net/http exchange, as carried by the
// provider SDK error types. Either side may be nil; status wins over the
// response's own status code.
func FromHTTP(status int, req *http.Request, resp *http.Response, ctx Context, cause error) *APIError {
	r := HTTPResponse{Status: status, StatusText: http.StatusText(status)}
	if resp != nil {
		if status == 0 {
			r.Status = resp.StatusCode
			r.StatusText = http.StatusText(resp.StatusCode)
		}
		r.Headers = make(map[string]string, len(resp.Header))
		for k := range resp.Header {
			r.Headers[k] = resp.Header.Get(k)
		}
	}
	var hr *HTTPRequest
	if req != nil {
		hr = &HTTPRequest{Method: req.Method}
		if req.URL != nil {
			hr.URL = req.URL.String()
		}
	}
	return FromResponse(r, hr, ctx, cause)
}

var (
	limitHeaders     = []string{"x-ratelimit-limit-requests", "anthropic-ratelimit-requests-limit"}
	remainingHeaders = []string{"x-ratelimit-remaining-requests", "anthropic-ratelimit-requests-remaining"}
)

// parseRateLimit reads the request rate limit headers used by the major
// providers. It returns nil when none are present.
func parseRateLimit(headers map[string]string, now time.Time) *RateLimitInfo {
	if len(headers) == 0 {
		return nil
	}
	lower := make(map[string]string, len(headers))
	for k, v := range headers {
		lower[strings.ToLower(k)] = v
	}

	var info RateLimitInfo
	found := false
	if v, ok := firstInt(lower, limitHeaders); ok {
		info.Limit, found = v, true
	}
	if v, ok := firstInt(lower, remainingHeaders); ok {
		info.Remaining, found = v, true
	}
	if v, ok := firstInt(lower, []string{"retry-after"}); ok {
		info.ResetTime, found = now.Add(time.Duration(v)*time.Second), true
	}
	if !found {
		return nil
	}
	return &info
}

func firstInt(headers map[string]string, keys []string) (int, bool) {
	for _, k := range keys {
		if v, ok := headers[k]; ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
