// Package apperr provides the gateway's error taxonomy: a single error type
// carrying a machine-readable code, a human message, optional details, and
// the HTTP status the router should answer with.
package apperr

import (
	"fmt"
	"net/http"
)

// GatewayError is returned by every component that can fail at the request
// boundary. Handlers convert it to a JSON response via ToResponse.
type GatewayError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *GatewayError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorResponse is the JSON body written to the client.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Error codes, one per kind in the gateway's error taxonomy.
const (
	CodeCookieNotFound               = "COOKIE_NOT_FOUND"
	CodeMalformedToken                = "MALFORMED_TOKEN"
	CodeMalformedPayload              = "MALFORMED_PAYLOAD"
	CodeTokenExpired                  = "TOKEN_EXPIRED"
	CodeForbidden                     = "FORBIDDEN"
	CodePermissionServiceUnavailable  = "PERMISSION_SERVICE_UNAVAILABLE"
	CodePermissionServiceMalformed    = "PERMISSION_SERVICE_MALFORMED"
	CodeInvalidSocketKey              = "INVALID_SOCKET_KEY"
	CodeForwardingError               = "FORWARDING_ERROR"
)

func statusForCode(code string) int {
	switch code {
	case CodeCookieNotFound, CodeMalformedToken, CodeMalformedPayload, CodeTokenExpired, CodeInvalidSocketKey:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodePermissionServiceUnavailable, CodePermissionServiceMalformed, CodeForwardingError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New creates a GatewayError with no details.
func New(code, message string) *GatewayError {
	return &GatewayError{Code: code, Message: message, StatusCode: statusForCode(code)}
}

// Wrap attaches an underlying error's text as Details.
func Wrap(code, message string, err error) *GatewayError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &GatewayError{Code: code, Message: message, Details: details, StatusCode: statusForCode(code)}
}

// ToResponse converts a GatewayError to its wire representation.
func (e *GatewayError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Code, Message: e.Message, Code: e.Code, Details: e.Details}
}

func CookieNotFound(name string) *GatewayError {
	return New(CodeCookieNotFound, fmt.Sprintf("cookie %q not present", name))
}

func MalformedToken(reason string) *GatewayError {
	return New(CodeMalformedToken, "token is not a well-formed three-segment JWT: "+reason)
}

func MalformedPayload(err error) *GatewayError {
	return Wrap(CodeMalformedPayload, "token payload is not valid JSON", err)
}

func TokenExpired() *GatewayError {
	return New(CodeTokenExpired, "token has expired")
}

func Forbidden(reason string) *GatewayError {
	return New(CodeForbidden, reason)
}

func PermissionServiceUnavailable(err error) *GatewayError {
	return Wrap(CodePermissionServiceUnavailable, "permission service request failed", err)
}

func PermissionServiceMalformed(err error) *GatewayError {
	return Wrap(CodePermissionServiceMalformed, "permission service response could not be parsed", err)
}

func InvalidSocketKey(reason string) *GatewayError {
	return New(CodeInvalidSocketKey, reason)
}

func ForwardingError(err error) *GatewayError {
	return Wrap(CodeForwardingError, "failed to forward request to sidecar", err)
}
