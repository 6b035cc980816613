package dto

import "net/http"

// Error codes, formatted ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Request error codes
const (
	// ErrCodeValidation is used when request fields fail binding rules
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when a supplied document is not valid JSON
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeInvalidInput is used when values are well formed but not acceptable
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeRequestTooLarge is used for bodies over the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Resource error codes
const (
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	ErrCodeForbidden     = "ERR_FORBIDDEN"
)

// Marketplace error codes
const (
	// ErrCodeOAuthRequired tells the client to send the seller through the authorize flow again
	ErrCodeOAuthRequired = "ERR_OAUTH_REQUIRED"
	// ErrCodeInvalidState is used when an OAuth callback state cannot be verified
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeRemoteValidation is used when the marketplace rejected offer data
	ErrCodeRemoteValidation = "ERR_REMOTE_VALIDATION"
	// ErrCodeRemoteNotFound is used when the offer no longer exists on the marketplace
	ErrCodeRemoteNotFound = "ERR_REMOTE_NOT_FOUND"
	// ErrCodeRemoteUnavailable is used for marketplace 5xx answers and transport failures
	ErrCodeRemoteUnavailable = "ERR_REMOTE_UNAVAILABLE"
	// ErrCodeRemoteTimeout is used when the marketplace did not answer in time
	ErrCodeRemoteTimeout = "ERR_REMOTE_TIMEOUT"
	// ErrCodeRateLimited is used when this API or the marketplace throttles the caller
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	// ErrCodeQueueUnavailable is used when a background write cannot be accepted
	ErrCodeQueueUnavailable = "ERR_QUEUE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeForbidden:     http.StatusForbidden,

	ErrCodeOAuthRequired:     http.StatusUnauthorized,
	ErrCodeInvalidState:      http.StatusBadRequest,
	ErrCodeRemoteValidation:  http.StatusUnprocessableEntity,
	ErrCodeRemoteNotFound:    http.StatusNotFound,
	ErrCodeRemoteUnavailable: http.StatusBadGateway,
	ErrCodeRemoteTimeout:     http.StatusGatewayTimeout,
	ErrCodeRateLimited:       http.StatusTooManyRequests,
	ErrCodeQueueUnavailable:  http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
