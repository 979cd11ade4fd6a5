package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/echorelay/internal/document"
	"github.com/mcoot/echorelay/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeMalformedIdentity      = "MALFORMED_IDENTITY"
	CodeIdentityMismatch       = "IDENTITY_MISMATCH"
	CodeInvalidLobbyType       = "INVALID_LOBBY_TYPE"
	CodeInvalidChannel         = "INVALID_CHANNEL"
	CodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	CodeSessionNotFound        = "SESSION_NOT_FOUND"
	CodeSessionAlreadyStarting = "SESSION_ALREADY_STARTING"
	CodeSessionStartRejected   = "SESSION_START_REJECTED"
	CodeHandshakeTimeout       = "HANDSHAKE_TIMEOUT"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeRateLimited            = "RATE_LIMITED"
	CodeNotFound               = "NOT_FOUND"
	CodeInternalError          = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError. Client errors and game server
// rejections carry the error text; other failures get a fixed message.
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, model.ErrCorruptRecord):
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	case errors.Is(err, model.ErrInvalidArgument), errors.Is(err, document.ErrInvalidJSON):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, err.Error()}}
	case errors.Is(err, model.ErrMalformedIdentity):
		return &httpError{http.StatusBadRequest, APIError{CodeMalformedIdentity, err.Error()}}
	case errors.Is(err, model.ErrIdentityMismatch):
		return &httpError{http.StatusBadRequest, APIError{CodeIdentityMismatch, err.Error()}}
	case errors.Is(err, model.ErrInvalidLobbyType):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidLobbyType, err.Error()}}
	case errors.Is(err, model.ErrInvalidChannel):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidChannel, err.Error()}}
	case errors.Is(err, model.ErrAccountNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeAccountNotFound, "Account not found"}}
	case errors.Is(err, model.ErrSessionNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeSessionNotFound, "Session not found"}}
	case errors.Is(err, model.ErrSessionAlreadyStarting):
		return &httpError{http.StatusConflict, APIError{CodeSessionAlreadyStarting, "Session is already starting"}}
	case errors.Is(err, model.ErrSessionStartRejected):
		return &httpError{http.StatusBadGateway, APIError{CodeSessionStartRejected, err.Error()}}
	case errors.Is(err, model.ErrHandshakeTimeout):
		return &httpError{http.StatusGatewayTimeout, APIError{CodeHandshakeTimeout, "Game server did not answer in time"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "A valid API key is required"}}
}

// NewRateLimitedError creates a too-many-requests error
func NewRateLimitedError() error {
	return &httpError{http.StatusTooManyRequests, APIError{CodeRateLimited, "Too many requests"}}
}

// NewNotFoundError creates a route-not-found error
func NewNotFoundError() error {
	return &httpError{http.StatusNotFound, APIError{CodeNotFound, "Not found"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
