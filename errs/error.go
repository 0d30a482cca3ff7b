package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
)

// Application error codes. They loosely map onto HTTP status codes at the
// request boundary, see ErrorStatusCode.
const (
	ECONFLICT     = "conflict"
	EINTERNAL     = "internal"
	EINVALID      = "invalid"
	ENOTFOUND     = "not_found"
	EUNAUTHORIZED = "unauthorized"
	// EPARTIAL marks a multi-document write that failed after one of its
	// steps had already been applied. It is logged distinctly so drifted
	// edges can be found and repaired, but clients only ever see EINTERNAL.
	EPARTIAL = "partial_application"
)

// Error is an application error with a machine-readable code and a
// human-readable message safe to show to clients.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("audra error: code=%s message=%s", e.Code, e.Message)
}

// Errorf is a helper to construct an Error with a formatted message.
func Errorf(code string, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode unwraps the application error code of any error.
// Non-application errors are reported as EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps the client-facing message of any error.
// Non-application errors get a generic message, their detail stays internal.
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error."
}

// codes maps application error codes onto HTTP status codes.
var codes = map[string]int{
	ECONFLICT:     http.StatusBadRequest,
	EINVALID:      http.StatusBadRequest,
	ENOTFOUND:     http.StatusNotFound,
	EUNAUTHORIZED: http.StatusUnauthorized,
	EPARTIAL:      http.StatusInternalServerError,
	EINTERNAL:     http.StatusInternalServerError,
}

// ErrorStatusCode returns the HTTP status code for an application error code.
func ErrorStatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the json body returned for any failed request.
type ErrorResponse struct {
	Message string `json:"message"`
}

// ReturnError writes an error response to the client. Internal errors are
// logged and their detail replaced with a generic message.
func ReturnError(w http.ResponseWriter, r *http.Request, err error) {
	code, message := ErrorCode(err), ErrorMessage(err)
	if code == EINTERNAL || code == EPARTIAL {
		LogError(r, err)
	}
	w.WriteHeader(ErrorStatusCode(code))
	json.NewEncoder(w).Encode(&ErrorResponse{Message: message})
}

// LogError logs an error together with the request it occurred on.
func LogError(r *http.Request, err error) {
	log.Printf("[http] error: %s %s: %s", r.Method, r.URL.Path, err)
}
