package zhmc

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// HTTPError is returned when the HMC answers with an HTTP status >= 400.
// Its fields mirror the HMC error response body.
type HTTPError struct {
	HTTPStatus    int    `json:"http-status"`
	Reason        int    `json:"reason"`
	Message       string `json:"message"`
	RequestMethod string `json:"request-method"`
	RequestURI    string `json:"request-uri"`
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d,%d: %s [%s %s]", e.HTTPStatus, e.Reason, e.Message, e.RequestMethod, e.RequestURI)
}

// AuthError is returned when logon is rejected by the HMC.
type AuthError struct {
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Cause }

// ConnectionError is returned when the HMC could not be reached.
type ConnectionError struct {
	Message string
	Cause   error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// ParseError is returned when a response body cannot be interpreted.
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error { return e.Cause }

// OperationTimeoutError is returned when waiting for a job or a status
// exceeded its timeout.
type OperationTimeoutError struct {
	Message string
}

func (e *OperationTimeoutError) Error() string { return e.Message }

// NotFoundError is returned by Find when no resource matches the filter.
type NotFoundError struct {
	Filter map[string]string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find resource matching %s", formatFilter(e.Filter))
}

// NoUniqueMatchError is returned by Find when more than one resource matches.
type NoUniqueMatchError struct {
	Filter map[string]string
	Count  int
}

func (e *NoUniqueMatchError) Error() string {
	return fmt.Sprintf("found %d resources matching %s, expected one", e.Count, formatFilter(e.Filter))
}

// IsNotFound reports whether err is a NotFoundError or an HTTP 404.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return true
	}
	var he *HTTPError
	return errors.As(err, &he) && he.HTTPStatus == http.StatusNotFound
}

// IsConflict reports whether err is an HTTP 409.
func IsConflict(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.HTTPStatus == http.StatusConflict
}

// ErrorType returns the short type name of err, as used by the CLI when
// reporting failures ("HTTPError: ...").
func ErrorType(err error) string {
	var (
		he  *HTTPError
		ae  *AuthError
		ce  *ConnectionError
		pe  *ParseError
		te  *OperationTimeoutError
		nf  *NotFoundError
		num *NoUniqueMatchError
	)
	// AuthError wraps the HTTPError of the rejected logon.
	switch {
	case errors.As(err, &ae):
		return "AuthError"
	case errors.As(err, &he):
		return "HTTPError"
	case errors.As(err, &ce):
		return "ConnectionError"
	case errors.As(err, &pe):
		return "ParseError"
	case errors.As(err, &te):
		return "OperationTimeout"
	case errors.As(err, &nf):
		return "NotFound"
	case errors.As(err, &num):
		return "NoUniqueMatch"
	default:
		return "Error"
	}
}

func formatFilter(f map[string]string) string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, f[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
