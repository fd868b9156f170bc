// Package api provides the client for the control backend and its error types.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/retribution/retctl/internal/http"
)

var (
	// ErrUnauthorized matches any 401 from an authenticated endpoint.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound matches any 404.
	ErrNotFound = errors.New("not found")

	// ErrNoCredential is returned without touching the network when the
	// credential store is empty. It matches ErrUnauthorized.
	ErrNoCredential = fmt.Errorf("no stored credential: %w", ErrUnauthorized)
)

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string // "detail" field of the error body, or the raw body
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
}

// Is lets errors.Is match HTTPErrors against ErrUnauthorized and ErrNotFound.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == 401
	case ErrNotFound:
		return e.StatusCode == 404
	}
	return false
}

// Type classifies the failure.
func (e *HTTPError) Type() http.ErrorType {
	return http.ClassifyResponse(e.StatusCode, e.Path, nil)
}

// IsUnauthorized reports whether err is (or wraps) an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNotFound reports whether err is (or wraps) a 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Typed is implemented by errors that know their own failure class, such as
// *HTTPError and local upload rejections.
type Typed interface {
	error
	Type() http.ErrorType
}

// Classify maps an error from Client, or a Typed error from a caller, to the
// shared taxonomy.
func Classify(err error) http.ErrorType {
	if err == nil {
		return http.ErrorTypeSuccess
	}
	var typed Typed
	if errors.As(err, &typed) {
		return typed.Type()
	}
	if errors.Is(err, ErrNoCredential) {
		return http.ErrorTypeAuthFailure
	}
	return http.ClassifyResponse(0, "", err)
}

// DetailOf returns the backend's detail message carried by err, if any.
func DetailOf(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Detail
	}
	return ""
}

const maxErrorBody = 4096

// newHTTPError reads the error body and extracts its detail.
func newHTTPError(method, path string, statusCode int, body io.Reader) *HTTPError {
	e := &HTTPError{Method: method, Path: path, StatusCode: statusCode}
	if body == nil {
		return e
	}

	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 {
		return e
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			e.Detail = s
		} else {
			// Validation errors carry a list of objects
			e.Detail = string(payload.Detail)
		}
		return e
	}

	e.Detail = string(data)
	return e
}
