package http

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/retribution/retctl/internal/constants"
)

// ErrorType is the failure class of a backend call. It decides how the caller
// reacts: re-authenticate, inform, alert, or just log.
type ErrorType int

const (
	// ErrorTypeSuccess indicates a 2xx response
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeAuthFailure is a 401 on any authenticated endpoint. It always
	// clears the credential and returns the session to the login screen.
	ErrorTypeAuthFailure
	// ErrorTypeNotFoundSoft is a 404 on the state artifact: informational only.
	ErrorTypeNotFoundSoft
	// ErrorTypeGenericHTTP is any other non-2xx response
	ErrorTypeGenericHTTP
	// ErrorTypeNetwork is a transport failure (unreachable, reset, timeout).
	// It surfaces to the operator exactly like ErrorTypeGenericHTTP.
	ErrorTypeNetwork
	// ErrorTypeValidation is a local precondition rejection; no request was sent
	ErrorTypeValidation
	// ErrorTypeCanceled means the caller's context ended first
	ErrorTypeCanceled
)

// ClassifyResponse maps the outcome of one request to an ErrorType.
// statusCode is ignored when err is non-nil.
func ClassifyResponse(statusCode int, path string, err error) ErrorType {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ErrorTypeCanceled
		}
		return ErrorTypeNetwork
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return ErrorTypeSuccess
	case statusCode == nethttp.StatusUnauthorized:
		return ErrorTypeAuthFailure
	case statusCode == nethttp.StatusNotFound && path == constants.PathStateArtifact:
		return ErrorTypeNotFoundSoft
	default:
		return ErrorTypeGenericHTTP
	}
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeAuthFailure:
		return "auth_failure"
	case ErrorTypeNotFoundSoft:
		return "not_found_soft"
	case ErrorTypeGenericHTTP:
		return "http_failure"
	case ErrorTypeNetwork:
		return "network_failure"
	case ErrorTypeValidation:
		return "validation_failure"
	case ErrorTypeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

func (e ErrorType) String() string {
	return ErrorTypeName(e)
}
