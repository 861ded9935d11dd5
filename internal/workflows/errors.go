package workflows

import (
	"errors"
	"net/http"
)

// Domain errors for workflow operations.
var (
	ErrNotFound    = errors.New("workflow not found")
	ErrDuplicate   = errors.New("workflow already exists")
	ErrInvalidName = errors.New("workflow name is required")
	ErrUnknownFlag = errors.New("unknown approval flag")
)

// MapHTTPStatus maps workflow domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidName) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
