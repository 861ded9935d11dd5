package approvals

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/intent/internal/workflows"
)

// Domain errors for approval operations.
var (
	ErrNotFound        = errors.New("approval not found")
	ErrInvalidType     = errors.New("approval_type must be seeds or subtopics")
	ErrInvalidDecision = errors.New("decision must be pending, approved, or rejected")
	ErrNotReady        = errors.New("workflow has not produced the output under review")
)

// MapHTTPStatus maps approval domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) || errors.Is(err, workflows.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalidType) || errors.Is(err, ErrInvalidDecision) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrNotReady) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
