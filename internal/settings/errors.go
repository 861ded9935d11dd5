package settings

import (
	"errors"
	"net/http"
)

// ErrInvalidSettings indicates an update would produce unusable cluster bounds.
var ErrInvalidSettings = errors.New("invalid settings")

// MapHTTPStatus maps settings domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrInvalidSettings) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
