package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/JaimeStill/intent/pkg/handlers"
)

// RequestIDHeader carries the request correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns middleware that propagates the caller's X-Request-ID or
// assigns a new ULID, echoing it on the response.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 128 {
				id = ulid.Make().String()
			}

			w.Header().Set(RequestIDHeader, id)
			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFrom returns the request id stored by RequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Recover returns middleware that converts a handler panic into a 500
// response and logs the recovered value.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				logger.Error("handler panic",
					"panic", v,
					"method", r.Method,
					"uri", r.URL.RequestURI(),
					"request_id", RequestIDFrom(r.Context()),
				)
				handlers.RespondJSON(w, http.StatusInternalServerError, map[string]string{
					"error": "internal server error",
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
