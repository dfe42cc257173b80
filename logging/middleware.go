package logging

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// NewRequestLoggerMiddleware attaches a per-request child logger to the
// request context, tagged with a generated request id.
func NewRequestLoggerMiddleware(logger *slog.Logger) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			requestLogger := logger.With(
				slog.String("requestId", uuid.New().String()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			next(w, r.WithContext(AddToContext(r.Context(), requestLogger)))
		}
	}
}
