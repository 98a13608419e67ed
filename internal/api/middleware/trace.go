package middleware

import (
	"log/slog"
	"net/http"

	"github.com/cardforge/cardforge-api/internal/api/shared"
)

// Trace attaches a trace id to every request context. Apply it first so all
// downstream handlers and log lines share the id.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())

		slog.Debug("request started",
			slog.String("trace_id", shared.GetTraceID(ctx)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
