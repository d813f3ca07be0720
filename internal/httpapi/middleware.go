package httpapi

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"tminus/internal/logging"
)

// withTraceContext stamps each request's context with chi's request id as
// tminus's own trace id, so every log line dispatch emits downstream can be
// correlated back to the inbound HTTP request chi assigned it to.
func withTraceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := chimw.GetReqID(r.Context())
		if traceID == "" {
			traceID = logging.NewTraceID()
		}
		next.ServeHTTP(w, r.WithContext(logging.WithTraceID(r.Context(), traceID)))
	})
}
