// Package httpapi implements spec §6's single HTTP-style entry point: one
// parameterized route dispatches every actor operation by path, the way
// applications/httpapi mounts one route per endpoint in the teacher this
// module is built from — generalized here to a single "/users/{user_id}/
// {operation}" pattern because the operation set is per-user and
// data-driven rather than a fixed handful of REST resources. Routing runs
// on chi.Router rather than the teacher's bare http.ServeMux, the way the
// pack's own chi-based gateway routes its API surface.
package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tminus/internal/actor"
	"tminus/internal/logging"
	"tminus/internal/ratelimit"
)

// Server bundles the actor pool every operation dispatches against plus
// the logger each dispatch is wrapped in and the per-user rate limiter
// registry guarding dispatch.
type Server struct {
	pool    *actor.Pool
	logger  *logging.Logger
	limiter *ratelimit.Registry
}

// NewServer builds a Server dispatching against pool. limiter may be nil,
// in which case dispatch never throttles (tests and local runs commonly
// pass nil; tminus-actor's main wires a real registry from config).
func NewServer(pool *actor.Pool, logger *logging.Logger, limiter *ratelimit.Registry) *Server {
	return &Server{pool: pool, logger: logger, limiter: limiter}
}

// Routes mounts the single dispatch route on a fresh chi.Router.
func (s *Server) Routes() http.Handler {
	r := newRouter()
	r.Use(withTraceContext)
	mountRoutes(r,
		route{pattern: "/users/{user_id}/{operation}", method: http.MethodPost, handler: s.dispatch},
	)
	return r
}

// dispatch routes one request to its named operation handler, per spec
// §6: unknown operations return 404, every other handler error returns
// 500 with {error: string}. A user_id over its rate-limit budget is
// rejected with 429 before the pool is ever touched.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	operationName := chi.URLParam(r, "operation")

	op, ok := operations[operationName]
	if !ok {
		http.NotFound(w, r)
		return
	}

	if s.limiter != nil && !s.limiter.Allow(userID) {
		writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded, slow down"))
		return
	}

	ctx := logging.WithUserID(r.Context(), userID)

	a, err := s.pool.Get(ctx, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	r.Body.Close()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	start := time.Now()
	result, opErr := op(ctx, a, body)
	if s.logger != nil {
		s.logger.LogOperation(ctx, operationName, time.Since(start), opErr)
	}
	if opErr != nil {
		writeError(w, http.StatusInternalServerError, opErr)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, json.RawMessage("null"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeBody(body []byte, dst interface{}) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
