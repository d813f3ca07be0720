package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// route describes a single endpoint with its HTTP method.
type route struct {
	pattern string
	method  string
	handler http.HandlerFunc
}

// newRouter builds the chi.Router every Server mounts its dispatch route on,
// with request-id propagation and panic recovery ahead of every handler —
// the same lead-in chi's own gateway consumers in the pack use.
func newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	return r
}

// mountRoutes attaches the provided routes to r, one chi route per entry.
// chi reports 405 on its own when a pattern matches but the method doesn't,
// so callers no longer need a method-enforcing wrapper per route.
func mountRoutes(r chi.Router, routes ...route) {
	for _, rt := range routes {
		if rt.pattern == "" || rt.handler == nil {
			continue
		}
		r.Method(rt.method, rt.pattern, rt.handler)
	}
}
