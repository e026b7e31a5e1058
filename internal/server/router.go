package server

import (
	"net/http"
)

// Router is a [http.ServeMux] with a middleware stack.
type Router struct {
	mux         *http.ServeMux
	middlewares []Middleware
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{mux: http.NewServeMux()}
}

// Use appends middleware. The first one added is the outermost.
func (r *Router) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers h for every route it reports, restricted to GET.
func (r *Router) Handle(h Handler) {
	wrapped := r.apply(getOnly(h))
	for _, route := range h.Routes() {
		r.mux.Handle(route, wrapped)
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) apply(h http.Handler) http.Handler {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}
	return h
}

func getOnly(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, req)
	})
}
