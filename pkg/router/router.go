// Package router is a small method-aware router over http.ServeMux with
// single-segment wildcards, request logging and CORS.
package router

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type route struct {
	method   string
	pattern  string
	segments []string
	handler  HandlerFunc
}

// Router dispatches METHOD + path. A "*" segment in a pattern matches exactly
// one path segment; exact routes win over wildcard ones.
type Router struct {
	mux    *http.ServeMux
	exact  map[string]HandlerFunc // key = METHOD:PATH
	routes []route                // wildcard routes in registration order
	paths  map[string]bool
	logger *zap.Logger
}

func New(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		mux:    http.NewServeMux(),
		exact:  make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
		logger: logger,
	}
	r.mux.HandleFunc("/", r.dispatch)
	return r
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	if h, status := r.lookup(req.Method, req.URL.Path); h != nil {
		h(lrw, req)
	} else if status == http.StatusMethodNotAllowed {
		http.Error(lrw, "Method Not Allowed", http.StatusMethodNotAllowed)
	} else {
		http.Error(lrw, "Not Found", http.StatusNotFound)
	}

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", lrw.statusCode),
		zap.Duration("duration", time.Since(start)),
	}
	switch {
	case lrw.statusCode >= 500:
		r.logger.Error("http request", fields...)
	case lrw.statusCode >= 400:
		r.logger.Warn("http request", fields...)
	default:
		r.logger.Info("http request", fields...)
	}
}

func (r *Router) lookup(method, path string) (HandlerFunc, int) {
	if h, ok := r.exact[method+":"+path]; ok {
		return h, http.StatusOK
	}
	pathFound := r.paths[path]
	segments := splitPath(path)
	for _, rt := range r.routes {
		if !matchSegments(segments, rt.segments) {
			continue
		}
		if rt.method == method {
			return rt.handler, http.StatusOK
		}
		pathFound = true
	}
	if pathFound {
		return nil, http.StatusMethodNotAllowed
	}
	return nil, http.StatusNotFound
}

func splitPath(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

// matchSegments checks request segments against a route pattern.
func matchSegments(request, pattern []string) bool {
	if len(request) != len(pattern) {
		return false
	}
	for i, seg := range pattern {
		if seg == "*" {
			if request[i] == "" {
				return false
			}
			continue
		}
		if request[i] != seg {
			return false
		}
	}
	return true
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	if strings.Contains(path, "*") {
		r.routes = append(r.routes, route{method: method, pattern: path, segments: splitPath(path), handler: handler})
		return
	}
	r.exact[method+":"+path] = handler
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)   { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Mount serves every path under prefix with h, bypassing the route table.
// It is used for the swagger UI.
func (r *Router) Mount(prefix string, h http.Handler) {
	r.mux.Handle(prefix, h)
}

// Routes lists the registered METHOD:PATTERN keys.
func (r *Router) Routes() []string {
	keys := make([]string, 0, len(r.exact)+len(r.routes))
	for k := range r.exact {
		keys = append(keys, k)
	}
	for _, rt := range r.routes {
		keys = append(keys, rt.method+":"+rt.pattern)
	}
	return keys
}

// Handler returns the router wrapped in CORS for origins. An empty list allows
// any origin.
func (r *Router) Handler(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Disposition"},
	})
	return c.Handler(r.mux)
}

// --- Start server ---

// Start serves on addr until ctx is done, then shuts down gracefully within
// shutdownTimeout.
func (r *Router) Start(ctx context.Context, addr string, origins []string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(origins),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("server started", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	r.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
