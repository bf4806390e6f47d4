// Package api composes the HTTP server and the MCP tool server around the
// generated action surface.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aupadhyay/thoughts/internal/metrics"
	"github.com/aupadhyay/thoughts/internal/surface"
)

// Deps holds everything the HTTP handler serves.
type Deps struct {
	Surface     *surface.Surface
	Metrics     *metrics.Collector // optional; nil disables /metrics and instrumentation
	Logger      *slog.Logger
	Token       string // optional; when set, action routes require it as a bearer token
	CORSOrigins []string
}

// NewHandler returns the top-level router: health, the OpenAPI document,
// Prometheus metrics and one POST route per registered action.
func NewHandler(deps Deps) (http.Handler, error) {
	if deps.Surface == nil {
		return nil, fmt.Errorf("api: surface is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// The document is fixed for the life of the process.
	doc, err := deps.Surface.DocumentJSON()
	if err != nil {
		return nil, err
	}

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth)
	r.Get("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		deps.Surface.Mount(r)
	})

	return r, nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func httpError(w http.ResponseWriter, code int, kind string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"error": fmt.Sprintf(format, args...),
		"kind":  kind,
	})
}
