// Package surface turns registered actions into HTTP routes and an OpenAPI
// document. Both are built from the same operation list in one pass, so the
// route table and the published description always agree.
package surface

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"

	"github.com/aupadhyay/thoughts/internal/action"
)

const defaultMaxBodyBytes = 10 << 20 // 10MB, pasted images travel as data URIs

// Outcome labels passed to observers.
const (
	OutcomeOK = "ok"
)

// Observer is notified after every dispatched call.
type Observer func(op, outcome string, d time.Duration)

// Route is one bound HTTP endpoint.
type Route struct {
	Method    string
	Path      string
	Operation action.Operation
	Handler   http.HandlerFunc
}

// Info describes the API in the generated document.
type Info struct {
	Title       string
	Version     string
	Description string
	Servers     []string
}

// Surface is the generated route table plus its description document.
type Surface struct {
	Routes   []Route
	Document *openapi3.T

	logger   *slog.Logger
	observer Observer
	maxBody  int64
}

// Option configures Generate.
type Option func(*Surface)

// WithLogger sets the logger used for failed calls.
func WithLogger(l *slog.Logger) Option {
	return func(s *Surface) { s.logger = l }
}

// WithObserver registers a callback invoked after every call.
func WithObserver(o Observer) Option {
	return func(s *Surface) { s.observer = o }
}

// WithMaxBodyBytes limits the request body size accepted by action routes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Surface) { s.maxBody = n }
}

// Generate binds one POST route per operation and describes each in the
// document, in the order given.
func Generate(ops []action.Operation, info Info, opts ...Option) (*Surface, error) {
	s := &Surface{
		logger:  slog.Default(),
		maxBody: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	doc := newDocument(info)
	seen := make(map[string]bool, len(ops))
	for _, op := range ops {
		path := "/" + op.Name()
		if seen[path] {
			return nil, fmt.Errorf("duplicate route %s", path)
		}
		seen[path] = true

		s.Routes = append(s.Routes, Route{
			Method:    http.MethodPost,
			Path:      path,
			Operation: op,
			Handler:   s.handler(op),
		})
		doc.Paths.Set(path, &openapi3.PathItem{Post: describeOperation(op)})
	}
	s.Document = doc
	return s, nil
}

// Mount registers every route on r.
func (s *Surface) Mount(r chi.Router) {
	for _, rt := range s.Routes {
		r.Method(rt.Method, rt.Path, rt.Handler)
	}
}

// ErrorBody is the JSON payload of a failed call.
type ErrorBody struct {
	Error      string             `json:"error"`
	Kind       string             `json:"kind,omitempty"`
	Violations []action.Violation `json:"violations,omitempty"`
}

func (s *Surface) handler(op action.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
		if err != nil {
			s.fail(w, op.Name(), start, &action.Error{
				Kind:       action.InvalidInput,
				Op:         op.Name(),
				Violations: []action.Violation{{Message: "reading request body: " + err.Error()}},
				Err:        err,
			})
			return
		}

		out, err := op.Invoke(r.Context(), body)
		if err != nil {
			s.fail(w, op.Name(), start, err)
			return
		}

		s.observe(op.Name(), OutcomeOK, time.Since(start))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(out)
	}
}

func (s *Surface) fail(w http.ResponseWriter, name string, start time.Time, err error) {
	kind := action.KindOf(err)
	if kind == "" {
		kind = action.OperationFailed
	}
	s.observe(name, string(kind), time.Since(start))

	switch kind {
	case action.OutputContractViolation:
		s.logger.Error("action returned invalid output", "op", name, "error", err)
	case action.OperationFailed:
		s.logger.Warn("action failed", "op", name, "error", err)
	default:
		s.logger.Debug("action rejected", "op", name, "kind", kind, "error", err)
	}

	writeJSON(w, http.StatusInternalServerError, ErrorBody{
		Error:      errorMessage(err),
		Kind:       string(kind),
		Violations: action.ViolationsOf(err),
	})
}

func (s *Surface) observe(op, outcome string, d time.Duration) {
	if s.observer != nil {
		s.observer(op, outcome, d)
	}
}

// errorMessage strips the dispatcher prefix from implementation failures so
// callers see the underlying cause.
func errorMessage(err error) string {
	var ae *action.Error
	if errors.As(err, &ae) && ae.Kind == action.OperationFailed && ae.Err != nil {
		return ae.Err.Error()
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
