package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/aupadhyay/thoughts/internal/metrics"
	"github.com/aupadhyay/thoughts/internal/surface"
	"github.com/aupadhyay/thoughts/internal/thoughts"
)

const testToken = "test-token-12345"

func setupHandler(t *testing.T, token string) http.Handler {
	t.Helper()
	reg, _ := newTestRegistry(t)
	coll := metrics.NewCollector()

	surf, err := surface.Generate(reg.Operations(), thoughts.APIInfo("http://localhost:3000"),
		surface.WithObserver(coll.ObserveAction))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	h, err := NewHandler(Deps{Surface: surf, Metrics: coll, Token: token})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h
}

func doReq(h http.Handler, method, url, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := setupHandler(t, testToken)
	rec := doReq(h, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestCreateAndListOverHTTP(t *testing.T) {
	h := setupHandler(t, "")

	rec := doReq(h, http.MethodPost, "/createThought", `{"content":"ship it","metadata":{"track":{"artist":"Khruangbin","track":"Maria También"}}}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("createThought: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doReq(h, http.MethodPost, "/getThoughts", `{}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("getThoughts: expected 200, got %d", rec.Code)
	}
	var list []thoughts.Thought
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(list) != 1 || list[0].Content != "ship it" || list[0].Metadata.Track.Artist != "Khruangbin" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestActionErrorIs500(t *testing.T) {
	h := setupHandler(t, "")

	rec := doReq(h, http.MethodPost, "/createThought", `{"content":""}`, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body["error"] == "" || body["kind"] != "invalid_input" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestBearerAuthOnActionsOnly(t *testing.T) {
	h := setupHandler(t, testToken)

	if rec := doReq(h, http.MethodPost, "/getThoughtCount", `{}`, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", rec.Code)
	}
	if rec := doReq(h, http.MethodPost, "/getThoughtCount", `{}`, "wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: expected 401, got %d", rec.Code)
	}
	if rec := doReq(h, http.MethodPost, "/getThoughtCount", `{}`, testToken); rec.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", rec.Code)
	}
	for _, path := range []string{"/health", "/openapi.json", "/metrics"} {
		if rec := doReq(h, http.MethodGet, path, "", ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 without token, got %d", path, rec.Code)
		}
	}
}

func TestOpenAPIDocumentServed(t *testing.T) {
	h := setupHandler(t, "")

	rec := doReq(h, http.MethodGet, "/openapi.json", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	doc, err := openapi3.NewLoader().LoadFromData(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("loading served document: %v", err)
	}
	if doc.Info.Title != thoughts.APITitle {
		t.Fatalf("title = %q", doc.Info.Title)
	}
	for _, name := range []string{"createThought", "getThoughts", "importDatabase", "deleteAllThoughts", "getDatabasePath", "getThoughtCount"} {
		item := doc.Paths.Value("/" + name)
		if item == nil || item.Post == nil {
			t.Fatalf("document missing POST /%s", name)
		}
		if rec := doReq(h, http.MethodPost, "/"+name, `{"filePath":"/nonexistent.db"}`, ""); rec.Code == http.StatusNotFound || rec.Code == http.StatusMethodNotAllowed {
			t.Fatalf("route /%s not bound (status %d)", name, rec.Code)
		}
	}
}

func TestMetricsRecordActions(t *testing.T) {
	h := setupHandler(t, "")
	doReq(h, http.MethodPost, "/getThoughtCount", `{}`, "")

	rec := doReq(h, http.MethodGet, "/metrics", "", "")
	body := rec.Body.String()
	if !strings.Contains(body, `thoughts_action_calls_total{op="getThoughtCount",outcome="ok"} 1`) {
		t.Fatalf("action metric missing from /metrics output")
	}
	if !strings.Contains(body, `route="/getThoughtCount"`) {
		t.Fatalf("http metric missing route label")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := setupHandler(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/createThought", nil)
	req.Header.Set("Origin", "http://localhost:1420")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestNewHandlerRequiresSurface(t *testing.T) {
	if _, err := NewHandler(Deps{}); err == nil {
		t.Fatal("expected error without surface")
	}
}
