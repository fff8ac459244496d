package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/optiscope/pkg/fetcher"
	"github.com/jmylchreest/optiscope/pkg/inspector"
	"github.com/jmylchreest/optiscope/pkg/schema"
)

type fakeInspector struct {
	report *inspector.Report
	err    error
	calls  []string
}

func (f *fakeInspector) Inspect(_ context.Context, rawURL string) (*inspector.Report, error) {
	f.calls = append(f.calls, rawURL)
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func newTestServer(f *fakeInspector) http.Handler {
	h := NewHandler(f)
	h.now = func() time.Time { return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC) }
	return NewRouter(h)
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON response: %v\n%s", err, rec.Body.String())
	}
	return got
}

func sampleReport() *inspector.Report {
	cfg := schema.NewConfiguration()
	cfg.PrimaryIdentifier = "123"
	cfg.Experiments = []schema.Experiment{
		{ID: "1", Status: schema.StatusRunning},
		{ID: "2", Status: schema.StatusPaused},
	}
	return &inspector.Report{
		URL:             "https://shop.example.com/",
		Optimizely:      cfg,
		NetworkRequests: []fetcher.NetworkRequest{{URL: "https://www.google-analytics.com/g/collect", Method: "POST"}},
		Screenshot:      "data:image/png;base64,iVBORw==",
	}
}

// --- Inspect Tests ---

func TestInspect_Success(t *testing.T) {
	f := &fakeInspector{report: sampleReport()}
	rec := do(t, newTestServer(f), http.MethodPost, "/api/inspect", `{"url":"https://shop.example.com/"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode(t, rec)
	if got["success"] != true {
		t.Errorf("expected success, got %v", got["success"])
	}
	if got["screenshot"] != "data:image/png;base64,iVBORw==" {
		t.Errorf("unexpected screenshot %v", got["screenshot"])
	}
	if reqs, ok := got["networkRequests"].([]any); !ok || len(reqs) != 1 {
		t.Errorf("unexpected network requests %v", got["networkRequests"])
	}
	if got["timestamp"] != "2026-10-01T12:00:00Z" {
		t.Errorf("unexpected timestamp %v", got["timestamp"])
	}
	data, _ := got["data"].(map[string]any)
	if _, ok := data["optimizely"]; !ok {
		t.Errorf("expected optimizely section in data, got %v", data)
	}
	if len(f.calls) != 1 || f.calls[0] != "https://shop.example.com/" {
		t.Errorf("unexpected inspector calls %v", f.calls)
	}
}

func TestInspect_RunningOnly(t *testing.T) {
	f := &fakeInspector{report: sampleReport()}
	rec := do(t, newTestServer(f), http.MethodPost, "/api/inspect", `{"url":"https://shop.example.com/","runningOnly":true}`)

	data, _ := decode(t, rec)["data"].(map[string]any)
	opt, _ := data["optimizely"].(map[string]any)
	exps, _ := opt["experiments"].([]any)
	if len(exps) != 1 {
		t.Errorf("expected only the running experiment, got %v", opt["experiments"])
	}
}

func TestInspect_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing url", `{}`, "URL is required"},
		{"empty url", `{"url":""}`, "URL is required"},
		{"bad protocol", `{"url":"ftp://example.com"}`, "Invalid URL provided"},
		{"relative url", `{"url":"example.com"}`, "Invalid URL provided"},
		{"not json", `url=https://example.com`, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeInspector{report: sampleReport()}
			rec := do(t, newTestServer(f), http.MethodPost, "/api/inspect", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if got := decode(t, rec); got["error"] != tt.want || got["success"] != false {
				t.Errorf("unexpected body %v", got)
			}
			if len(f.calls) != 0 {
				t.Error("inspector should not be called")
			}
		})
	}
}

func TestInspect_Failure(t *testing.T) {
	f := &fakeInspector{err: errors.New("fetch failed: fetch timeout")}
	rec := do(t, newTestServer(f), http.MethodPost, "/api/inspect", `{"url":"https://slow.example.com/"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	got := decode(t, rec)
	if got["success"] != false || got["error"] != "fetch failed: fetch timeout" {
		t.Errorf("unexpected body %v", got)
	}
}

func TestInspect_MethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(&fakeInspector{}), http.MethodGet, "/api/inspect", "")

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if got := decode(t, rec); got["error"] != "Method not allowed" {
		t.Errorf("unexpected body %v", got)
	}
}

// --- Middleware Tests ---

func TestCORS_Preflight(t *testing.T) {
	f := &fakeInspector{}
	rec := do(t, newTestServer(f), http.MethodOptions, "/api/inspect", "")

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected Access-Control-Allow-Origin: *")
	}
	if len(f.calls) != 0 {
		t.Error("preflight should not reach the handler")
	}
}

func TestCORS_HeadersOnResponses(t *testing.T) {
	rec := do(t, newTestServer(&fakeInspector{}), http.MethodGet, "/healthz", "")

	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header on normal responses")
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(&fakeInspector{}), http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode(t, rec); got["status"] != "ok" || got["version"] == "" {
		t.Errorf("unexpected body %v", got)
	}
}

func TestNotFound(t *testing.T) {
	rec := do(t, newTestServer(&fakeInspector{}), http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
