package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// --- StaticFetcher Tests ---

func TestStaticFetcher_FetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title> Shop </title></head><body><script src="https://cdn.optimizely.com/js/123.js"></script></body></html>`))
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{})
	content, err := f.Fetch(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content.StatusCode != 200 {
		t.Errorf("expected status 200, got %d", content.StatusCode)
	}
	if content.Title != "Shop" {
		t.Errorf("expected title 'Shop', got %q", content.Title)
	}
	if content.HTML == "" || len(content.Body) == 0 {
		t.Error("expected HTML and body to be populated")
	}
}

func TestStaticFetcher_RawSkipsParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"projectId":"1"}`))
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{})
	content, err := f.Fetch(context.Background(), srv.URL, Options{Raw: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content.HTML != "" {
		t.Errorf("expected no HTML in raw mode, got %q", content.HTML)
	}
	if string(content.Body) != `{"projectId":"1"}` {
		t.Errorf("unexpected body: %s", content.Body)
	}
}

func TestStaticFetcher_SendsHeaders(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{})
	_, err := f.Fetch(context.Background(), srv.URL, Options{
		Raw:     true,
		Headers: map[string]string{"Authorization": "Bearer tok"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
}

func TestStaticFetcher_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{})
	_, err := f.Fetch(context.Background(), srv.URL, Options{Raw: true})
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if got := StatusCode(err); got != http.StatusForbidden {
		t.Errorf("expected status 403 from error, got %d (%v)", got, err)
	}
}

func TestStaticFetcher_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{})
	_, err := f.Fetch(context.Background(), srv.URL, Options{Raw: true, Timeout: 50 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestStaticFetcher_Type(t *testing.T) {
	if got := NewStatic(StaticConfig{}).Type(); got != "static" {
		t.Errorf("expected 'static', got %q", got)
	}
}

// --- Runtime Tests ---

func TestDecodeRuntime(t *testing.T) {
	rt, err := DecodeRuntime([]byte(`{"namespaces":{"optimizely.state":{"a":1},"optimizely.data":null},"errors":{"optimizely.visitor":"boom"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := rt.Namespace(NamespaceOptimizelyState); !ok {
		t.Error("expected state namespace")
	}
	if _, ok := rt.Namespace(NamespaceOptimizelyData); ok {
		t.Error("null namespace should report absent")
	}
	if rt.Err(NamespaceOptimizelyVisitor) != "boom" {
		t.Errorf("expected visitor error, got %q", rt.Err(NamespaceOptimizelyVisitor))
	}
	if !rt.Has("optimizely.") {
		t.Error("expected Has(optimizely.) to be true")
	}
	if rt.Has("shopify") {
		t.Error("expected Has(shopify) to be false")
	}
}

func TestRuntime_NilSafe(t *testing.T) {
	var rt *Runtime
	if _, ok := rt.Namespace("x"); ok {
		t.Error("nil runtime should have no namespaces")
	}
	if rt.Has("x") || rt.Err("x") != "" {
		t.Error("nil runtime should report nothing")
	}
}

func TestDecodeRuntime_Invalid(t *testing.T) {
	if _, err := DecodeRuntime([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid snapshot")
	}
}
