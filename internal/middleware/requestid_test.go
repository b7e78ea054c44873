package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDHonorsClientHeader(t *testing.T) {
	var got string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got != "client-supplied" {
		t.Fatalf("RequestIDFromContext() = %q, want %q", got, "client-supplied")
	}
	if hdr := rec.Header().Get("X-Request-ID"); hdr != "client-supplied" {
		t.Fatalf("response header = %q, want %q", hdr, "client-supplied")
	}
}

func TestRequestIDGeneratesWhenAbsent(t *testing.T) {
	var got string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got == "" {
		t.Fatal("no request id generated")
	}
	if hdr := rec.Header().Get("X-Request-ID"); hdr != got {
		t.Fatalf("response header = %q, want %q", hdr, got)
	}
}

func TestRequestIDFromContextOutsideRequest(t *testing.T) {
	if got := RequestIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()); got != "" {
		t.Fatalf("RequestIDFromContext() = %q outside middleware, want empty", got)
	}
}
