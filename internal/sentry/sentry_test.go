package sentry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInit_EmptyDSN(t *testing.T) {
	assert.NoError(t, Init("", "test", "recipe-gantt", "0.1.0"))
}

func TestCaptureError_NoClient(t *testing.T) {
	assert.NotPanics(t, func() {
		CaptureError(errors.New("boom"), "run-1", "https://example.com")
		CaptureError(nil, "run-2", "https://example.com")
	})
}

func TestHTTPMiddleware_RecoversPanic(t *testing.T) {
	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/gantt", nil)

	assert.NotPanics(t, func() { h.ServeHTTP(rr, req) })
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHTTPMiddleware_PassesThrough(t *testing.T) {
	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}
