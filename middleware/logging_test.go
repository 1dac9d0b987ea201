package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type countingNotifier struct {
	count int
}

func (n *countingNotifier) Notify() { n.count++ }

func TestLogRequest_SetsRequestID(t *testing.T) {
	handler := LogRequest(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header to be set")
	}
}

func TestLogRequest_SignalsActivity(t *testing.T) {
	notifier := &countingNotifier{}
	handler := LogRequest(notifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if notifier.count != 3 {
		t.Errorf("Expected 3 activity signals, got %d", notifier.count)
	}
}

func TestLogRequest_CapturesStatus(t *testing.T) {
	handler := LogRequest(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected wrapped writer to pass status through, got %d", rec.Code)
	}
}
