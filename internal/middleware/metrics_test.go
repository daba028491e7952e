package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeHTTPRecorder struct {
	statuses []int
	methods  []string
}

func (f *fakeHTTPRecorder) RecordHTTPStatus(statusCode int) {
	f.statuses = append(f.statuses, statusCode)
}

func (f *fakeHTTPRecorder) RecordRequestDuration(method string, d time.Duration) {
	f.methods = append(f.methods, method)
}

func TestMetricsMiddleware_RecordsStatusAndDuration(t *testing.T) {
	rec := &fakeHTTPRecorder{}
	handler := NewMetricsMiddleware(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("{}"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/missing", nil))

	if len(rec.statuses) != 2 || rec.statuses[0] != 200 || rec.statuses[1] != 404 {
		t.Errorf("statuses = %v, want [200 404]", rec.statuses)
	}
	if len(rec.methods) != 2 || rec.methods[0] != "GET" || rec.methods[1] != "DELETE" {
		t.Errorf("methods = %v, want [GET DELETE]", rec.methods)
	}
}
