package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Byte-q/used-backend/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusConflict, model.NewDuplicateIdentityError("email"))

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeDuplicateIdentity {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeDuplicateIdentity)
	}
	if body.Field != "email" {
		t.Errorf("field = %q, want %q", body.Field, "email")
	}
	if body.Category != "validation" {
		t.Errorf("category = %q, want %q", body.Category, "validation")
	}
}

// TestWriteErrorResponse_OmitsCause は原因エラーがレスポンスに含まれないことを検証する。
func TestWriteErrorResponse_OmitsCause(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusServiceUnavailable,
		model.NewStoreFailureError(errDial("connection refused to 10.0.0.5")))

	var raw map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	for _, v := range raw {
		if s, ok := v.(string); ok && s == "connection refused to 10.0.0.5" {
			t.Error("cause leaked into response")
		}
	}
	if _, ok := raw["field"]; ok {
		t.Error("empty field should be omitted")
	}
	for _, f := range []string{"code", "message", "category", "action"} {
		if _, ok := raw[f]; !ok {
			t.Errorf("missing required field: %s", f)
		}
	}
}

// TestInternalServerError_ReturnsSystemError は内部エラーが統一フォーマットで返ることを検証する。
func TestInternalServerError_ReturnsSystemError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want %q", body.Code, "INTERNAL_ERROR")
	}
	if body.Action == "" {
		t.Error("action should not be empty")
	}
}

type errDial string

func (e errDial) Error() string { return string(e) }
