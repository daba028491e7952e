package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Byte-q/used-backend/internal/auth"
	"github.com/Byte-q/used-backend/internal/model"
)

// --- モック定義 ---

type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, creds auth.Credentials) (*model.Principal, error)
	calls          int
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, creds auth.Credentials) (*model.Principal, error) {
	m.calls++
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, creds)
	}
	return nil, nil
}

// fixedAuthenticator はセッションID "valid-session" とトークン "valid-token" を受け付ける。
func fixedAuthenticator(role model.Role) *mockAuthenticator {
	return &mockAuthenticator{
		authenticateFn: func(ctx context.Context, creds auth.Credentials) (*model.Principal, error) {
			user := &model.User{ID: "user-123", Username: "alice", Role: role}
			if creds.SessionID == "valid-session" {
				return &model.Principal{User: user, Method: model.AuthMethodSession, SessionID: creds.SessionID}, nil
			}
			if creds.BearerToken == "valid-token" {
				return &model.Principal{User: user, Method: model.AuthMethodBearer}, nil
			}
			return nil, nil
		},
	}
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Code
}

// --- テスト ---

func TestAuthenticateMiddleware_SessionCookie_InjectsPrincipal(t *testing.T) {
	mw := NewAuthenticateMiddleware(fixedAuthenticator(model.RoleUser))

	var captured *model.Principal
	var capturedUserID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = PrincipalFromContext(r.Context())
		capturedUserID, _ = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if captured == nil {
		t.Fatal("expected principal in context")
	}
	if captured.Method != model.AuthMethodSession {
		t.Errorf("method = %q, want %q", captured.Method, model.AuthMethodSession)
	}
	if capturedUserID != "user-123" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-123")
	}
}

func TestAuthenticateMiddleware_BearerToken_InjectsPrincipal(t *testing.T) {
	mw := NewAuthenticateMiddleware(fixedAuthenticator(model.RoleUser))

	var captured *model.Principal
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = PrincipalFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if captured == nil {
		t.Fatal("expected principal in context")
	}
	if captured.Method != model.AuthMethodBearer {
		t.Errorf("method = %q, want %q", captured.Method, model.AuthMethodBearer)
	}
}

func TestAuthenticateMiddleware_NoCredentials_SkipsAuthenticator(t *testing.T) {
	authn := fixedAuthenticator(model.RoleUser)
	mw := NewAuthenticateMiddleware(authn)

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := PrincipalFromContext(r.Context()); ok {
			t.Error("anonymous request should have no principal")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	if !called {
		t.Error("handler should have been called")
	}
	if authn.calls != 0 {
		t.Errorf("authenticator calls = %d, want 0", authn.calls)
	}
}

func TestAuthenticateMiddleware_NeverRejects(t *testing.T) {
	tests := []struct {
		name  string
		authn *mockAuthenticator
	}{
		{"unknown credentials", fixedAuthenticator(model.RoleUser)},
		{"store failure", &mockAuthenticator{
			authenticateFn: func(ctx context.Context, creds auth.Credentials) (*model.Principal, error) {
				return nil, model.NewStoreFailureError(errors.New("connection reset"))
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewAuthenticateMiddleware(tt.authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if _, ok := PrincipalFromContext(r.Context()); ok {
					t.Error("expected no principal")
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale-session"})
			req.Header.Set("Authorization", "Bearer forged")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if !called {
				t.Error("handler should have been called")
			}
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
		})
	}
}

func TestCredentialsFromRequest(t *testing.T) {
	tests := []struct {
		name        string
		cookie      string
		header      string
		wantSession string
		wantBearer  string
	}{
		{"none", "", "", "", ""},
		{"cookie only", "sid", "", "sid", ""},
		{"bearer only", "", "Bearer abc.def.ghi", "", "abc.def.ghi"},
		{"lowercase scheme", "", "bearer abc", "", "abc"},
		{"both", "sid", "Bearer tok", "sid", "tok"},
		{"basic scheme ignored", "", "Basic dXNlcjpwYXNz", "", ""},
		{"scheme without token", "", "Bearer", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			got := CredentialsFromRequest(req)
			if got.SessionID != tt.wantSession {
				t.Errorf("SessionID = %q, want %q", got.SessionID, tt.wantSession)
			}
			if got.BearerToken != tt.wantBearer {
				t.Errorf("BearerToken = %q, want %q", got.BearerToken, tt.wantBearer)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := NewAuthenticateMiddleware(fixedAuthenticator(model.RoleUser))(RequireAuth(ok))

	t.Run("anonymous is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if code := decodeErrorCode(t, w); code != model.ErrCodeUnauthorized {
			t.Errorf("code = %q, want %q", code, model.ErrCodeUnauthorized)
		}
	})

	t.Run("bearer passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name     string
		role     model.Role
		withAuth bool
		want     int
		wantCode string
	}{
		{"anonymous", model.RoleAdmin, false, http.StatusUnauthorized, model.ErrCodeUnauthorized},
		{"regular user", model.RoleUser, true, http.StatusForbidden, model.ErrCodeForbidden},
		{"admin", model.RoleAdmin, true, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAuthenticateMiddleware(fixedAuthenticator(tt.role))(RequireAdmin(ok))

			req := httptest.NewRequest(http.MethodDelete, "/api/users/1", nil)
			if tt.withAuth {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.wantCode != "" {
				if code := decodeErrorCode(t, w); code != tt.wantCode {
					t.Errorf("code = %q, want %q", code, tt.wantCode)
				}
			}
		})
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for missing user ID")
	}

	ctx := ContextWithUserID(context.Background(), "user-9")
	got, err := UserIDFromContext(ctx)
	if err != nil || got != "user-9" {
		t.Errorf("UserIDFromContext = (%q, %v), want (%q, nil)", got, err, "user-9")
	}
}
