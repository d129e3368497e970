package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-control/internal/auth"
	"github.com/ukydev/fleet-control/internal/models"
)

func tokenFor(t *testing.T, svc *auth.Service, role models.Role) string {
	t.Helper()
	token, err := svc.GenerateToken(&models.Operator{ID: "op-" + string(role), Username: string(role) + "-user", Role: role})
	require.NoError(t, err)
	return token
}

func withClaims(r *http.Request, role models.Role) *http.Request {
	claims := &models.Claims{UserID: "op-1", Username: "tester", Role: role}
	return r.WithContext(context.WithValue(r.Context(), OperatorContextKey, claims))
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	svc := auth.NewService("secret", time.Hour)
	mw := NewAuthMiddleware(svc)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, svc, models.RoleDispatcher))
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
			claims, ok := OperatorFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, "dispatcher-user", claims.Username)
			assert.Equal(t, models.RoleDispatcher, claims.Role)
		})

		mw.Authenticate(handler).ServeHTTP(w, req)
		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	rejected := []struct {
		name   string
		header string
	}{
		{"missing authorization header", ""},
		{"invalid token", "Bearer invalid-token"},
		{"wrong scheme", "Token abc"},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handlerCalled := false
			mw.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { handlerCalled = true })).ServeHTTP(w, req)
			assert.False(t, handlerCalled)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	t.Run("skip auth path", func(t *testing.T) {
		for _, path := range []string{"/api/auth/login", "/health"} {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			handlerCalled := false
			mw.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { handlerCalled = true })).ServeHTTP(w, req)
			assert.True(t, handlerCalled, path)
		}
	})
}

func TestAuthMiddleware_RequireRole(t *testing.T) {
	mw := NewAuthMiddleware(auth.NewService("secret", time.Hour))
	handler := mw.RequireRole(models.RoleManager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		role models.Role
		want int
	}{
		{models.RoleAdmin, http.StatusNoContent},
		{models.RoleManager, http.StatusNoContent},
		{models.RoleDispatcher, http.StatusForbidden},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, withClaims(httptest.NewRequest(http.MethodGet, "/", nil), tt.role))
		assert.Equal(t, tt.want, w.Code, tt.role)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_RequirePermission(t *testing.T) {
	mw := NewAuthMiddleware(auth.NewService("secret", time.Hour))

	tests := []struct {
		name       string
		role       models.Role
		permission string
		want       int
	}{
		{"admin manages detours", models.RoleAdmin, models.PermManageDetours, http.StatusOK},
		{"manager manages detours", models.RoleManager, models.PermManageDetours, http.StatusOK},
		{"dispatcher dispatches", models.RoleDispatcher, models.PermDispatch, http.StatusOK},
		{"dispatcher chats", models.RoleDispatcher, models.PermChat, http.StatusOK},
		{"dispatcher cannot manage detours", models.RoleDispatcher, models.PermManageDetours, http.StatusForbidden},
		{"viewer views fleet", models.RoleViewer, models.PermViewFleet, http.StatusOK},
		{"viewer cannot dispatch", models.RoleViewer, models.PermDispatch, http.StatusForbidden},
		{"viewer cannot chat", models.RoleViewer, models.PermChat, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := mw.RequirePermission(tt.permission)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, withClaims(httptest.NewRequest(http.MethodPost, "/", nil), tt.role))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimitMiddleware()
	rl.now = func() time.Time { return now }
	handler := rl.RateLimit(2, time.Minute)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"), "other callers are unaffected")

	now = now.Add(61 * time.Second)
	assert.Equal(t, http.StatusOK, call("10.0.0.1"), "window slides")
}

func TestRateLimitMiddleware_KeysByOperator(t *testing.T) {
	rl := NewRateLimitMiddleware()
	handler := rl.RateLimit(1, time.Minute)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/chat", nil), models.RoleDispatcher)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	assert.Equal(t, "1.2.3.4", getClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "9.9.9.9")
	assert.Equal(t, "9.9.9.9", getClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:4321"
	assert.Equal(t, "192.168.1.5", getClientIP(req))
}
