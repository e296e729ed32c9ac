package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"attendance-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("INTERNAL_CRON_SECRET", "cron-secret")
	t.Setenv("REPORT_TIMEZONE", "UTC")
	t.Setenv("JWT_PRIVATE_KEY_PATH", filepath.Join(dir, "missing_private.pem"))
	t.Setenv("JWT_PUBLIC_KEY_PATH", filepath.Join(dir, "missing_public.pem"))

	s := NewServer(config.Load(), zap.NewNop())
	require.NoError(t, s.Build(context.Background()))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func serve(s *Server, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		status int
	}{
		{"health", http.MethodGet, "/health", nil, http.StatusOK},
		{"prometheus", http.MethodGet, "/metrics", nil, http.StatusOK},
		{"login validates body", http.MethodPost, "/api/auth/login", nil, http.StatusBadRequest},
		{"heartbeat validates body", http.MethodPost, "/api/heartbeat", nil, http.StatusBadRequest},
		{"admin needs token", http.MethodGet, "/api/sessions", nil, http.StatusUnauthorized},
		{"resolve needs token", http.MethodPost, "/api/sessions/s1/resolve", nil, http.StatusUnauthorized},
		{"cron needs secret", http.MethodPost, "/internal/cron/auto-logout", nil, http.StatusUnauthorized},
		{"cron with secret", http.MethodPost, "/internal/cron/auto-logout", map[string]string{"X-Internal-Cron-Secret": "cron-secret"}, http.StatusOK},
		{"cron bearer", http.MethodPost, "/internal/metrics", map[string]string{"Authorization": "Bearer cron-secret"}, http.StatusOK},
		{"ws needs token", http.MethodGet, "/ws", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, tt.method, tt.path, tt.header)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestBuildRejectsBadConfig(t *testing.T) {
	t.Setenv("STORE_DRIVER", "cassandra")
	s := NewServer(config.Load(), zap.NewNop())
	assert.Error(t, s.Build(context.Background()))
	assert.NoError(t, s.Shutdown(context.Background()))
}
