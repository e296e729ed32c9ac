package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"
	"attendance-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier struct {
	valid map[string]bool
}

func (s stubVerifier) VerifySession(_ context.Context, id string) (*attendance.VerifySessionResponse, error) {
	valid, ok := s.valid[id]
	if !ok {
		return nil, xerrors.SessionNotFound()
	}
	status := attendance.StatusActive
	if !valid {
		status = attendance.StatusExpired
	}
	return &attendance.VerifySessionResponse{OK: true, Valid: valid, SessionID: id, Status: status}, nil
}

func newManager(t *testing.T) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewEphemeral(jwt.Config{Issuer: "attendance-service", Audience: "attendance-clients", TTL: time.Hour})
	require.NoError(t, err)
	return m
}

func issue(t *testing.T, m *jwt.Manager, sessionID, role string) string {
	t.Helper()
	token, err := m.Generator.IssueSessionToken(jwt.SessionToken{SessionID: sessionID, UserID: "u-" + sessionID, Role: role})
	require.NoError(t, err)
	return token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuth(t *testing.T) {
	m := newManager(t)
	mw := NewAuthMiddleware(m.Verifier, stubVerifier{valid: map[string]bool{"live": true, "closed": false}})

	r := gin.New()
	r.GET("/me", mw.Auth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": MustGetUserID(c), "admin": IsAdmin(c)})
	})
	admin := r.Group("/admin", mw.AdminOnly()...)
	admin.GET("", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing token", "/me", "", http.StatusUnauthorized},
		{"garbage token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"live session", "/me", "Bearer " + issue(t, m, "live", "employee"), http.StatusOK},
		{"closed session", "/me", "Bearer " + issue(t, m, "closed", "employee"), http.StatusUnauthorized},
		{"unknown session", "/me", "Bearer " + issue(t, m, "gone", "employee"), http.StatusUnauthorized},
		{"query token", "/me?token=" + issue(t, m, "live", "employee"), "", http.StatusOK},
		{"employee on admin route", "/admin", "Bearer " + issue(t, m, "live", "employee"), http.StatusForbidden},
		{"admin on admin route", "/admin", "Bearer " + issue(t, m, "live", "admin"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAuthSetsContext(t *testing.T) {
	m := newManager(t)
	mw := NewAuthMiddleware(m.Verifier, stubVerifier{valid: map[string]bool{"live": true}})

	r := gin.New()
	r.GET("/me", mw.Auth(), func(c *gin.Context) {
		sid, _ := GetSessionID(c)
		role, _ := GetRole(c)
		c.JSON(http.StatusOK, gin.H{"sessionId": sid, "role": role, "auth": IsAuthenticated(c)})
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, m, "live", "admin"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "live", body["sessionId"])
	assert.Equal(t, "admin", body["role"])
	assert.Equal(t, true, body["auth"])
}

func TestCronAuth(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		bearer    string
		header    string
		authz     string
		status    int
		errorKind string
	}{
		{"not configured", "", "", "x", "", http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"header match", "s1", "s1", "s1", "", http.StatusOK, ""},
		{"bearer match", "s1", "v1", "", "Bearer v1", http.StatusOK, ""},
		{"bearer with header secret", "s1", "v1", "", "Bearer s1", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"header wrong", "s1", "s1", "nope", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"header only configured for bearer", "", "v1", "v1", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"nothing sent", "s1", "s1", "", "", http.StatusUnauthorized, "UNAUTHORIZED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/job", CronAuth(tt.secret, tt.bearer), func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodPost, "/job", nil)
			if tt.header != "" {
				req.Header.Set(CronSecretHeader, tt.header)
			}
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code)
			if tt.errorKind != "" {
				assert.Equal(t, tt.errorKind, decode(t, w)["error"])
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(LoggingMiddleware(zap.NewNop()), RecoveryMiddleware(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decode(t, w)["error"])
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestLoggingMiddlewareKeepsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(LoggingMiddleware(zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
