package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"attendance-service/internal/domain/attendance"
	"attendance-service/internal/pkg/password"
	"attendance-service/internal/repository/memory"
	"attendance-service/internal/service/report"
	sessionUsecase "attendance-service/internal/service/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newRouter(t *testing.T) (*gin.Engine, *memory.SessionStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewSessionStore()
	dir := memory.NewDirectory()
	reports := report.NewReportService(store, dir.Users(), time.UTC, zap.NewNop())
	sessions := sessionUsecase.NewSessionService(store, dir.Users(), dir.Devices(), dir.Locations(),
		password.NewHasher(bcrypt.MinCost), attendance.DefaultPolicy(), zap.NewNop())
	h := NewAdminHandler(reports, sessions, zap.NewNop())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", "admin-1")
		if cid := c.GetHeader("X-Company"); cid != "" {
			c.Set("company_id", cid)
		}
	})
	r.GET("/api/sessions", h.ListSessions)
	r.GET("/api/sessions/export", h.ExportSessions)
	r.GET("/api/sessions/report", h.WorkReport)
	r.POST("/api/sessions/:id/resolve", h.ResolveSuspect)
	return r, store
}

func do(t *testing.T, r http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func doAs(t *testing.T, r http.Handler, companyID, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Company", companyID)
	r.ServeHTTP(w, req)
	return w
}

func body(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestListSessionsQuery(t *testing.T) {
	r, store := newRouter(t)
	login := time.Now().Add(-2 * time.Hour)
	store.Insert(&attendance.Session{ID: "s1", UserID: "u1", CompanyID: "acme", LoginAt: login, Status: attendance.StatusActive})
	logout := login.Add(time.Hour)
	store.Insert(&attendance.Session{ID: "s2", UserID: "u2", CompanyID: "acme", LoginAt: login, LogoutAt: &logout, Status: attendance.StatusLoggedOut})

	w := do(t, r, http.MethodGet, "/api/sessions?status=live&limit=10")
	require.Equal(t, http.StatusOK, w.Code)
	out := body(t, w)
	assert.Equal(t, float64(1), out["total"])
	assert.Equal(t, float64(10), out["limit"])

	tests := []struct {
		name  string
		query string
	}{
		{"unknown status", "status=sleeping"},
		{"bad limit", "limit=ten"},
		{"bad date", "from=03/01/2024"},
		{"inverted range", "from=2024-03-02&to=2024-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodGet, "/api/sessions?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_INPUT", body(t, w)["error"])
		})
	}
}

func TestExportSessionsCSV(t *testing.T) {
	r, store := newRouter(t)

	w := do(t, r, http.MethodGet, "/api/sessions/export")
	assert.Equal(t, http.StatusNotFound, w.Code)

	login := time.Now().Add(-3 * time.Hour)
	logout := login.Add(2 * time.Hour)
	store.Insert(&attendance.Session{ID: "s1", UserID: "u1", LoginAt: login, LogoutAt: &logout, Status: attendance.StatusLoggedOut})

	w = do(t, r, http.MethodGet, "/api/sessions/export")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "s1,"))

	w = do(t, r, http.MethodGet, "/api/sessions/export?format=json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body(t, w)["sessions"], 1)
}

func TestWorkReportRequiresUser(t *testing.T) {
	r, _ := newRouter(t)

	w := do(t, r, http.MethodGet, "/api/sessions/report")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/sessions/report?userId=ghost")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/sessions/report?userId=ghost&type=hourly")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolveSuspect(t *testing.T) {
	r, store := newRouter(t)
	store.Insert(&attendance.Session{ID: "s1", UserID: "u1", LoginAt: time.Now(), Status: attendance.StatusSuspect, ConsecutivePoorHeartbeats: 6})
	store.Insert(&attendance.Session{ID: "s2", UserID: "u2", LoginAt: time.Now(), Status: attendance.StatusActive})

	w := do(t, r, http.MethodPost, "/api/sessions/s1/resolve")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", body(t, w)["status"])

	w = do(t, r, http.MethodPost, "/api/sessions/s2/resolve")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, "/api/sessions/nope/resolve")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompanyBoundAdminSeesOwnCompany(t *testing.T) {
	r, store := newRouter(t)
	login := time.Now().Add(-time.Hour)
	store.Insert(&attendance.Session{ID: "s1", UserID: "u1", CompanyID: "acme", LoginAt: login, Status: attendance.StatusActive})
	store.Insert(&attendance.Session{ID: "s2", UserID: "u2", CompanyID: "globex", LoginAt: login, Status: attendance.StatusActive})

	w := do(t, r, http.MethodGet, "/api/sessions")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body(t, w)["total"])

	w = doAs(t, r, "acme", "/api/sessions")
	require.Equal(t, http.StatusOK, w.Code)
	out := body(t, w)
	assert.Equal(t, float64(1), out["total"])
	sessions := out["sessions"].([]any)
	require.Len(t, sessions, 1)
	assert.Equal(t, "acme", sessions[0].(map[string]any)["companyId"])

	w = doAs(t, r, "acme", "/api/sessions?companyId=globex")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", body(t, w)["error"])

	w = doAs(t, r, "acme", "/api/sessions/export?companyId=globex")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
