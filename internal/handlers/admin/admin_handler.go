// internal/handlers/admin/admin_handler.go
package admin

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"attendance-service/internal/middleware"
	xerrors "attendance-service/internal/pkg/errors"
	"attendance-service/internal/pkg/response"
	"attendance-service/internal/service/report"
	sessionUsecase "attendance-service/internal/service/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	reportService  *report.ReportService
	sessionService *sessionUsecase.SessionService
	logger         *zap.Logger
}

func NewAdminHandler(reportService *report.ReportService, sessionService *sessionUsecase.SessionService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		reportService:  reportService,
		sessionService: sessionService,
		logger:         logger,
	}
}

// ========== Listing ==========

// ListSessions handles GET /api/sessions
func (h *AdminHandler) ListSessions(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	skip, err := queryInt(c, "skip")
	if err != nil {
		response.Fail(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.Fail(c, err)
		return
	}

	companyID, err := companyScope(c)
	if err != nil {
		response.Fail(c, err)
		return
	}

	page, err := h.reportService.ListSessions(c.Request.Context(), report.ListFilter{
		CompanyID: companyID,
		UserID:    c.Query("userId"),
		Status:    c.Query("status"),
		From:      from,
		To:        to,
		ShowAll:   queryBool(c, "showAll"),
		Skip:      skip,
		Limit:     limit,
	})
	if err != nil {
		h.logFailure("list sessions failed", err)
		response.Fail(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"ok":       true,
		"total":    page.Total,
		"skip":     page.Skip,
		"limit":    page.Limit,
		"count":    page.Count,
		"sessions": page.Sessions,
	})
}

// ExportSessions handles GET /api/sessions/export (format=csv|json).
func (h *AdminHandler) ExportSessions(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		response.Fail(c, err)
		return
	}

	companyID, err := companyScope(c)
	if err != nil {
		response.Fail(c, err)
		return
	}

	exp, err := h.reportService.ExportSessions(c.Request.Context(), report.ExportFilter{
		CompanyID: companyID,
		From:      from,
		To:        to,
	})
	if err != nil {
		h.logFailure("export sessions failed", err)
		response.Fail(c, err)
		return
	}

	if strings.EqualFold(c.DefaultQuery("format", "csv"), "json") {
		response.JSON(c, http.StatusOK, gin.H{"ok": true, "sessions": exp.Sessions})
		return
	}

	filename := fmt.Sprintf("sessions_export_%s.csv", time.Now().Format("20060102"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := exp.WriteCSV(c.Writer); err != nil {
		h.logger.Error("failed to write csv export", zap.Error(err))
	}
}

// companyScope pins company-bound admins to their own company. Admins
// without a company may pick one with ?companyId or see every company.
func companyScope(c *gin.Context) (string, error) {
	requested := c.Query("companyId")
	own, ok := middleware.GetCompanyID(c)
	if !ok || own == "" {
		return requested, nil
	}
	if requested != "" && requested != own {
		return "", xerrors.Forbidden("Cannot access sessions of another company.").
			With("companyId", requested)
	}
	return own, nil
}

// ========== Work report ==========

// WorkReport handles GET /api/sessions/report. Either an explicit from/to
// range or a period type (daily, weekly, monthly, yearly) around date.
func (h *AdminHandler) WorkReport(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		response.Fail(c, xerrors.InvalidInput("User ID is required to fetch work report."))
		return
	}

	from, to, err := parseRange(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if from == nil && to == nil && (c.Query("type") != "" || c.Query("date") != "") {
		ref, err := h.reportService.ParseDay(c.Query("date"))
		if err != nil {
			response.Fail(c, err)
			return
		}
		start, end, err := h.reportService.PeriodRange(c.Query("type"), ref)
		if err != nil {
			response.Fail(c, err)
			return
		}
		from = &start
		end = end.Add(-time.Millisecond)
		to = &end
	}

	rep, err := h.reportService.UserWorkReport(c.Request.Context(), userID, from, to)
	if err != nil {
		h.logFailure("work report failed", err, zap.String("user_id", userID))
		response.Fail(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"ok": true, "report": rep})
}

// ========== Suspect override ==========

// ResolveSuspect handles POST /api/sessions/:id/resolve
func (h *AdminHandler) ResolveSuspect(c *gin.Context) {
	sessionID := c.Param("id")
	adminID := middleware.MustGetUserID(c)

	sess, err := h.sessionService.ResolveSuspect(c.Request.Context(), sessionID, adminID)
	if err != nil {
		h.logFailure("resolve suspect failed", err, zap.String("session_id", sessionID))
		response.Fail(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"ok":        true,
		"sessionId": sess.ID,
		"status":    sess.Status,
	})
}

func (h *AdminHandler) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if xerrors.KindOf(err) == xerrors.KindInternal {
		h.logger.Error(msg, fields...)
		return
	}
	h.logger.Debug(msg, fields...)
}

// ========== Query parsing ==========

func parseRange(c *gin.Context) (*time.Time, *time.Time, error) {
	from, err := queryTime(c, "from")
	if err != nil {
		return nil, nil, err
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// queryTime accepts RFC3339 or a bare YYYY-MM-DD (UTC midnight).
func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, xerrors.InvalidInput(fmt.Sprintf("invalid '%s' date", key)).With(key, raw)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, xerrors.InvalidInput(fmt.Sprintf("'%s' must be an integer", key)).With(key, raw)
	}
	return n, nil
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
