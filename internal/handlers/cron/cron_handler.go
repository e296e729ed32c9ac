// internal/handlers/cron/cron_handler.go
package cron

import (
	"net/http"

	"attendance-service/internal/pkg/response"
	"attendance-service/internal/service/reconcile"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CronHandler exposes the reconciliation jobs to an external scheduler.
type CronHandler struct {
	scheduler *reconcile.Scheduler
	logger    *zap.Logger
}

func NewCronHandler(scheduler *reconcile.Scheduler, logger *zap.Logger) *CronHandler {
	return &CronHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

func (h *CronHandler) run(c *gin.Context, job string) (*reconcile.JobResult, bool) {
	res, err := h.scheduler.Run(c.Request.Context(), job)
	if err != nil {
		h.logger.Error("cron job failed", zap.String("job", job), zap.Error(err))
		response.Fail(c, err)
		return nil, false
	}
	return res, true
}

// AutoLogout handles POST /internal/cron/auto-logout
func (h *CronHandler) AutoLogout(c *gin.Context) {
	res, ok := h.run(c, reconcile.JobAutoLogout)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"ok":                 true,
		"autoLoggedOutCount": res.Count,
		"skipped":            res.Skipped,
	})
}

// StaleHeartbeats handles POST /internal/cron/stale-heartbeats
func (h *CronHandler) StaleHeartbeats(c *gin.Context) {
	res, ok := h.run(c, reconcile.JobStaleHeartbeat)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"ok":            true,
		"timedOutCount": res.Count,
		"skipped":       res.Skipped,
	})
}

// DailyAggregate handles POST /internal/cron/daily-aggregate
func (h *CronHandler) DailyAggregate(c *gin.Context) {
	res, ok := h.run(c, reconcile.JobDailyAggregate)
	if !ok {
		return
	}
	body := gin.H{
		"ok":             true,
		"closedSessions": res.Count,
		"skipped":        res.Skipped,
	}
	if res.Daily != nil {
		body["splitSessions"] = res.Daily.SplitSessions
		body["createdRecords"] = res.Daily.CreatedRecords
	}
	response.JSON(c, http.StatusOK, body)
}

// Metrics handles POST /internal/metrics
func (h *CronHandler) Metrics(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{
		"ok":      true,
		"metrics": h.scheduler.Stats(),
	})
}
