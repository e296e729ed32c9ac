// internal/handlers/session/session_handler.go
package session

import (
	"net/http"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"
	"attendance-service/internal/pkg/response"
	sessionUsecase "attendance-service/internal/service/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SessionHandler struct {
	sessionService *sessionUsecase.SessionService
	logger         *zap.Logger
}

func NewSessionHandler(sessionService *sessionUsecase.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		logger:         logger,
	}
}

// logFailure keeps expected rejections at debug and server faults at error.
func (h *SessionHandler) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if xerrors.KindOf(err) == xerrors.KindInternal {
		h.logger.Error(msg, fields...)
		return
	}
	h.logger.Debug(msg, fields...)
}

// ========== Login ==========

func (h *SessionHandler) Login(c *gin.Context) {
	var req attendance.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "username, password and deviceId are required", err)
		return
	}
	req.IPAddress = c.ClientIP()

	resp, err := h.sessionService.Login(c.Request.Context(), &req)
	if err != nil {
		h.logFailure("login failed", err,
			zap.String("username", req.Username),
			zap.String("device_id", req.DeviceID),
			zap.String("ip", req.IPAddress),
		)
		response.Fail(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resp)
}

// ========== Heartbeat ==========

func (h *SessionHandler) Heartbeat(c *gin.Context) {
	var req attendance.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "sessionId and deviceId are required", err)
		return
	}

	resp, err := h.sessionService.Heartbeat(c.Request.Context(), &req)
	if err != nil {
		h.logFailure("heartbeat rejected", err,
			zap.String("session_id", req.SessionID),
			zap.String("device_id", req.DeviceID),
		)
		response.Fail(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resp)
}

// ========== Logout ==========

func (h *SessionHandler) Logout(c *gin.Context) {
	var req attendance.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "sessionId and deviceId are required", err)
		return
	}

	resp, err := h.sessionService.Logout(c.Request.Context(), &req)
	if err != nil {
		h.logFailure("logout failed", err, zap.String("session_id", req.SessionID))
		response.Fail(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resp)
}

// ========== Verify ==========

func (h *SessionHandler) VerifySession(c *gin.Context) {
	var req attendance.VerifySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "sessionId is required", err)
		return
	}

	resp, err := h.sessionService.VerifySession(c.Request.Context(), req.SessionID)
	if err != nil {
		h.logFailure("verify session failed", err, zap.String("session_id", req.SessionID))
		response.Fail(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resp)
}
