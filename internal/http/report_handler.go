package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-chat/internal/service"
)

type ReportHandler struct {
	logger  *zap.Logger
	reports *service.ReportService
}

func NewReportHandler(logger *zap.Logger, reports *service.ReportService) *ReportHandler {
	return &ReportHandler{logger: logger, reports: reports}
}

// Report maneja POST /users/report/:to_user_id/.
func (h *ReportHandler) Report(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	toID, ok := idParam(c, "to_user_id")
	if !ok {
		return
	}
	var req struct {
		Reason  string `json:"reason" binding:"required"`
		Details string `json:"details"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "reason is required")
		return
	}

	report, err := h.reports.Report(c.Request.Context(), claims.UserID, toID, req.Reason, req.Details)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			errorJSON(c, http.StatusNotFound, "user not found")
		case errors.Is(err, service.ErrSelfAction),
			errors.Is(err, service.ErrInvalidReportReason):
			errorJSON(c, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("report failed", zap.Error(err))
			errorJSON(c, http.StatusInternalServerError, "could not create report")
		}
		return
	}
	c.JSON(http.StatusCreated, report)
}
