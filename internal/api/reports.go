package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bohdanPatriot/polska-jednostka-online/internal/api/middleware"
	"github.com/bohdanPatriot/polska-jednostka-online/internal/repository"
	"github.com/bohdanPatriot/polska-jednostka-online/pkg/api/response"
)

type reportService interface {
	ValidateSubmit(reporterID, targetID, targetType, reason, description string) error
	Submit(ctx context.Context, reporterID, targetID, targetType, reason, description string) (*repository.Report, error)
}

type ReportHandler struct {
	reports  reportService
	throttle *middleware.ActionThrottle
}

func NewReportHandler(reports reportService, throttle *middleware.ActionThrottle) *ReportHandler {
	return &ReportHandler{reports: reports, throttle: throttle}
}

type submitReportRequest struct {
	TargetID    string `json:"target_id"`
	TargetType  string `json:"target_type"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// Submit files a moderation report. Only valid reports count against the
// reporter's quota.
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req submitReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	if mapServiceError(w, h.reports.ValidateSubmit(userID, req.TargetID, req.TargetType, req.Reason, req.Description)) {
		return
	}
	if _, ok := h.throttle.Admit(w, r); !ok {
		return
	}

	rep, err := h.reports.Submit(ctx, userID, req.TargetID, req.TargetType, req.Reason, req.Description)
	if mapServiceError(w, err) {
		return
	}

	response.JSON(w, http.StatusCreated, map[string]any{"status": "ok", "id": rep.ID, "report_status": rep.Status})
}
