package httpapi

import (
	"net/http"

	"leadflow-data/internal/service"

	"go.uber.org/zap"
)

// AnalyticsHandler 管理面板统计 Handler
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
	logger           *zap.Logger
}

// NewAnalyticsHandler 创建统计 Handler
func NewAnalyticsHandler(analyticsService *service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// GetDashboard 面板汇总（仅管理员）
func (h *AnalyticsHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	stats, err := h.analyticsService.GetDashboardStats(ctx, identity)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(stats))
}
