package httpapi

import (
	"net/http"
	"strings"

	"leadflow-data/internal/service"

	"go.uber.org/zap"
)

const marketersBasePath = "/crm/api/v1/marketers"

// MarketerHandler 平台分配管理 Handler
type MarketerHandler struct {
	assignmentService *service.AssignmentService
	logger            *zap.Logger
}

// NewMarketerHandler 创建分配管理 Handler
func NewMarketerHandler(assignmentService *service.AssignmentService, logger *zap.Logger) *MarketerHandler {
	return &MarketerHandler{
		assignmentService: assignmentService,
		logger:            logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
// 路径格式：/crm/api/v1/marketers/{id}/assignments[/{platformId}]
func (h *MarketerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, marketersBasePath+"/")
	if rest == r.URL.Path || rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 2 && parts[1] == "assignments" && r.Method == http.MethodGet:
		h.ListAssignments(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "assignments" && r.Method == http.MethodPost:
		h.AssignPlatform(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "assignments" && r.Method == http.MethodDelete:
		h.RemoveAssignment(w, r, parts[0], parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListAssignments 分配列表（marketer 只能查自己）
func (h *MarketerHandler) ListAssignments(w http.ResponseWriter, r *http.Request, marketerID string) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	assignments, err := h.assignmentService.ListAssignments(ctx, identity, marketerID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"assignments": assignments}))
}

// AssignPlatform 分配平台（仅管理员；重复分配时复活软删行）
func (h *MarketerHandler) AssignPlatform(w http.ResponseWriter, r *http.Request, marketerID string) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	var body struct {
		PlatformID string `json:"platform_id"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if body.PlatformID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("platform_id is required"))
		return
	}

	assignment, err := h.assignmentService.AssignPlatform(ctx, identity, marketerID, body.PlatformID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(assignment))
}

// RemoveAssignment 取消分配（仅管理员；软删，已持有线索不受影响）
func (h *MarketerHandler) RemoveAssignment(w http.ResponseWriter, r *http.Request, marketerID, platformID string) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	if err := h.assignmentService.RemoveAssignment(ctx, identity, marketerID, platformID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"removed": true}))
}

var _ http.Handler = (*MarketerHandler)(nil)
