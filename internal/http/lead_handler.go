package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"leadflow-data/internal/service"

	"go.uber.org/zap"
)

const leadsBasePath = "/crm/api/v1/leads"

// LeadHandler 线索管理 Handler
type LeadHandler struct {
	leadService       *service.LeadService
	assignmentService *service.AssignmentService
	shareService      *service.ShareService
	logger            *zap.Logger
}

// NewLeadHandler 创建线索管理 Handler
func NewLeadHandler(
	leadService *service.LeadService,
	assignmentService *service.AssignmentService,
	shareService *service.ShareService,
	logger *zap.Logger,
) *LeadHandler {
	return &LeadHandler{
		leadService:       leadService,
		assignmentService: assignmentService,
		shareService:      shareService,
		logger:            logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *LeadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 路由分发
	path := r.URL.Path

	switch {
	case path == leadsBasePath && r.Method == http.MethodPost:
		h.CreateLead(w, r)
	case path == leadsBasePath && r.Method == http.MethodGet:
		h.ListLeads(w, r)
	case path == leadsBasePath+"/bulk-status" && r.Method == http.MethodPost:
		h.BulkUpdateStatus(w, r)
	case strings.HasSuffix(path, "/claim") && r.Method == http.MethodPost:
		h.ClaimLead(w, r)
	case strings.HasSuffix(path, "/opt-out") && r.Method == http.MethodPost:
		h.OptOutLead(w, r)
	case strings.HasSuffix(path, "/share") && r.Method == http.MethodPost:
		h.ShareLead(w, r)
	case strings.HasPrefix(path, leadsBasePath+"/") && r.Method == http.MethodGet:
		h.GetLead(w, r)
	case strings.HasPrefix(path, leadsBasePath+"/") && r.Method == http.MethodPut:
		h.UpdateLead(w, r)
	case strings.HasPrefix(path, leadsBasePath+"/") && r.Method == http.MethodDelete:
		h.DeleteLead(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// leadIDFromPath 提取 /crm/api/v1/leads/{id}[/suffix] 中的 id
func leadIDFromPath(path, suffix string) string {
	id := strings.TrimPrefix(path, leadsBasePath+"/")
	id = strings.TrimSuffix(id, suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

// CreateLead 创建线索
// marketer 创建即持有；管理员可携 assign_to_pool 投入公共池
func (h *LeadHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	var body struct {
		PlatformID      string          `json:"platform_id"`
		LeadData        json.RawMessage `json:"lead_data"`
		CurrentStatus   string          `json:"current_status"`
		NextAction      string          `json:"next_action"`
		NextMeetingDate *time.Time      `json:"next_meeting_date"`
		AssignToPool    bool            `json:"assign_to_pool"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	lead, err := h.leadService.CreateLead(ctx, service.CreateLeadRequest{
		Identity:        identity,
		PlatformID:      body.PlatformID,
		LeadData:        body.LeadData,
		CurrentStatus:   body.CurrentStatus,
		NextAction:      body.NextAction,
		NextMeetingDate: body.NextMeetingDate,
		AssignToPool:    body.AssignToPool,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(lead))
}

// ListLeads 线索列表
// query: platform_id, marketer_id（哨兵 "unassigned" 表示公共池）, limit, offset
func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	req := service.ListLeadsRequest{
		Identity:   identity,
		PlatformID: q.Get("platform_id"),
		Limit:      parseInt(q.Get("limit"), 20),
		Offset:     parseInt(q.Get("offset"), 0),
	}
	if mid := q.Get("marketer_id"); mid == "unassigned" {
		req.Unassigned = true
	} else {
		req.MarketerID = mid
	}

	resp, err := h.leadService.ListLeads(ctx, req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// GetLead 线索详情（含活动历史）
func (h *LeadHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}
	leadID := leadIDFromPath(r.URL.Path, "")
	if leadID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	detail, err := h.leadService.GetLead(ctx, identity, leadID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(detail))
}

// UpdateLead 更新线索（所有权不变，读-改-写后写为准）
func (h *LeadHandler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}
	leadID := leadIDFromPath(r.URL.Path, "")
	if leadID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var body struct {
		LeadData        json.RawMessage `json:"lead_data"`
		CurrentStatus   *string         `json:"current_status"`
		NextAction      *string         `json:"next_action"`
		NextMeetingDate *time.Time      `json:"next_meeting_date"`
		ClearMeeting    bool            `json:"clear_meeting"`
		Notes           string          `json:"notes"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	lead, err := h.leadService.UpdateLead(ctx, service.UpdateLeadRequest{
		Identity:        identity,
		LeadID:          leadID,
		LeadData:        body.LeadData,
		CurrentStatus:   body.CurrentStatus,
		NextAction:      body.NextAction,
		NextMeetingDate: body.NextMeetingDate,
		ClearMeeting:    body.ClearMeeting,
		Notes:           body.Notes,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(lead))
}

// DeleteLead 删除线索（管理员任意；marketer 仅限自己持有）
func (h *LeadHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}
	leadID := leadIDFromPath(r.URL.Path, "")
	if leadID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if err := h.leadService.DeleteLead(ctx, identity, leadID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": true}))
}

// ClaimLead 从公共池认领（仅 marketer；竞争失败返回 409）
func (h *LeadHandler) ClaimLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}
	leadID := leadIDFromPath(r.URL.Path, "/claim")
	if leadID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	lead, err := h.assignmentService.ClaimLead(ctx, identity, leadID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(lead))
}

// OptOutLead 退回公共池（仅持有者）
func (h *LeadHandler) OptOutLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}
	leadID := leadIDFromPath(r.URL.Path, "/opt-out")
	if leadID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if err := h.assignmentService.OptOutLead(ctx, identity, leadID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"opted_out": true}))
}

// BulkUpdateStatus 批量改状态
func (h *LeadHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	var body struct {
		LeadIDs []string `json:"lead_ids"`
		Status  string   `json:"status"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	affected, err := h.assignmentService.BulkUpdateStatus(ctx, identity, body.LeadIDs, body.Status)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	// affected 以数据库实际命中为准，缺失 id 静默跳过
	writeJSON(w, http.StatusOK, Ok(map[string]any{"updated": affected}))
}

// ShareLead 签发分享令牌
// body: {"expires_in_hours": 24}；缺省或 0 表示永不过期
func (h *LeadHandler) ShareLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}
	leadID := leadIDFromPath(r.URL.Path, "/share")
	if leadID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var body struct {
		ExpiresInHours int `json:"expires_in_hours"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if body.ExpiresInHours < 0 {
		writeJSON(w, http.StatusBadRequest, Fail("expires_in_hours must not be negative"))
		return
	}

	token, err := h.shareService.IssueShareLink(ctx, identity, leadID, time.Duration(body.ExpiresInHours)*time.Hour)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(map[string]any{
		"token": token,
		"url":   "/public/api/v1/leads/" + token,
	}))
}

var _ http.Handler = (*LeadHandler)(nil)
