package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"leadflow-data/internal/domain"
	"leadflow-data/internal/repository"

	"go.uber.org/zap"
)

// LeadService 线索服务（Lead Store 的业务面）
type LeadService struct {
	leadsRepo       repository.LeadsRepository
	activitiesRepo  repository.ActivitiesRepository
	assignmentsRepo repository.AssignmentsRepository
	platformService *PlatformService // 字段定义查询（走 Schema 缓存）
	logger          *zap.Logger
}

// NewLeadService 创建线索服务
func NewLeadService(
	leadsRepo repository.LeadsRepository,
	activitiesRepo repository.ActivitiesRepository,
	assignmentsRepo repository.AssignmentsRepository,
	platformService *PlatformService,
	logger *zap.Logger,
) *LeadService {
	return &LeadService{
		leadsRepo:       leadsRepo,
		activitiesRepo:  activitiesRepo,
		assignmentsRepo: assignmentsRepo,
		platformService: platformService,
		logger:          logger,
	}
}

// ============================================
// Request/Response DTOs
// ============================================

// CreateLeadRequest 创建线索请求
type CreateLeadRequest struct {
	Identity        domain.Identity
	PlatformID      string
	LeadData        json.RawMessage
	CurrentStatus   string
	NextAction      string
	NextMeetingDate *time.Time
	AssignToPool    bool // 仅管理员：显式投入公共池
}

// UpdateLeadRequest 直接更新请求（所有权不变）
type UpdateLeadRequest struct {
	Identity        domain.Identity
	LeadID          string
	LeadData        json.RawMessage
	CurrentStatus   *string
	NextAction      *string
	NextMeetingDate *time.Time
	ClearMeeting    bool
	Notes           string
}

// ListLeadsRequest 线索列表请求
type ListLeadsRequest struct {
	Identity   domain.Identity
	PlatformID string
	MarketerID string
	Unassigned bool // 公共池哨兵（owner IS NULL）
	Limit      int
	Offset     int
}

// ListLeadsResponse 线索列表响应
type ListLeadsResponse struct {
	Leads []*domain.Lead `json:"leads"`
	Total int            `json:"total"`
}

// LeadDetail 线索详情（含活动历史，created_at 倒序）
type LeadDetail struct {
	Lead       *domain.Lead                 `json:"lead"`
	Activities []*repository.ActivityRecord `json:"activities"`
}

// ============================================
// 操作
// ============================================

// CreateLead 创建线索
// marketer 强制 owner = 自己；管理员可显式投入公共池。
// 写边界做软 Schema 校验：必填字段缺失拒绝；存储本身不约束载荷
func (s *LeadService) CreateLead(ctx context.Context, req CreateLeadRequest) (*domain.Lead, error) {
	if req.PlatformID == "" {
		return nil, fmt.Errorf("%w: platform_id is required", domain.ErrValidation)
	}

	leadData := req.LeadData
	if len(leadData) == 0 {
		leadData = json.RawMessage(`{}`)
	}
	if err := s.validateRequiredFields(ctx, req.PlatformID, leadData); err != nil {
		return nil, err
	}

	var owner *string
	ownerID := req.Identity.ID
	owner = &ownerID
	if req.Identity.IsAdmin() && req.AssignToPool {
		owner = nil
	}

	lead := &domain.Lead{
		PlatformID:      req.PlatformID,
		MarketerID:      owner,
		LeadData:        leadData,
		CurrentStatus:   req.CurrentStatus,
		NextAction:      req.NextAction,
		NextMeetingDate: req.NextMeetingDate,
	}
	id, err := s.leadsRepo.CreateLead(ctx, lead)
	if err != nil {
		return nil, err
	}
	return s.leadsRepo.GetLead(ctx, id)
}

// GetLead 线索详情（含活动历史）
// marketer 的可见性：自己持有的，或所在激活分配平台的公共池线索
func (s *LeadService) GetLead(ctx context.Context, identity domain.Identity, leadID string) (*LeadDetail, error) {
	lead, err := s.leadsRepo.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if identity.Role == domain.RoleMarketer {
		if lead.Owned() && !lead.OwnedBy(identity.ID) {
			return nil, fmt.Errorf("%w: lead assigned to another marketer", domain.ErrForbidden)
		}
		if !lead.Owned() {
			assigned, err := s.assignmentsRepo.IsActivelyAssigned(ctx, identity.ID, lead.PlatformID)
			if err != nil {
				return nil, err
			}
			if !assigned {
				return nil, fmt.Errorf("%w: not assigned to this platform", domain.ErrForbidden)
			}
		}
	}

	activities, err := s.activitiesRepo.ListLeadActivities(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return &LeadDetail{Lead: lead, Activities: activities}, nil
}

// ListLeads 线索列表
// marketer 的结果在服务端收口为：激活分配平台的线索 ∪ 自己持有的线索。
// 对未分配平台做平台过滤会得到空集而不是错误（不泄漏平台存在性）
func (s *LeadService) ListLeads(ctx context.Context, req ListLeadsRequest) (*ListLeadsResponse, error) {
	filters := repository.LeadFilters{
		PlatformID: req.PlatformID,
		MarketerID: req.MarketerID,
		Unassigned: req.Unassigned,
	}
	if req.Identity.Role == domain.RoleMarketer {
		filters.VisibleToMarketer = req.Identity.ID
	}

	leads, total, err := s.leadsRepo.ListLeads(ctx, filters, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	return &ListLeadsResponse{Leads: leads, Total: total}, nil
}

// UpdateLead 直接更新（所有权不变）
// marketer 只能更新自己持有的线索，或所在激活分配平台的公共池线索
func (s *LeadService) UpdateLead(ctx context.Context, req UpdateLeadRequest) (*domain.Lead, error) {
	current, err := s.leadsRepo.GetLead(ctx, req.LeadID)
	if err != nil {
		return nil, err
	}

	if req.Identity.Role == domain.RoleMarketer {
		if current.Owned() && !current.OwnedBy(req.Identity.ID) {
			return nil, fmt.Errorf("%w: lead assigned to another marketer", domain.ErrForbidden)
		}
		if !current.Owned() {
			assigned, err := s.assignmentsRepo.IsActivelyAssigned(ctx, req.Identity.ID, current.PlatformID)
			if err != nil {
				return nil, err
			}
			if !assigned {
				return nil, fmt.Errorf("%w: not assigned to this platform", domain.ErrForbidden)
			}
		}
	}

	changes := repository.LeadChanges{
		LeadData:        req.LeadData,
		CurrentStatus:   req.CurrentStatus,
		NextAction:      req.NextAction,
		NextMeetingDate: req.NextMeetingDate,
		ClearMeeting:    req.ClearMeeting,
		Notes:           req.Notes,
	}
	return s.leadsRepo.UpdateLead(ctx, req.LeadID, req.Identity.ID, changes)
}

// DeleteLead 删除线索：管理员无条件；marketer 仅限自己持有的
func (s *LeadService) DeleteLead(ctx context.Context, identity domain.Identity, leadID string) error {
	if identity.IsAdmin() {
		return s.leadsRepo.DeleteLead(ctx, leadID)
	}

	lead, err := s.leadsRepo.GetLead(ctx, leadID)
	if err != nil {
		return err
	}
	if !lead.OwnedBy(identity.ID) {
		return fmt.Errorf("%w: only the owning marketer may delete this lead", domain.ErrForbidden)
	}
	return s.leadsRepo.DeleteLead(ctx, leadID)
}

// validateRequiredFields 写边界的软 Schema 校验：
// 按平台当前字段定义检查必填项存在且非空；载荷里多余的键不报错
func (s *LeadService) validateRequiredFields(ctx context.Context, platformID string, leadData json.RawMessage) error {
	fields, err := s.platformService.ListFields(ctx, platformID)
	if err != nil {
		return err
	}

	var payload map[string]any
	if err := json.Unmarshal(leadData, &payload); err != nil {
		return fmt.Errorf("%w: lead_data must be a JSON object", domain.ErrValidation)
	}

	missing := []string{}
	for _, f := range fields {
		if !f.IsRequired {
			continue
		}
		v, ok := payload[f.FieldName]
		if !ok || v == nil {
			missing = append(missing, f.FieldName)
			continue
		}
		if str, isStr := v.(string); isStr && strings.TrimSpace(str) == "" {
			missing = append(missing, f.FieldName)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", domain.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}
