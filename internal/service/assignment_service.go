package service

import (
	"context"
	"fmt"

	"leadflow-data/internal/domain"
	"leadflow-data/internal/repository"

	"go.uber.org/zap"
)

// AssignmentService 认领引擎 + 平台分配管理
// 所有权转移（认领/退回/批量改状态）全部压到存储层的事务原子性上仲裁，
// 进程内不持有任何锁，也没有所有权缓存
type AssignmentService struct {
	leadsRepo       repository.LeadsRepository
	assignmentsRepo repository.AssignmentsRepository
	webhook         *WebhookClient // 可为 nil（禁用）
	logger          *zap.Logger
}

// NewAssignmentService 创建认领引擎
func NewAssignmentService(
	leadsRepo repository.LeadsRepository,
	assignmentsRepo repository.AssignmentsRepository,
	webhook *WebhookClient,
	logger *zap.Logger,
) *AssignmentService {
	return &AssignmentService{
		leadsRepo:       leadsRepo,
		assignmentsRepo: assignmentsRepo,
		webhook:         webhook,
		logger:          logger,
	}
}

// ============================================
// 所有权转移
// ============================================

// ClaimLead 认领公共池线索（仅 marketer）
// Unowned -> OwnedBy(m)：单条条件更新仲裁，并发认领恰好一个赢家，
// 输家拿到 ErrConflict（高频的预期情况，不是异常）
func (s *AssignmentService) ClaimLead(ctx context.Context, identity domain.Identity, leadID string) (*domain.Lead, error) {
	if identity.Role != domain.RoleMarketer {
		return nil, fmt.Errorf("%w: only marketers may claim leads", domain.ErrForbidden)
	}

	// 平台可见性：未分配平台的线索不可认领
	current, err := s.leadsRepo.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	assigned, err := s.assignmentsRepo.IsActivelyAssigned(ctx, identity.ID, current.PlatformID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, fmt.Errorf("%w: not assigned to this platform", domain.ErrForbidden)
	}

	// 所有权仲裁只看这一条条件更新，上面的读取不参与判定
	lead, err := s.leadsRepo.ClaimLead(ctx, leadID, identity.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("lead claimed",
		zap.String("lead_id", leadID),
		zap.String("marketer_id", identity.ID),
	)
	if s.webhook != nil {
		s.webhook.Notify(ctx, LeadEvent{
			Event:      "lead.claimed",
			LeadID:     leadID,
			PlatformID: lead.PlatformID,
			MarketerID: identity.ID,
		})
	}
	return lead, nil
}

// OptOutLead 退回公共池（仅当前所有者）
// OwnedBy(m) -> Unowned：所有权在事务内重读校验，不信任调用方的视图
func (s *AssignmentService) OptOutLead(ctx context.Context, identity domain.Identity, leadID string) error {
	if err := s.leadsRepo.OptOutLead(ctx, leadID, identity.ID); err != nil {
		return err
	}

	s.logger.Info("lead opted out",
		zap.String("lead_id", leadID),
		zap.String("marketer_id", identity.ID),
	)
	if s.webhook != nil {
		s.webhook.Notify(ctx, LeadEvent{
			Event:      "lead.opted_out",
			LeadID:     leadID,
			MarketerID: identity.ID,
		})
	}
	return nil
}

// BulkUpdateStatus 批量改状态
// 单事务内完成更新与活动追加；不存在的 id 静默跳过，
// 返回的受影响条数是权威值
func (s *AssignmentService) BulkUpdateStatus(ctx context.Context, identity domain.Identity, leadIDs []string, status string) (int, error) {
	if len(leadIDs) == 0 {
		return 0, nil
	}
	if status == "" {
		return 0, fmt.Errorf("%w: status is required", domain.ErrValidation)
	}

	affected, err := s.leadsRepo.BulkUpdateStatus(ctx, leadIDs, status, identity.ID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("bulk status update",
		zap.Int("requested", len(leadIDs)),
		zap.Int("affected", affected),
		zap.String("status", status),
	)
	if s.webhook != nil && affected > 0 {
		s.webhook.Notify(ctx, LeadEvent{
			Event:      "lead.status_changed",
			Status:     status,
			MarketerID: identity.ID,
		})
	}
	return affected, nil
}

// ============================================
// 平台分配管理
// ============================================

// AssignPlatform 给营销人员分配平台（仅管理员）
// 软删除过的分配翻转 is_active 而非插新行
func (s *AssignmentService) AssignPlatform(ctx context.Context, identity domain.Identity, marketerID, platformID string) (*domain.MarketerAssignment, error) {
	if !identity.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins may assign platforms", domain.ErrForbidden)
	}
	if marketerID == "" || platformID == "" {
		return nil, fmt.Errorf("%w: marketer_id and platform_id are required", domain.ErrValidation)
	}
	return s.assignmentsRepo.AssignPlatform(ctx, marketerID, platformID, identity.ID)
}

// RemoveAssignment 移除分配（仅管理员；软删除）
func (s *AssignmentService) RemoveAssignment(ctx context.Context, identity domain.Identity, marketerID, platformID string) error {
	if !identity.IsAdmin() {
		return fmt.Errorf("%w: only admins may remove assignments", domain.ErrForbidden)
	}
	return s.assignmentsRepo.RemoveAssignment(ctx, marketerID, platformID)
}

// ListAssignments 分配列表；marketer 只能查自己的
func (s *AssignmentService) ListAssignments(ctx context.Context, identity domain.Identity, marketerID string) ([]*repository.AssignmentWithPlatform, error) {
	if identity.Role == domain.RoleMarketer && identity.ID != marketerID {
		return nil, fmt.Errorf("%w: marketers may only view their own assignments", domain.ErrForbidden)
	}
	return s.assignmentsRepo.ListAssignments(ctx, marketerID)
}
