package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"leadflow-data/internal/domain"
	"leadflow-data/internal/repository"

	"go.uber.org/zap"
)

// ShareService 分享链接服务（Share-Link Issuer）
type ShareService struct {
	sharedLinksRepo repository.SharedLinksRepository
	leadsRepo       repository.LeadsRepository
	activitiesRepo  repository.ActivitiesRepository
	platformsRepo   repository.PlatformsRepository
	marketersRepo   repository.MarketersRepository
	platformService *PlatformService
	logger          *zap.Logger
}

// NewShareService 创建分享链接服务
func NewShareService(
	sharedLinksRepo repository.SharedLinksRepository,
	leadsRepo repository.LeadsRepository,
	activitiesRepo repository.ActivitiesRepository,
	platformsRepo repository.PlatformsRepository,
	marketersRepo repository.MarketersRepository,
	platformService *PlatformService,
	logger *zap.Logger,
) *ShareService {
	return &ShareService{
		sharedLinksRepo: sharedLinksRepo,
		leadsRepo:       leadsRepo,
		activitiesRepo:  activitiesRepo,
		platformsRepo:   platformsRepo,
		marketersRepo:   marketersRepo,
		platformService: platformService,
		logger:          logger,
	}
}

// PublicLeadView 公开视图：只暴露这条线索自身的内容与平台 Schema，
// 不含其它线索、其它平台、任何凭证或会话数据
type PublicLeadView struct {
	LeadID       string                       `json:"lead_id"`
	LeadData     json.RawMessage              `json:"lead_data"`
	Status       string                       `json:"current_status"`
	CreatedAt    time.Time                    `json:"created_at"`
	PlatformName string                       `json:"platform_name"`
	Fields       []*domain.Field              `json:"fields"`
	MarketerName string                       `json:"marketer_name"`
	Activities   []*repository.ActivityRecord `json:"activities"`
}

// IssueShareLink 签发分享 token
// marketer 只能分享自己持有的线索；token 为 32 字节 crypto/rand，
// 表上的唯一约束作为熵不足时的安全网。ttl 为 0 表示永不过期
func (s *ShareService) IssueShareLink(ctx context.Context, identity domain.Identity, leadID string, ttl time.Duration) (string, error) {
	lead, err := s.leadsRepo.GetLead(ctx, leadID)
	if err != nil {
		return "", err
	}
	if identity.Role == domain.RoleMarketer && !lead.OwnedBy(identity.ID) {
		return "", fmt.Errorf("%w: only the owning marketer may share this lead", domain.ErrForbidden)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := hex.EncodeToString(buf)

	link := &domain.SharedLink{
		Token:     token,
		LeadID:    leadID,
		CreatedBy: identity.ID,
	}
	if ttl > 0 {
		expires := time.Now().Add(ttl)
		link.ExpiresAt = &expires
	}

	if _, err := s.sharedLinksRepo.CreateSharedLink(ctx, link); err != nil {
		return "", err
	}

	s.logger.Info("share link issued",
		zap.String("lead_id", leadID),
		zap.String("created_by", identity.ID),
	)
	return token, nil
}

// ResolveShareLink 解析 token（无鉴权入口）
// 不存在 -> ErrNotFound；已过期 -> ErrGone（记录保留，不删除）
func (s *ShareService) ResolveShareLink(ctx context.Context, token string) (*PublicLeadView, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", domain.ErrValidation)
	}

	link, err := s.sharedLinksRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if link.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: share link expired", domain.ErrGone)
	}

	lead, err := s.leadsRepo.GetLead(ctx, link.LeadID)
	if err != nil {
		return nil, err
	}
	platform, err := s.platformsRepo.GetPlatform(ctx, lead.PlatformID)
	if err != nil {
		return nil, err
	}
	fields, err := s.platformService.ListFields(ctx, lead.PlatformID)
	if err != nil {
		return nil, err
	}
	activities, err := s.activitiesRepo.ListLeadActivities(ctx, link.LeadID)
	if err != nil {
		return nil, err
	}

	marketerName := "Unassigned"
	if lead.MarketerID != nil {
		if m, err := s.marketersRepo.GetMarketer(ctx, *lead.MarketerID); err == nil {
			marketerName = m.FullName
		}
	}

	return &PublicLeadView{
		LeadID:       lead.ID,
		LeadData:     lead.LeadData,
		Status:       lead.CurrentStatus,
		CreatedAt:    lead.CreatedAt,
		PlatformName: platform.Name,
		Fields:       fields,
		MarketerName: marketerName,
		Activities:   activities,
	}, nil
}
