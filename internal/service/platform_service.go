package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leadflow-data/internal/domain"
	"leadflow-data/internal/repository"
	"leadflow-data/internal/store"

	"go.uber.org/zap"
)

const schemaCacheTTL = 5 * time.Minute

func schemaCacheKey(platformID string) string {
	return "leadflow:platform_fields:" + platformID
}

// PlatformService 平台与字段 Schema 服务（Schema Registry）
type PlatformService struct {
	platformsRepo repository.PlatformsRepository
	kv            store.KV // 字段定义读缓存（可为 nil，直接回源）
	logger        *zap.Logger
}

// NewPlatformService 创建平台服务
func NewPlatformService(platformsRepo repository.PlatformsRepository, kv store.KV, logger *zap.Logger) *PlatformService {
	return &PlatformService{
		platformsRepo: platformsRepo,
		kv:            kv,
		logger:        logger,
	}
}

// ============================================
// Request/Response DTOs
// ============================================

// CreatePlatformRequest 创建平台请求
type CreatePlatformRequest struct {
	Identity    domain.Identity
	Name        string
	Description string
}

// DefineFieldRequest 定义字段请求
type DefineFieldRequest struct {
	Identity      domain.Identity
	PlatformID    string
	FieldName     string
	FieldType     string
	FieldCategory string
	IsRequired    bool
	DisplayOrder  *int            // nil = 自动取下一个序号
	Options       json.RawMessage // 仅 single_select
	Placeholder   string
}

// PlatformDetail 平台详情（含字段定义）
type PlatformDetail struct {
	Platform domain.Platform `json:"platform"`
	Fields   []*domain.Field `json:"fields"`
}

// ============================================
// 平台操作
// ============================================

// ListPlatforms 平台列表；marketer 只看到自己有激活分配的平台
func (s *PlatformService) ListPlatforms(ctx context.Context, identity domain.Identity) ([]*repository.PlatformWithStats, error) {
	visibleTo := ""
	if identity.Role == domain.RoleMarketer {
		visibleTo = identity.ID
	}
	return s.platformsRepo.ListPlatforms(ctx, visibleTo)
}

// CreatePlatform 创建平台（仅管理员）
func (s *PlatformService) CreatePlatform(ctx context.Context, req CreatePlatformRequest) (*domain.Platform, error) {
	if !req.Identity.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins may create platforms", domain.ErrForbidden)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: platform name is required", domain.ErrValidation)
	}

	p := &domain.Platform{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   req.Identity.ID,
	}
	id, err := s.platformsRepo.CreatePlatform(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.platformsRepo.GetPlatform(ctx, id)
}

// GetPlatform 平台详情（含字段定义，display_order 升序）
func (s *PlatformService) GetPlatform(ctx context.Context, platformID string) (*PlatformDetail, error) {
	p, err := s.platformsRepo.GetPlatform(ctx, platformID)
	if err != nil {
		return nil, err
	}
	fields, err := s.ListFields(ctx, platformID)
	if err != nil {
		return nil, err
	}
	return &PlatformDetail{Platform: *p, Fields: fields}, nil
}

// UpdatePlatform 更新平台名称/描述（仅管理员）
func (s *PlatformService) UpdatePlatform(ctx context.Context, identity domain.Identity, platformID string, name, description *string) error {
	if !identity.IsAdmin() {
		return fmt.Errorf("%w: only admins may update platforms", domain.ErrForbidden)
	}
	return s.platformsRepo.UpdatePlatform(ctx, platformID, name, description)
}

// DeletePlatform 删除平台（仅管理员；仍有线索时 Repository 层拒绝）
func (s *PlatformService) DeletePlatform(ctx context.Context, identity domain.Identity, platformID string) error {
	if !identity.IsAdmin() {
		return fmt.Errorf("%w: only admins may delete platforms", domain.ErrForbidden)
	}
	if err := s.platformsRepo.DeletePlatform(ctx, platformID); err != nil {
		return err
	}
	s.invalidateSchemaCache(ctx, platformID)
	return nil
}

// ============================================
// 字段操作
// ============================================

// DefineField 定义字段（仅管理员）
func (s *PlatformService) DefineField(ctx context.Context, req DefineFieldRequest) (*domain.Field, error) {
	if !req.Identity.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins may define fields", domain.ErrForbidden)
	}
	if req.FieldName == "" {
		return nil, fmt.Errorf("%w: field_name is required", domain.ErrValidation)
	}
	if !domain.ValidFieldTypes[req.FieldType] {
		return nil, fmt.Errorf("%w: unknown field_type %q", domain.ErrValidation, req.FieldType)
	}
	category := req.FieldCategory
	if category == "" {
		category = domain.FieldCategoryLeadDetail
	}
	if category != domain.FieldCategoryLeadDetail && category != domain.FieldCategoryTrackingAction {
		return nil, fmt.Errorf("%w: unknown field_category %q", domain.ErrValidation, category)
	}
	if req.FieldType != domain.FieldTypeSingleSelect && len(req.Options) > 0 {
		return nil, fmt.Errorf("%w: options only allowed for single_select fields", domain.ErrValidation)
	}

	displayOrder := -1
	if req.DisplayOrder != nil {
		displayOrder = *req.DisplayOrder
	}

	f := &domain.Field{
		PlatformID:    req.PlatformID,
		FieldName:     req.FieldName,
		FieldType:     req.FieldType,
		FieldCategory: category,
		IsRequired:    req.IsRequired,
		DisplayOrder:  displayOrder,
		Options:       req.Options,
		Placeholder:   req.Placeholder,
	}
	id, err := s.platformsRepo.CreateField(ctx, f)
	if err != nil {
		return nil, err
	}
	s.invalidateSchemaCache(ctx, req.PlatformID)

	fields, err := s.platformsRepo.ListFields(ctx, req.PlatformID)
	if err != nil {
		return nil, err
	}
	for _, field := range fields {
		if field.ID == id {
			return field, nil
		}
	}
	return nil, fmt.Errorf("field %s: %w", id, domain.ErrNotFound)
}

// ListFields 字段列表（优先读缓存；缓存只存元数据，绝不涉及所有权）
func (s *PlatformService) ListFields(ctx context.Context, platformID string) ([]*domain.Field, error) {
	if s.kv != nil {
		if cached, err := s.kv.Get(ctx, schemaCacheKey(platformID)); err == nil {
			var fields []*domain.Field
			if err := json.Unmarshal([]byte(cached), &fields); err == nil {
				return fields, nil
			}
		}
	}

	fields, err := s.platformsRepo.ListFields(ctx, platformID)
	if err != nil {
		return nil, err
	}

	if s.kv != nil {
		if data, err := json.Marshal(fields); err == nil {
			if err := s.kv.Set(ctx, schemaCacheKey(platformID), string(data), schemaCacheTTL); err != nil {
				s.logger.Warn("failed to cache platform fields", zap.String("platform_id", platformID), zap.Error(err))
			}
		}
	}
	return fields, nil
}

// ReorderField 调整字段顺序（仅管理员）
func (s *PlatformService) ReorderField(ctx context.Context, identity domain.Identity, platformID, fieldID string, displayOrder int) error {
	if !identity.IsAdmin() {
		return fmt.Errorf("%w: only admins may reorder fields", domain.ErrForbidden)
	}
	if err := s.platformsRepo.UpdateFieldOrder(ctx, fieldID, displayOrder); err != nil {
		return err
	}
	s.invalidateSchemaCache(ctx, platformID)
	return nil
}

// RemoveField 无条件删除字段定义（仅管理员），已存 lead_data 保持原样
func (s *PlatformService) RemoveField(ctx context.Context, identity domain.Identity, platformID, fieldID string) error {
	if !identity.IsAdmin() {
		return fmt.Errorf("%w: only admins may remove fields", domain.ErrForbidden)
	}
	if err := s.platformsRepo.DeleteField(ctx, fieldID); err != nil {
		return err
	}
	s.invalidateSchemaCache(ctx, platformID)
	return nil
}

func (s *PlatformService) invalidateSchemaCache(ctx context.Context, platformID string) {
	if s.kv == nil {
		return
	}
	if err := s.kv.Del(ctx, schemaCacheKey(platformID)); err != nil {
		s.logger.Warn("failed to invalidate schema cache", zap.String("platform_id", platformID), zap.Error(err))
	}
}
