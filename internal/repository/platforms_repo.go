package repository

import (
	"context"

	"leadflow-data/internal/domain"
)

// PlatformWithStats 平台 + 统计信息（列表页使用）
type PlatformWithStats struct {
	domain.Platform
	LeadCount int // 平台下线索总数
}

// PlatformsRepository 平台与字段定义 Repository 接口（Schema Registry）
// 纯元数据存储，无并发敏感路径
type PlatformsRepository interface {
	// CreatePlatform 创建平台，返回新平台ID
	CreatePlatform(ctx context.Context, p *domain.Platform) (string, error)

	// GetPlatform 获取平台
	GetPlatform(ctx context.Context, platformID string) (*domain.Platform, error)

	// ListPlatforms 平台列表（created_at 倒序，带线索数）
	// visibleToMarketer 非空时只返回该营销人员有激活分配的平台
	ListPlatforms(ctx context.Context, visibleToMarketer string) ([]*PlatformWithStats, error)

	// UpdatePlatform 更新平台名称/描述
	UpdatePlatform(ctx context.Context, platformID string, name, description *string) error

	// DeletePlatform 删除平台（仍有线索时拒绝）
	DeletePlatform(ctx context.Context, platformID string) error

	// CreateField 创建字段定义；displayOrder < 0 时自动取下一个序号
	CreateField(ctx context.Context, f *domain.Field) (string, error)

	// ListFields 字段列表（display_order 升序）
	ListFields(ctx context.Context, platformID string) ([]*domain.Field, error)

	// UpdateFieldOrder 调整字段顺序
	UpdateFieldOrder(ctx context.Context, fieldID string, displayOrder int) error

	// DeleteField 无条件删除字段定义，不检查已存 lead_data 的依赖
	DeleteField(ctx context.Context, fieldID string) error
}
