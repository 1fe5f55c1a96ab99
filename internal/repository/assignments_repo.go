package repository

import (
	"context"

	"leadflow-data/internal/domain"
)

// AssignmentWithPlatform 分配 + 平台名（分配列表页使用）
type AssignmentWithPlatform struct {
	domain.MarketerAssignment
	PlatformName string
}

// AssignmentsRepository 营销人员平台分配 Repository 接口
type AssignmentsRepository interface {
	// AssignPlatform 建立分配；(marketer, platform) 已存在时翻转 is_active=true 而非插新行
	AssignPlatform(ctx context.Context, marketerID, platformID, assignedBy string) (*domain.MarketerAssignment, error)

	// RemoveAssignment 软删除分配（is_active=false）
	RemoveAssignment(ctx context.Context, marketerID, platformID string) error

	// ListAssignments 指定营销人员的分配列表
	ListAssignments(ctx context.Context, marketerID string) ([]*AssignmentWithPlatform, error)

	// IsActivelyAssigned 营销人员对平台是否有激活分配
	IsActivelyAssigned(ctx context.Context, marketerID, platformID string) (bool, error)
}

// MarketersRepository 营销人员展示信息 Repository 接口
// （身份与凭证在外部 Auth 服务，这里只读展示数据）
type MarketersRepository interface {
	// GetMarketer 获取营销人员展示信息
	GetMarketer(ctx context.Context, marketerID string) (*domain.Marketer, error)

	// CountActiveMarketers 激活营销人员总数（分析面板用）
	CountActiveMarketers(ctx context.Context) (int, error)
}
