package repository

import (
	"context"

	"leadflow-data/internal/domain"
)

// SharedLinksRepository 分享链接 Repository 接口
// 记录只增不改：过期链接保留在表中以便返回精确的 Gone 信号
type SharedLinksRepository interface {
	// CreateSharedLink 持久化 token→lead 关联（token 列唯一约束兜底防碰撞）
	CreateSharedLink(ctx context.Context, link *domain.SharedLink) (string, error)

	// GetByToken 按 token 查找；不存在返回 ErrNotFound（过期判断在 Service 层）
	GetByToken(ctx context.Context, token string) (*domain.SharedLink, error)
}
