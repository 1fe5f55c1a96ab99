package repository

import (
	"context"

	"leadflow-data/internal/domain"
)

// ActivityRecord 活动 + 操作者展示名（列表/公开视图使用）
type ActivityRecord struct {
	domain.LeadActivity
	MarketerName string // 操作者展示名，空表示系统/未知
}

// ActivitiesRepository 活动日志 Repository 接口（Audit Log）
// append-only：只有追加与读取，没有更新和删除
type ActivitiesRepository interface {
	// AppendActivity 追加一条活动，返回活动ID
	// （与线索变更同事务的活动由 LeadsRepository 在事务内直接写入，
	//   这里的独立追加面向导入等非事务耦合场景）
	AppendActivity(ctx context.Context, a *domain.LeadActivity) (string, error)

	// ListLeadActivities 指定线索的活动历史（created_at 倒序，带操作者展示名）
	ListLeadActivities(ctx context.Context, leadID string) ([]*ActivityRecord, error)
}
