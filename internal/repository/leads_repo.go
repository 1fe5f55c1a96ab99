package repository

import (
	"context"
	"encoding/json"
	"time"

	"leadflow-data/internal/domain"
)

// LeadFilters 线索查询过滤器
type LeadFilters struct {
	PlatformID string // 平台过滤
	MarketerID string // 所有者过滤
	Unassigned bool   // 公共池哨兵（marketer_id IS NULL），与 MarketerID 互斥

	// 可见性限制：非空时服务端强制只返回
	// （该营销人员激活分配的平台内的线索）∪（该营销人员已持有的线索）
	VisibleToMarketer string
}

// LeadChanges 直接更新的变更片段（nil = 不改）
type LeadChanges struct {
	LeadData        json.RawMessage // 载荷整体覆盖（last-writer-wins，已接受的取舍）
	CurrentStatus   *string
	NextAction      *string
	NextMeetingDate *time.Time
	ClearMeeting    bool   // 显式清空 next_meeting_date
	Notes           string // 自由备注（进入活动日志，不落 leads 表）
}

// LeadsRepository 线索 Repository 接口（Lead Store + 认领引擎的存储面）
// 所有变更方法在单个事务内同时写 leads 与 lead_activities：
// 要么都提交要么都回滚，请求取消不会留下半截状态
type LeadsRepository interface {
	// CreateLead 创建线索；lead.MarketerID 非空时在同一事务内追加 created 活动
	CreateLead(ctx context.Context, lead *domain.Lead) (string, error)

	// GetLead 获取线索（不含活动历史，历史走 ActivitiesRepository）
	GetLead(ctx context.Context, leadID string) (*domain.Lead, error)

	// ListLeads 线索列表（created_at 倒序）+ 总数
	ListLeads(ctx context.Context, filters LeadFilters, limit, offset int) ([]*domain.Lead, int, error)

	// UpdateLead 直接更新（所有权不变）。事务内先读旧值做 old_values 快照，
	// 按规则分类活动类型（status_changed > note_added > updated）并追加日志
	UpdateLead(ctx context.Context, leadID, actorID string, changes LeadChanges) (*domain.Lead, error)

	// ClaimLead 认领：单条条件更新
	//   UPDATE leads SET marketer_id=$m WHERE id=$id AND marketer_id IS NULL
	// 零行受影响时返回 ErrConflict（线索存在）或 ErrNotFound（线索不存在）。
	// 并发认领由存储层行级串行化仲裁，最多一个赢家
	ClaimLead(ctx context.Context, leadID, marketerID string) (*domain.Lead, error)

	// OptOutLead 退回公共池：事务内重读所有权，非当前所有者返回 ErrForbidden
	OptOutLead(ctx context.Context, leadID, marketerID string) error

	// BulkUpdateStatus 批量改状态：单事务，不存在的 id 静默跳过，
	// 每条受影响线索追加一条 old_values 为空对象的活动（有意的有损 diff）。
	// 返回实际受影响条数（权威值，调用方不应以入参长度为准）
	BulkUpdateStatus(ctx context.Context, leadIDs []string, status, actorID string) (int, error)

	// DeleteLead 删除线索（权限判断在 Service 层；活动随 FK 级联删除）
	DeleteLead(ctx context.Context, leadID string) error
}
