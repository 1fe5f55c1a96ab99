package domain

import (
	"encoding/json"
	"time"
)

// 约定俗成的状态集合（仅作 API 边界的建议值，存储层不约束，
// 管理员可随时扩展词汇表）
const (
	StatusNew       = "New"
	StatusContacted = "Contacted"
	StatusQualified = "Qualified"
	StatusLost      = "Lost"
	StatusWon       = "Won"
)

// Lead 线索领域模型（对应 leads 表）
// MarketerID 为 nil 表示线索在公共池中（未被任何营销人员认领）
type Lead struct {
	// 主键
	ID string `db:"id"` // UUID, PRIMARY KEY

	// 所属平台（创建后不可变）
	PlatformID string `db:"platform_id"` // UUID, NOT NULL, FK to platforms

	// 当前所有者（NULL = 公共池；不变式：最多一个所有者）
	MarketerID *string `db:"marketer_id"` // UUID, nullable, FK to marketers

	// 动态载荷（key 按名称对应平台当前激活的字段定义，值对存储层不透明）
	LeadData json.RawMessage `db:"lead_data"` // JSONB, NOT NULL

	// 跟进信息
	CurrentStatus   string     `db:"current_status"`    // TEXT, DEFAULT 'New'（自由字符串）
	NextAction      string     `db:"next_action"`       // TEXT, DEFAULT ''
	NextMeetingDate *time.Time `db:"next_meeting_date"` // TIMESTAMPTZ, nullable

	// 时间（LastActivityAt 单调不减，每次变更都会更新）
	CreatedAt      time.Time `db:"created_at"`       // TIMESTAMPTZ, NOT NULL
	LastActivityAt time.Time `db:"last_activity_at"` // TIMESTAMPTZ, NOT NULL
}

// Owned 线索是否已被认领
func (l *Lead) Owned() bool {
	return l.MarketerID != nil
}

// OwnedBy 线索是否由指定营销人员持有
func (l *Lead) OwnedBy(marketerID string) bool {
	return l.MarketerID != nil && *l.MarketerID == marketerID
}
