package domain

import (
	"encoding/json"
	"time"
)

// 活动类型枚举
const (
	ActivityCreated       = "created"
	ActivityUpdated       = "updated"
	ActivityStatusChanged = "status_changed"
	ActivityNoteAdded     = "note_added"
)

// LeadActivity 线索活动日志（对应 lead_activities 表）
// append-only：创建后不允许更新或删除；展示时按 created_at 倒序。
// old/new 快照始终存完整对象而非预计算 diff，diff 算法变更无需迁移数据
type LeadActivity struct {
	// 主键
	ID string `db:"id"` // UUID, PRIMARY KEY

	// 所属线索（随线索级联删除）
	LeadID string `db:"lead_id"` // UUID, NOT NULL, FK to leads (CASCADE)

	// 操作者（系统操作可为空）
	MarketerID *string `db:"marketer_id"` // UUID, nullable

	// 类型与快照
	ActivityType string          `db:"activity_type"` // 见 Activity* 枚举
	OldValues    json.RawMessage `db:"old_values"`    // JSONB（批量路径存空对象，有意的精度换吞吐）
	NewValues    json.RawMessage `db:"new_values"`    // JSONB

	Notes     string    `db:"notes"`      // TEXT, DEFAULT ''
	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ, NOT NULL
}
