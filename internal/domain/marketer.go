package domain

import "time"

// 角色（由外部 Auth 服务提供，本服务信任不复验）
const (
	RoleMarketer   = "marketer"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Identity 每个请求携带的认证身份（Auth 协作方边界）
type Identity struct {
	ID   string
	Role string
}

// IsAdmin admin 或 super_admin
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin || i.Role == RoleSuperAdmin
}

// Marketer 营销人员展示信息（对应 marketers 表）
// 凭证与会话在外部 Auth 服务，这里只保存展示所需字段
type Marketer struct {
	ID        string    `db:"id"`         // UUID, PRIMARY KEY
	FullName  string    `db:"full_name"`  // TEXT, NOT NULL
	Email     string    `db:"email"`      // TEXT, UNIQUE
	IsActive  bool      `db:"is_active"`  // BOOLEAN, DEFAULT TRUE
	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ
}

// MarketerAssignment 营销人员对平台池的可见性分配（对应 marketer_assignments 表）
// (marketer_id, platform_id) 唯一；重新分配软删除过的记录时翻转 is_active 而非插新行
type MarketerAssignment struct {
	ID         string    `db:"id"`          // UUID, PRIMARY KEY
	MarketerID string    `db:"marketer_id"` // UUID, NOT NULL
	PlatformID string    `db:"platform_id"` // UUID, NOT NULL
	AssignedBy string    `db:"assigned_by"` // UUID, NOT NULL
	IsActive   bool      `db:"is_active"`   // BOOLEAN, DEFAULT TRUE
	CreatedAt  time.Time `db:"created_at"`  // TIMESTAMPTZ
}
