package domain

import "time"

// SharedLink 公开分享链接（对应 shared_links 表）
// token 是指向单条线索的 capability：不可猜测、全局唯一。
// 过期后必须返回 Gone 而不是删除记录，让调用方拿到精确的 "expired" 信号
type SharedLink struct {
	ID        string     `db:"id"`         // UUID, PRIMARY KEY
	Token     string     `db:"token"`      // TEXT, UNIQUE
	LeadID    string     `db:"lead_id"`    // UUID, NOT NULL, FK to leads (CASCADE)
	CreatedBy string     `db:"created_by"` // UUID, NOT NULL
	CreatedAt time.Time  `db:"created_at"` // TIMESTAMPTZ
	ExpiresAt *time.Time `db:"expires_at"` // TIMESTAMPTZ, nullable（nil = 永不过期）
}

// Expired 链接是否已过期
func (s *SharedLink) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}
