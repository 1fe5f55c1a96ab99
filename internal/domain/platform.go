package domain

import "time"

// Platform 平台领域模型（对应 platforms 表）
// 一个平台是一组共享同一字段 Schema 的线索桶
type Platform struct {
	// 主键
	ID string `db:"id"` // UUID, PRIMARY KEY

	// 基本信息
	Name        string `db:"name"`        // TEXT, NOT NULL
	Description string `db:"description"` // TEXT, DEFAULT ''

	// 创建信息
	CreatedBy string    `db:"created_by"` // UUID, NOT NULL
	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ, NOT NULL
}
