package domain

import "encoding/json"

// 字段类型枚举
const (
	FieldTypeText         = "text"
	FieldTypeEmail        = "email"
	FieldTypeURL          = "url"
	FieldTypePhone        = "phone"
	FieldTypeNumber       = "number"
	FieldTypeDate         = "date"
	FieldTypeDatetime     = "datetime"
	FieldTypeLongText     = "long_text"
	FieldTypeSingleSelect = "single_select"
	FieldTypeFile         = "file"
)

// 字段分类
const (
	FieldCategoryLeadDetail     = "lead_detail"
	FieldCategoryTrackingAction = "tracking_action"
)

// ValidFieldTypes 合法字段类型集合（API 边界校验用）
var ValidFieldTypes = map[string]bool{
	FieldTypeText:         true,
	FieldTypeEmail:        true,
	FieldTypeURL:          true,
	FieldTypePhone:        true,
	FieldTypeNumber:       true,
	FieldTypeDate:         true,
	FieldTypeDatetime:     true,
	FieldTypeLongText:     true,
	FieldTypeSingleSelect: true,
	FieldTypeFile:         true,
}

// Field 平台字段定义（对应 platform_fields 表）
// field_name 是进入 lead_data 的 join key，无外键约束：
// 删除/重命名字段不会迁移已存的 lead_data，只是不再渲染和校验
type Field struct {
	// 主键
	ID string `db:"id"` // UUID, PRIMARY KEY

	// 所属平台
	PlatformID string `db:"platform_id"` // UUID, NOT NULL, FK to platforms (CASCADE)

	// 定义
	FieldName     string `db:"field_name"`     // TEXT, NOT NULL, UNIQUE(platform_id, field_name)
	FieldType     string `db:"field_type"`     // TEXT, NOT NULL（见 FieldType* 枚举）
	FieldCategory string `db:"field_category"` // 'lead_detail' | 'tracking_action'
	IsRequired    bool   `db:"is_required"`    // BOOLEAN, DEFAULT FALSE
	DisplayOrder  int    `db:"display_order"`  // INTEGER, 列表按此升序稳定排序

	// 仅 single_select 使用（有序字符串列表）
	Options json.RawMessage `db:"options"` // JSONB, nullable

	Placeholder string `db:"placeholder"` // TEXT, DEFAULT ''
}
