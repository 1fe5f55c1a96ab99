package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"leadflow-data/internal/domain"

	"github.com/google/uuid"
)

// PostgresPlatformsRepository 平台/字段 Repository 实现
type PostgresPlatformsRepository struct {
	db *sql.DB
}

// NewPostgresPlatformsRepository 创建平台 Repository
func NewPostgresPlatformsRepository(db *sql.DB) *PostgresPlatformsRepository {
	return &PostgresPlatformsRepository{db: db}
}

// 确保实现了接口
var _ PlatformsRepository = (*PostgresPlatformsRepository)(nil)

// CreatePlatform 创建平台
func (r *PostgresPlatformsRepository) CreatePlatform(ctx context.Context, p *domain.Platform) (string, error) {
	if p.Name == "" {
		return "", fmt.Errorf("%w: platform name is required", domain.ErrValidation)
	}
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO platforms (id, name, description, created_by)
		 VALUES ($1, $2, $3, $4)`,
		id, p.Name, p.Description, p.CreatedBy,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create platform: %w", err)
	}
	return id, nil
}

// GetPlatform 获取平台
func (r *PostgresPlatformsRepository) GetPlatform(ctx context.Context, platformID string) (*domain.Platform, error) {
	var p domain.Platform
	err := r.db.QueryRowContext(ctx,
		`SELECT id::text, name, COALESCE(description, ''), created_by::text, created_at
		 FROM platforms
		 WHERE id = $1::uuid`,
		platformID,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("platform %s: %w", platformID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get platform: %w", err)
	}
	return &p, nil
}

// ListPlatforms 平台列表（created_at 倒序，带线索数）
func (r *PostgresPlatformsRepository) ListPlatforms(ctx context.Context, visibleToMarketer string) ([]*PlatformWithStats, error) {
	query := `
		SELECT p.id::text, p.name, COALESCE(p.description, ''), p.created_by::text, p.created_at,
		       (SELECT COUNT(*) FROM leads l WHERE l.platform_id = p.id) AS lead_count
		FROM platforms p
	`
	args := []any{}
	if visibleToMarketer != "" {
		query += `
		WHERE EXISTS (
			SELECT 1 FROM marketer_assignments ma
			WHERE ma.platform_id = p.id
			  AND ma.marketer_id = $1::uuid
			  AND ma.is_active = TRUE
		)`
		args = append(args, visibleToMarketer)
	}
	query += ` ORDER BY p.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}
	defer rows.Close()

	items := make([]*PlatformWithStats, 0)
	for rows.Next() {
		var item PlatformWithStats
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.CreatedBy, &item.CreatedAt, &item.LeadCount); err != nil {
			return nil, fmt.Errorf("failed to scan platform: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// UpdatePlatform 更新平台名称/描述
func (r *PostgresPlatformsRepository) UpdatePlatform(ctx context.Context, platformID string, name, description *string) error {
	updates := []string{}
	args := []any{platformID}
	argIdx := 2

	if name != nil {
		updates = append(updates, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, *name)
		argIdx++
	}
	if description != nil {
		updates = append(updates, fmt.Sprintf("description = $%d", argIdx))
		args = append(args, *description)
		argIdx++
	}
	if len(updates) == 0 {
		return nil
	}

	query := "UPDATE platforms SET " + joinUpdates(updates) + " WHERE id = $1::uuid"
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update platform: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("platform %s: %w", platformID, domain.ErrNotFound)
	}
	return nil
}

// DeletePlatform 删除平台（仍有线索时拒绝，避免隐式级联丢数据）
func (r *PostgresPlatformsRepository) DeletePlatform(ctx context.Context, platformID string) error {
	var leadCount int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leads WHERE platform_id = $1::uuid`, platformID,
	).Scan(&leadCount)
	if err != nil {
		return fmt.Errorf("failed to count platform leads: %w", err)
	}
	if leadCount > 0 {
		return fmt.Errorf("%w: platform still has %d leads", domain.ErrConflict, leadCount)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM platforms WHERE id = $1::uuid`, platformID)
	if err != nil {
		return fmt.Errorf("failed to delete platform: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("platform %s: %w", platformID, domain.ErrNotFound)
	}
	return nil
}

// CreateField 创建字段定义；displayOrder < 0 时取当前最大序号+1
func (r *PostgresPlatformsRepository) CreateField(ctx context.Context, f *domain.Field) (string, error) {
	// 平台必须存在（字段属于平台，NotFound 在这里兜住）
	if _, err := r.GetPlatform(ctx, f.PlatformID); err != nil {
		return "", err
	}

	id := f.ID
	if id == "" {
		id = uuid.NewString()
	}

	displayOrder := f.DisplayOrder
	if displayOrder < 0 {
		err := r.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(display_order), -1) + 1 FROM platform_fields WHERE platform_id = $1::uuid`,
			f.PlatformID,
		).Scan(&displayOrder)
		if err != nil {
			return "", fmt.Errorf("failed to compute display order: %w", err)
		}
	}

	var optionsArg any = nil
	if len(f.Options) > 0 {
		optionsArg = []byte(f.Options)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO platform_fields (id, platform_id, field_name, field_type, field_category, is_required, display_order, options, placeholder)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, f.PlatformID, f.FieldName, f.FieldType, f.FieldCategory, f.IsRequired, displayOrder, optionsArg, f.Placeholder,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create field: %w", err)
	}
	return id, nil
}

// ListFields 字段列表（display_order 升序，lead_detail/tracking_action 分组由调用方做）
func (r *PostgresPlatformsRepository) ListFields(ctx context.Context, platformID string) ([]*domain.Field, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id::text, platform_id::text, field_name, field_type, field_category,
		        is_required, display_order, COALESCE(options, 'null'::jsonb), COALESCE(placeholder, '')
		 FROM platform_fields
		 WHERE platform_id = $1::uuid
		 ORDER BY display_order ASC`,
		platformID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	defer rows.Close()

	fields := make([]*domain.Field, 0)
	for rows.Next() {
		var f domain.Field
		var optionsRaw []byte
		if err := rows.Scan(&f.ID, &f.PlatformID, &f.FieldName, &f.FieldType, &f.FieldCategory,
			&f.IsRequired, &f.DisplayOrder, &optionsRaw, &f.Placeholder); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		if string(optionsRaw) != "null" {
			f.Options = optionsRaw
		}
		fields = append(fields, &f)
	}
	return fields, rows.Err()
}

// UpdateFieldOrder 调整字段顺序
func (r *PostgresPlatformsRepository) UpdateFieldOrder(ctx context.Context, fieldID string, displayOrder int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE platform_fields SET display_order = $2 WHERE id = $1::uuid`,
		fieldID, displayOrder,
	)
	if err != nil {
		return fmt.Errorf("failed to update field order: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("field %s: %w", fieldID, domain.ErrNotFound)
	}
	return nil
}

// DeleteField 无条件删除字段定义
// 不做 lead_data 依赖检查：已存载荷保持原样，只是之后不再渲染/校验该键
func (r *PostgresPlatformsRepository) DeleteField(ctx context.Context, fieldID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM platform_fields WHERE id = $1::uuid`, fieldID)
	if err != nil {
		return fmt.Errorf("failed to delete field: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("field %s: %w", fieldID, domain.ErrNotFound)
	}
	return nil
}
