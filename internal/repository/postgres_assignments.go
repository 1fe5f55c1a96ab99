package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"leadflow-data/internal/domain"

	"github.com/google/uuid"
)

// PostgresAssignmentsRepository 平台分配 Repository 实现
type PostgresAssignmentsRepository struct {
	db *sql.DB
}

// NewPostgresAssignmentsRepository 创建分配 Repository
func NewPostgresAssignmentsRepository(db *sql.DB) *PostgresAssignmentsRepository {
	return &PostgresAssignmentsRepository{db: db}
}

// 确保实现了接口
var _ AssignmentsRepository = (*PostgresAssignmentsRepository)(nil)

// AssignPlatform 建立分配；已存在的 (marketer, platform) 记录翻转 is_active 而非插新行
func (r *PostgresAssignmentsRepository) AssignPlatform(ctx context.Context, marketerID, platformID, assignedBy string) (*domain.MarketerAssignment, error) {
	// 平台必须存在
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM platforms WHERE id = $1::uuid)`, platformID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check platform: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("platform %s: %w", platformID, domain.ErrNotFound)
	}

	var a domain.MarketerAssignment
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO marketer_assignments (id, marketer_id, platform_id, assigned_by, is_active)
		 VALUES ($1, $2, $3, $4, TRUE)
		 ON CONFLICT (marketer_id, platform_id)
		 DO UPDATE SET is_active = TRUE
		 RETURNING id::text, marketer_id::text, platform_id::text, assigned_by::text, is_active, created_at`,
		uuid.NewString(), marketerID, platformID, assignedBy,
	).Scan(&a.ID, &a.MarketerID, &a.PlatformID, &a.AssignedBy, &a.IsActive, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to assign platform: %w", err)
	}
	return &a, nil
}

// RemoveAssignment 软删除分配
func (r *PostgresAssignmentsRepository) RemoveAssignment(ctx context.Context, marketerID, platformID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE marketer_assignments SET is_active = FALSE
		 WHERE marketer_id = $1::uuid AND platform_id = $2::uuid`,
		marketerID, platformID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove assignment: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("assignment: %w", domain.ErrNotFound)
	}
	return nil
}

// ListAssignments 指定营销人员的分配列表
func (r *PostgresAssignmentsRepository) ListAssignments(ctx context.Context, marketerID string) ([]*AssignmentWithPlatform, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id::text, a.marketer_id::text, a.platform_id::text, a.assigned_by::text,
		        a.is_active, a.created_at, p.name
		 FROM marketer_assignments a
		 JOIN platforms p ON p.id = a.platform_id
		 WHERE a.marketer_id = $1::uuid
		 ORDER BY a.created_at DESC`,
		marketerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	items := make([]*AssignmentWithPlatform, 0)
	for rows.Next() {
		var item AssignmentWithPlatform
		if err := rows.Scan(&item.ID, &item.MarketerID, &item.PlatformID, &item.AssignedBy,
			&item.IsActive, &item.CreatedAt, &item.PlatformName); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// IsActivelyAssigned 营销人员对平台是否有激活分配
func (r *PostgresAssignmentsRepository) IsActivelyAssigned(ctx context.Context, marketerID, platformID string) (bool, error) {
	var assigned bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM marketer_assignments
			WHERE marketer_id = $1::uuid AND platform_id = $2::uuid AND is_active = TRUE
		)`,
		marketerID, platformID,
	).Scan(&assigned)
	if err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return assigned, nil
}

// PostgresMarketersRepository 营销人员展示信息 Repository 实现
type PostgresMarketersRepository struct {
	db *sql.DB
}

// NewPostgresMarketersRepository 创建营销人员 Repository
func NewPostgresMarketersRepository(db *sql.DB) *PostgresMarketersRepository {
	return &PostgresMarketersRepository{db: db}
}

// 确保实现了接口
var _ MarketersRepository = (*PostgresMarketersRepository)(nil)

// GetMarketer 获取营销人员展示信息
func (r *PostgresMarketersRepository) GetMarketer(ctx context.Context, marketerID string) (*domain.Marketer, error) {
	var m domain.Marketer
	err := r.db.QueryRowContext(ctx,
		`SELECT id::text, full_name, email, is_active, created_at
		 FROM marketers WHERE id = $1::uuid`,
		marketerID,
	).Scan(&m.ID, &m.FullName, &m.Email, &m.IsActive, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("marketer %s: %w", marketerID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get marketer: %w", err)
	}
	return &m, nil
}

// CountActiveMarketers 激活营销人员总数
func (r *PostgresMarketersRepository) CountActiveMarketers(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM marketers WHERE is_active = TRUE`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count marketers: %w", err)
	}
	return count, nil
}
