package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"leadflow-data/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresLeadsRepository 线索 Repository 实现
// 所有变更路径在单事务内同时写 leads 与 lead_activities
type PostgresLeadsRepository struct {
	db *sql.DB
}

// NewPostgresLeadsRepository 创建线索 Repository
func NewPostgresLeadsRepository(db *sql.DB) *PostgresLeadsRepository {
	return &PostgresLeadsRepository{db: db}
}

// 确保实现了接口
var _ LeadsRepository = (*PostgresLeadsRepository)(nil)

const leadColumns = `
	id::text,
	platform_id::text,
	marketer_id::text,
	lead_data,
	current_status,
	COALESCE(next_action, ''),
	next_meeting_date,
	created_at,
	last_activity_at`

func scanLead(row interface{ Scan(...any) error }) (*domain.Lead, error) {
	var lead domain.Lead
	var marketerID sql.NullString
	var meetingDate sql.NullTime
	var leadData []byte
	err := row.Scan(
		&lead.ID,
		&lead.PlatformID,
		&marketerID,
		&leadData,
		&lead.CurrentStatus,
		&lead.NextAction,
		&meetingDate,
		&lead.CreatedAt,
		&lead.LastActivityAt,
	)
	if err != nil {
		return nil, err
	}
	if marketerID.Valid {
		lead.MarketerID = &marketerID.String
	}
	if meetingDate.Valid {
		t := meetingDate.Time
		lead.NextMeetingDate = &t
	}
	lead.LeadData = leadData
	return &lead, nil
}

// CreateLead 创建线索；有所有者时在同一事务内追加 created 活动
func (r *PostgresLeadsRepository) CreateLead(ctx context.Context, lead *domain.Lead) (string, error) {
	// 平台必须存在
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM platforms WHERE id = $1::uuid)`, lead.PlatformID,
	).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("failed to check platform: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("platform %s: %w", lead.PlatformID, domain.ErrNotFound)
	}

	id := lead.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := lead.CurrentStatus
	if status == "" {
		status = domain.StatusNew
	}
	leadData := lead.LeadData
	if len(leadData) == 0 {
		leadData = json.RawMessage(`{}`)
	}

	var marketerArg any = nil
	if lead.MarketerID != nil {
		marketerArg = *lead.MarketerID
	}
	var meetingArg any = nil
	if lead.NextMeetingDate != nil {
		meetingArg = *lead.NextMeetingDate
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO leads (id, platform_id, marketer_id, lead_data, current_status, next_action, next_meeting_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, lead.PlatformID, marketerArg, []byte(leadData), status, lead.NextAction, meetingArg,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert lead: %w", err)
	}

	if lead.MarketerID != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO lead_activities (lead_id, marketer_id, activity_type, old_values, new_values, notes)
			 VALUES ($1, $2, $3, '{}'::jsonb, $4, $5)`,
			id, *lead.MarketerID, domain.ActivityCreated, []byte(leadData), "Lead created",
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert created activity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit lead creation: %w", err)
	}
	return id, nil
}

// GetLead 获取线索
func (r *PostgresLeadsRepository) GetLead(ctx context.Context, leadID string) (*domain.Lead, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1::uuid`, leadID)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lead %s: %w", leadID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

// ListLeads 线索列表 + 总数
func (r *PostgresLeadsRepository) ListLeads(ctx context.Context, filters LeadFilters, limit, offset int) ([]*domain.Lead, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := []string{}
	args := []any{}
	argIdx := 1

	if filters.PlatformID != "" {
		where = append(where, fmt.Sprintf("platform_id = $%d::uuid", argIdx))
		args = append(args, filters.PlatformID)
		argIdx++
	}
	if filters.Unassigned {
		where = append(where, "marketer_id IS NULL")
	} else if filters.MarketerID != "" {
		where = append(where, fmt.Sprintf("marketer_id = $%d::uuid", argIdx))
		args = append(args, filters.MarketerID)
		argIdx++
	}
	if filters.VisibleToMarketer != "" {
		// 服务端可见性收口：激活分配的平台 ∪ 自己持有的线索。
		// 未分配平台的平台过滤查询因此自然得到空集而不是错误（不泄漏平台是否存在）
		where = append(where, fmt.Sprintf(`(
			platform_id IN (
				SELECT platform_id FROM marketer_assignments
				WHERE marketer_id = $%d::uuid AND is_active = TRUE
			)
			OR marketer_id = $%d::uuid
		)`, argIdx, argIdx))
		args = append(args, filters.VisibleToMarketer)
		argIdx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + joinClauses(where)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	query := `SELECT ` + leadColumns + ` FROM leads` + whereClause +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]*domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	return leads, total, rows.Err()
}

// UpdateLead 直接更新（所有权不变）
// 事务内先读旧值做快照；活动类型分类：
//   current_status 有变化 -> status_changed（notes 自动生成）
//   否则带 notes       -> note_added
//   否则               -> updated
func (r *PostgresLeadsRepository) UpdateLead(ctx context.Context, leadID, actorID string, changes LeadChanges) (*domain.Lead, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 旧值快照（写前即刻读取；两个并发编辑是 last-writer-wins，已接受的取舍）
	var oldStatus string
	var oldData []byte
	err = tx.QueryRowContext(ctx,
		`SELECT current_status, lead_data FROM leads WHERE id = $1::uuid FOR UPDATE`,
		leadID,
	).Scan(&oldStatus, &oldData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lead %s: %w", leadID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read lead for update: %w", err)
	}

	updates := []string{"last_activity_at = NOW()"}
	args := []any{leadID}
	argIdx := 2

	if len(changes.LeadData) > 0 {
		updates = append(updates, fmt.Sprintf("lead_data = $%d", argIdx))
		args = append(args, []byte(changes.LeadData))
		argIdx++
	}
	if changes.CurrentStatus != nil {
		updates = append(updates, fmt.Sprintf("current_status = $%d", argIdx))
		args = append(args, *changes.CurrentStatus)
		argIdx++
	}
	if changes.NextAction != nil {
		updates = append(updates, fmt.Sprintf("next_action = $%d", argIdx))
		args = append(args, *changes.NextAction)
		argIdx++
	}
	if changes.NextMeetingDate != nil {
		updates = append(updates, fmt.Sprintf("next_meeting_date = $%d", argIdx))
		args = append(args, *changes.NextMeetingDate)
		argIdx++
	} else if changes.ClearMeeting {
		updates = append(updates, "next_meeting_date = NULL")
	}

	query := "UPDATE leads SET " + joinUpdates(updates) + " WHERE id = $1::uuid"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}

	// 活动分类与快照
	activityType := domain.ActivityUpdated
	notes := changes.Notes
	if changes.Notes != "" {
		activityType = domain.ActivityNoteAdded
	}
	if changes.CurrentStatus != nil && *changes.CurrentStatus != oldStatus {
		activityType = domain.ActivityStatusChanged
		notes = fmt.Sprintf("Status changed from %s to %s", oldStatus, *changes.CurrentStatus)
		if changes.Notes != "" {
			notes += ". " + changes.Notes
		}
	}

	newValues := changes.LeadData
	if len(newValues) == 0 {
		newValues = json.RawMessage(`{}`)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lead_activities (lead_id, marketer_id, activity_type, old_values, new_values, notes)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		leadID, actorID, activityType, oldData, []byte(newValues), notes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert update activity: %w", err)
	}

	row := tx.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1::uuid`, leadID)
	lead, err := scanLead(row)
	if err != nil {
		return nil, fmt.Errorf("failed to reread lead: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit lead update: %w", err)
	}
	return lead, nil
}

// ClaimLead 认领：单条条件更新，零行受影响即竞争失败
// 不走 read-then-write：两个并发认领必须恰好一个成功，由行级原子更新仲裁
func (r *PostgresLeadsRepository) ClaimLead(ctx context.Context, leadID, marketerID string) (*domain.Lead, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE leads
		 SET marketer_id = $2::uuid, last_activity_at = NOW()
		 WHERE id = $1::uuid AND marketer_id IS NULL`,
		leadID, marketerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim lead: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		// 区分 "不存在" 与 "已被认领"
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM leads WHERE id = $1::uuid)`, leadID,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check lead existence: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("lead %s: %w", leadID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: lead already assigned", domain.ErrConflict)
	}

	newValues, _ := json.Marshal(map[string]string{"marketer_id": marketerID})
	_, err = tx.ExecContext(ctx,
		`INSERT INTO lead_activities (lead_id, marketer_id, activity_type, old_values, new_values, notes)
		 VALUES ($1, $2, $3, '{}'::jsonb, $4, $5)`,
		leadID, marketerID, domain.ActivityUpdated, newValues, "Lead claimed from pool",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert claim activity: %w", err)
	}

	row := tx.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1::uuid`, leadID)
	lead, err := scanLead(row)
	if err != nil {
		return nil, fmt.Errorf("failed to reread lead: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return lead, nil
}

// OptOutLead 退回公共池：事务内重读所有权（不信任任何缓存）
func (r *PostgresLeadsRepository) OptOutLead(ctx context.Context, leadID, marketerID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var owner sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT marketer_id::text FROM leads WHERE id = $1::uuid FOR UPDATE`, leadID,
	).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lead %s: %w", leadID, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to read lead owner: %w", err)
	}
	if !owner.Valid || owner.String != marketerID {
		return fmt.Errorf("%w: lead is not owned by caller", domain.ErrForbidden)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE leads SET marketer_id = NULL, last_activity_at = NOW() WHERE id = $1::uuid`, leadID)
	if err != nil {
		return fmt.Errorf("failed to opt out lead: %w", err)
	}

	oldValues, _ := json.Marshal(map[string]string{"marketer_id": marketerID})
	_, err = tx.ExecContext(ctx,
		`INSERT INTO lead_activities (lead_id, marketer_id, activity_type, old_values, new_values, notes)
		 VALUES ($1, $2, $3, $4, '{}'::jsonb, $5)`,
		leadID, marketerID, domain.ActivityUpdated, oldValues, "Lead opted out, returned to pool",
	)
	if err != nil {
		return fmt.Errorf("failed to insert opt-out activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit opt-out: %w", err)
	}
	return nil
}

// BulkUpdateStatus 批量改状态：单事务，best-effort 跳过不存在的 id
// 每条受影响线索一条活动，old_values 存空对象（有意的精度换吞吐，不要"修复"）
func (r *PostgresLeadsRepository) BulkUpdateStatus(ctx context.Context, leadIDs []string, status, actorID string) (int, error) {
	if len(leadIDs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`UPDATE leads
		 SET current_status = $1, last_activity_at = NOW()
		 WHERE id = ANY($2::uuid[])
		 RETURNING id::text`,
		status, pq.Array(leadIDs),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update status: %w", err)
	}
	updated := make([]string, 0, len(leadIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan updated id: %w", err)
		}
		updated = append(updated, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("failed to read updated ids: %w", err)
	}
	rows.Close()

	newValues, _ := json.Marshal(map[string]string{"current_status": status})
	notes := fmt.Sprintf("Bulk status update to %s", status)
	for _, id := range updated {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO lead_activities (lead_id, marketer_id, activity_type, old_values, new_values, notes)
			 VALUES ($1, $2, $3, '{}'::jsonb, $4, $5)`,
			id, actorID, domain.ActivityStatusChanged, newValues, notes,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert bulk activity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk update: %w", err)
	}
	return len(updated), nil
}

// DeleteLead 删除线索（活动随 FK 级联删除；权限判断在 Service 层）
func (r *PostgresLeadsRepository) DeleteLead(ctx context.Context, leadID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1::uuid`, leadID)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("lead %s: %w", leadID, domain.ErrNotFound)
	}
	return nil
}
