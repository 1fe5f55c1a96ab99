package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"leadflow-data/internal/domain"

	"github.com/google/uuid"
)

// PostgresActivitiesRepository 活动日志 Repository 实现（append-only）
type PostgresActivitiesRepository struct {
	db *sql.DB
}

// NewPostgresActivitiesRepository 创建活动日志 Repository
func NewPostgresActivitiesRepository(db *sql.DB) *PostgresActivitiesRepository {
	return &PostgresActivitiesRepository{db: db}
}

// 确保实现了接口
var _ ActivitiesRepository = (*PostgresActivitiesRepository)(nil)

// AppendActivity 追加一条活动
func (r *PostgresActivitiesRepository) AppendActivity(ctx context.Context, a *domain.LeadActivity) (string, error) {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	oldValues := a.OldValues
	if len(oldValues) == 0 {
		oldValues = json.RawMessage(`{}`)
	}
	newValues := a.NewValues
	if len(newValues) == 0 {
		newValues = json.RawMessage(`{}`)
	}
	var marketerArg any = nil
	if a.MarketerID != nil {
		marketerArg = *a.MarketerID
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO lead_activities (id, lead_id, marketer_id, activity_type, old_values, new_values, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, a.LeadID, marketerArg, a.ActivityType, []byte(oldValues), []byte(newValues), a.Notes,
	)
	if err != nil {
		return "", fmt.Errorf("failed to append activity: %w", err)
	}
	return id, nil
}

// ListLeadActivities 指定线索的活动历史（created_at 倒序，带操作者展示名）
func (r *PostgresActivitiesRepository) ListLeadActivities(ctx context.Context, leadID string) ([]*ActivityRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id::text, a.lead_id::text, a.marketer_id::text, a.activity_type,
		        a.old_values, a.new_values, COALESCE(a.notes, ''), a.created_at,
		        COALESCE(m.full_name, '')
		 FROM lead_activities a
		 LEFT JOIN marketers m ON m.id = a.marketer_id
		 WHERE a.lead_id = $1::uuid
		 ORDER BY a.created_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	records := make([]*ActivityRecord, 0)
	for rows.Next() {
		var rec ActivityRecord
		var marketerID sql.NullString
		var oldValues, newValues []byte
		if err := rows.Scan(&rec.ID, &rec.LeadID, &marketerID, &rec.ActivityType,
			&oldValues, &newValues, &rec.Notes, &rec.CreatedAt, &rec.MarketerName); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if marketerID.Valid {
			rec.MarketerID = &marketerID.String
		}
		rec.OldValues = oldValues
		rec.NewValues = newValues
		records = append(records, &rec)
	}
	return records, rows.Err()
}
