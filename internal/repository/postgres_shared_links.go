package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"leadflow-data/internal/domain"

	"github.com/google/uuid"
)

// PostgresSharedLinksRepository 分享链接 Repository 实现
type PostgresSharedLinksRepository struct {
	db *sql.DB
}

// NewPostgresSharedLinksRepository 创建分享链接 Repository
func NewPostgresSharedLinksRepository(db *sql.DB) *PostgresSharedLinksRepository {
	return &PostgresSharedLinksRepository{db: db}
}

// 确保实现了接口
var _ SharedLinksRepository = (*PostgresSharedLinksRepository)(nil)

// CreateSharedLink 持久化 token→lead 关联
func (r *PostgresSharedLinksRepository) CreateSharedLink(ctx context.Context, link *domain.SharedLink) (string, error) {
	id := link.ID
	if id == "" {
		id = uuid.NewString()
	}
	var expiresArg any = nil
	if link.ExpiresAt != nil {
		expiresArg = *link.ExpiresAt
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO shared_links (id, token, lead_id, created_by, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, link.Token, link.LeadID, link.CreatedBy, expiresArg,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create shared link: %w", err)
	}
	return id, nil
}

// GetByToken 按 token 查找（过期判断在 Service 层：过期返回 Gone 而非删除）
func (r *PostgresSharedLinksRepository) GetByToken(ctx context.Context, token string) (*domain.SharedLink, error) {
	var link domain.SharedLink
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id::text, token, lead_id::text, created_by::text, created_at, expires_at
		 FROM shared_links WHERE token = $1`,
		token,
	).Scan(&link.ID, &link.Token, &link.LeadID, &link.CreatedBy, &link.CreatedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("shared link: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get shared link: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		link.ExpiresAt = &t
	}
	return &link, nil
}
