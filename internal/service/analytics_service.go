package service

import (
	"context"
	"database/sql"
	"fmt"

	"leadflow-data/internal/domain"
	"leadflow-data/internal/repository"

	"go.uber.org/zap"
)

// AnalyticsService 管理面板统计（聚合查询直接走 *sql.DB，不进 Repository 接口）
type AnalyticsService struct {
	db            *sql.DB
	marketersRepo repository.MarketersRepository
	logger        *zap.Logger
}

// NewAnalyticsService 创建统计服务
func NewAnalyticsService(db *sql.DB, marketersRepo repository.MarketersRepository, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		db:            db,
		marketersRepo: marketersRepo,
		logger:        logger,
	}
}

// PlatformCount 平台维度线索数
type PlatformCount struct {
	PlatformID string `json:"platform_id"`
	Name       string `json:"name"`
	Count      int    `json:"count"`
}

// StatusCount 状态维度线索数
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// DashboardStats 面板汇总
type DashboardStats struct {
	Summary struct {
		TotalLeads     int `json:"total_leads"`
		TotalPlatforms int `json:"total_platforms"`
		TotalMarketers int `json:"total_marketers"`
	} `json:"summary"`
	ByPlatform []PlatformCount `json:"by_platform"`
	ByStatus   []StatusCount   `json:"by_status"`
}

// GetDashboardStats 面板汇总（仅管理员）
func (s *AnalyticsService) GetDashboardStats(ctx context.Context, identity domain.Identity) (*DashboardStats, error) {
	if !identity.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins may view dashboard stats", domain.ErrForbidden)
	}

	stats := &DashboardStats{}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&stats.Summary.TotalLeads)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM platforms`).Scan(&stats.Summary.TotalPlatforms)
	if err != nil {
		return nil, fmt.Errorf("failed to count platforms: %w", err)
	}
	stats.Summary.TotalMarketers, err = s.marketersRepo.CountActiveMarketers(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT l.platform_id::text, p.name, COUNT(*)
		 FROM leads l
		 JOIN platforms p ON p.id = l.platform_id
		 GROUP BY l.platform_id, p.name
		 ORDER BY COUNT(*) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to group leads by platform: %w", err)
	}
	defer rows.Close()
	stats.ByPlatform = make([]PlatformCount, 0)
	for rows.Next() {
		var pc PlatformCount
		if err := rows.Scan(&pc.PlatformID, &pc.Name, &pc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan platform count: %w", err)
		}
		stats.ByPlatform = append(stats.ByPlatform, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	statusRows, err := s.db.QueryContext(ctx,
		`SELECT current_status, COUNT(*)
		 FROM leads
		 GROUP BY current_status
		 ORDER BY COUNT(*) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to group leads by status: %w", err)
	}
	defer statusRows.Close()
	stats.ByStatus = make([]StatusCount, 0)
	for statusRows.Next() {
		var sc StatusCount
		if err := statusRows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.ByStatus = append(stats.ByStatus, sc)
	}
	return stats, statusRows.Err()
}
