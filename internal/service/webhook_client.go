package service

import (
	"context"
	"time"

	"leadflow-data/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// LeadEvent 外发的线索事件载荷
type LeadEvent struct {
	Event      string `json:"event"` // lead.claimed / lead.opted_out / lead.status_changed
	LeadID     string `json:"lead_id"`
	PlatformID string `json:"platform_id,omitempty"`
	MarketerID string `json:"marketer_id,omitempty"`
	Status     string `json:"status,omitempty"`
	OccurredAt int64  `json:"occurred_at"` // Unix 秒
}

// WebhookClient 线索事件外发客户端
// 事件发送是尽力而为：失败只记日志，绝不影响已提交的事务
type WebhookClient struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookClient 创建 Webhook 客户端；cfg.URL 为空时返回 nil（禁用）
func NewWebhookClient(cfg config.WebhookConfig, logger *zap.Logger) *WebhookClient {
	if cfg.URL == "" {
		return nil
	}

	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout) * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	if cfg.Secret != "" {
		client.SetHeader("X-Webhook-Secret", cfg.Secret)
	}

	return &WebhookClient{
		httpClient: client,
		url:        cfg.URL,
		logger:     logger,
	}
}

// Notify 发送一条事件（调用方应在事务提交之后调用）
func (c *WebhookClient) Notify(ctx context.Context, event LeadEvent) {
	if c == nil {
		return
	}
	event.OccurredAt = time.Now().Unix()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(event).
		Post(c.url)
	if err != nil {
		c.logger.Warn("webhook delivery failed",
			zap.String("event", event.Event),
			zap.String("lead_id", event.LeadID),
			zap.Error(err),
		)
		return
	}
	if resp.IsError() {
		c.logger.Warn("webhook endpoint returned error",
			zap.String("event", event.Event),
			zap.String("lead_id", event.LeadID),
			zap.Int("status", resp.StatusCode()),
		)
	}
}
