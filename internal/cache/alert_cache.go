// Package cache 把最近一次呼叫的快照写入 Redis 供外部看板读取。
// 纯观测用途：缓存不可用只记日志，绝不影响摄取路径。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const alertKeyPrefix = "aki:alert:"

// AlertSnapshot 一次呼叫的快照
type AlertSnapshot struct {
	AlertID    string    `json:"alert_id"`
	MRN        int       `json:"mrn"`
	TestTime   time.Time `json:"test_time"`
	Creatinine float64   `json:"creatinine"`
	PagedAt    time.Time `json:"paged_at"`
}

// AlertCache 最近报警缓存（client 为 nil 时全部操作为空操作）
type AlertCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewAlertCache 创建报警缓存
func NewAlertCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *AlertCache {
	return &AlertCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// RecordAlert 写入快照（自动生成 alert_id），失败只记日志
func (c *AlertCache) RecordAlert(ctx context.Context, snapshot AlertSnapshot) {
	if c.client == nil {
		return
	}

	if snapshot.AlertID == "" {
		snapshot.AlertID = uuid.New().String()
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		c.logger.Error("Failed to marshal alert snapshot", zap.Error(err))
		return
	}

	key := fmt.Sprintf("%s%d", alertKeyPrefix, snapshot.MRN)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache alert snapshot",
			zap.Int("mrn", snapshot.MRN),
			zap.Error(err),
		)
	}
}

// GetAlert 读取快照，不存在返回 redis.Nil
func (c *AlertCache) GetAlert(ctx context.Context, mrn int) (*AlertSnapshot, error) {
	if c.client == nil {
		return nil, redis.Nil
	}

	val, err := c.client.Get(ctx, fmt.Sprintf("%s%d", alertKeyPrefix, mrn)).Result()
	if err != nil {
		return nil, err
	}

	var snapshot AlertSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert snapshot: %w", err)
	}
	return &snapshot, nil
}
