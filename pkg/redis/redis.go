package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"peerworkshop/backend/config"
)

// Client Redis 客户端封装
// 当前用于 Token 黑名单与校准分缓存
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// Close 关闭底层连接
func (c *Client) Close() error { return c.rdb.Close() }

// ── Token 黑名单 ──

const blacklistPrefix = "token:blacklist:"

// BlacklistToken 将 JWT ID 加入黑名单，TTL 与 Token 剩余有效期一致
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // Token 已过期，无需加入黑名单
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── 校准分缓存 ──

const calibrationPrefix = "calibration:scores:"

// SetCalibrationScores 缓存一个工作坊的校准分（userid → 百分比）
func (c *Client) SetCalibrationScores(ctx context.Context, workshopID string, scores map[string]float64, ttl time.Duration) error {
	payload, err := json.Marshal(scores)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, calibrationPrefix+workshopID, payload, ttl).Err()
}

// GetCalibrationScores 读取缓存的校准分；缓存未命中返回 (nil, nil)
func (c *Client) GetCalibrationScores(ctx context.Context, workshopID string) (map[string]float64, error) {
	payload, err := c.rdb.Get(ctx, calibrationPrefix+workshopID).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var scores map[string]float64
	if err := json.Unmarshal(payload, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// InvalidateCalibrationScores 删除缓存（评审记录变化后调用）
func (c *Client) InvalidateCalibrationScores(ctx context.Context, workshopID string) error {
	return c.rdb.Del(ctx, calibrationPrefix+workshopID).Err()
}
