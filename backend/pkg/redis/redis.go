package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"thunder-scheduler/backend/config"
)

// ErrCacheMiss 缓存中不存在指定键
var ErrCacheMiss = errors.New("缓存未命中")

// Client Redis 客户端封装
// 用于接口限流与日历数据缓存；所有方法允许 nil 接收者，此时视为 Redis 未启用
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
		_ = rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// NewFromClient 包装已有的 go-redis 客户端（测试或共享连接时使用）
func NewFromClient(rdb *goredis.Client, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// ── 滑动窗口限流 ──

// CheckRateLimit 在 key 对应的滑动窗口内登记一次请求，返回是否仍在 limit 之内
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if c == nil {
		return true, nil
	}
	if limit <= 0 {
		return true, nil
	}

	now := time.Now()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()[:8]
	minScore := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", "("+minScore)
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: member})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return count.Val() <= int64(limit), nil
}

// ── 日历缓存 ──

const calendarVersionKey = "calendar:version"

// CalendarVersion 返回日历数据版本号，键不存在时为 0
func (c *Client) CalendarVersion(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	v, err := c.rdb.Get(ctx, calendarVersionKey).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return v, err
}

// BumpCalendarVersion 使全部日历缓存失效
func (c *Client) BumpCalendarVersion(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Incr(ctx, calendarVersionKey).Err()
}

// CalendarKey 生成带版本号的日历缓存键
func CalendarKey(version int64, start, end time.Time) string {
	return fmt.Sprintf("calendar:v%d:%s:%s", version, start.Format(time.DateOnly), end.Format(time.DateOnly))
}

// GetJSON 读取 JSON 缓存并解码到 dest，未命中返回 ErrCacheMiss
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) error {
	if c == nil {
		return ErrCacheMiss
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetJSON 以 JSON 形式写入缓存
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("Redis 未启用")
	}
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
