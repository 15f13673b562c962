// Package cache 在 core.Store 之上实现带模型版本号的 cache-aside 记忆化。
//
// 失效协议：每个 key 都内嵌当前模型版本；IncrementVersion 单调推进版本号，
// 旧 key 随即不可达（由 TTL 自然过期），这是唯一可依赖的失效原语。
// DeletePattern 只是尽力而为的清理。
//
// 失败策略：读失败一律当 miss，写失败记日志后静默吞掉。调用方必须把缓存
// 当作纯优化，关掉缓存跑出的结果必须与开缓存完全一致。
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/flixmate/recommender/core"
)

// 各层记忆化的默认 TTL（秒）
const (
	TTLData           = 1800  // 数据表快照
	TTLProfile        = 3600  // 用户画像
	TTLModel          = 3600  // 协同因子模型
	TTLSimilarity     = 86400 // 两两内容相似度
	TTLRecommendation = 600   // 最终推荐结果
)

// Cache 是带版本号的 KV 缓存前端。backend 为 nil 时永远 miss，
// 功能路径照常工作（只是更慢）。
type Cache struct {
	backend core.Store
	version atomic.Int64
	timeout time.Duration
	logger  *zap.Logger
}

// New 创建 Cache。timeout 为每次后端操作的有界超时（<=0 时取 5s）；
// 超时视作 miss，慢缓存不能把所有请求延迟串到自己身上。
func New(backend core.Store, timeout time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Cache{backend: backend, timeout: timeout, logger: logger}
	c.version.Store(1)
	return c
}

// Available 返回是否配置了后端。
func (c *Cache) Available() bool { return c.backend != nil }

// Version 返回当前模型版本。
func (c *Cache) Version() int64 { return c.version.Load() }

// SetVersion 恢复持久化快照时回填版本号，保证重启后已缓存的工件仍可命中。
func (c *Cache) SetVersion(v int64) {
	if v > 0 {
		c.version.Store(v)
	}
}

// key 派生存储 key："<prefix>:<md5(prefix:args:v<version>)[:16]>"。
// 哈希段定宽防止参数注入冲突；明文前缀段让 DeletePattern 可以按层清理。
func (c *Cache) key(prefix string, args []any) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	content := fmt.Sprintf("%s:%s:v%d", prefix, strings.Join(parts, ":"), c.version.Load())
	sum := md5.Sum([]byte(content))
	return prefix + ":" + hex.EncodeToString(sum[:])[:16]
}

// Get 读取原始字节；后端错误（含超时）一律返回 miss。
func (c *Cache) Get(ctx context.Context, prefix string, args ...any) ([]byte, bool) {
	if c.backend == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	val, err := c.backend.Get(ctx, c.key(prefix, args))
	if err != nil {
		if !core.IsStoreNotFound(err) {
			c.logger.Warn("cache read failed, treating as miss",
				zap.String("prefix", prefix), zap.Error(err))
		}
		return nil, false
	}
	return val, true
}

// GetJSON 读取并反序列化到 v；miss 或解码失败返回 false。
func (c *Cache) GetJSON(ctx context.Context, v any, prefix string, args ...any) bool {
	raw, ok := c.Get(ctx, prefix, args...)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.logger.Warn("cache entry undecodable, treating as miss",
			zap.String("prefix", prefix), zap.Error(err))
		return false
	}
	return true
}

// Set 写入原始字节；失败记日志后返回 false，永不向上传播。
func (c *Cache) Set(ctx context.Context, prefix string, args []any, value []byte, ttlSeconds int) bool {
	if c.backend == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.backend.Set(ctx, c.key(prefix, args), value, ttlSeconds); err != nil {
		c.logger.Warn("cache write failed",
			zap.String("prefix", prefix), zap.Error(err))
		return false
	}
	return true
}

// SetJSON 序列化后写入。
func (c *Cache) SetJSON(ctx context.Context, prefix string, args []any, value any, ttlSeconds int) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache value unencodable",
			zap.String("prefix", prefix), zap.Error(err))
		return false
	}
	return c.Set(ctx, prefix, args, raw, ttlSeconds)
}

// DeletePattern 删除 key 含 substr 的所有条目，返回删除数。尽力而为。
func (c *Cache) DeletePattern(ctx context.Context, substr string) int {
	if c.backend == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.backend.DeletePattern(ctx, substr)
	if err != nil {
		c.logger.Warn("cache pattern delete failed", zap.Error(err))
	}
	return n
}

// IncrementVersion 原子推进模型版本号，使全部旧 key 立即不可达，
// 随后尽力清扫旧条目。返回新版本号。
func (c *Cache) IncrementVersion(ctx context.Context) int64 {
	v := c.version.Add(1)
	deleted := c.DeletePattern(ctx, ":")
	c.logger.Info("cache invalidated",
		zap.Int64("version", v), zap.Int("swept_keys", deleted))
	return v
}

// Stats 返回后端统计加上版本号与可用性。
func (c *Cache) Stats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"available":     c.backend != nil,
		"model_version": c.version.Load(),
	}
	if c.backend == nil {
		return stats
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	backendStats, err := c.backend.Stats(ctx)
	if err != nil {
		stats["available"] = false
		stats["error"] = err.Error()
		return stats
	}
	for k, v := range backendStats {
		stats[k] = v
	}
	return stats
}
