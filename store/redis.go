package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flixmate/recommender/core"
)

// RedisStore 是 Redis 实现的 core.Store，生产环境使用。
// 连接与读写都设置了有界超时：缓存慢永远不能拖住请求主路径，
// 超时由上层当作 miss 处理。
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string, db int, timeout time.Duration) (*RedisStore, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, core.ErrStoreNotFound
	}
	return val, err
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	var expiration time.Duration
	if ttlSeconds > 0 {
		expiration = time.Duration(ttlSeconds) * time.Second
	}
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisStore) DeletePattern(ctx context.Context, substr string) (int, error) {
	deleted := 0
	iter := r.client.Scan(ctx, 0, "*"+substr+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			n, err := r.client.Del(ctx, batch...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(n)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	if len(batch) > 0 {
		n, err := r.client.Del(ctx, batch...).Result()
		if err != nil {
			return deleted, err
		}
		deleted += int(n)
	}
	return deleted, nil
}

func (r *RedisStore) Stats(ctx context.Context) (map[string]any, error) {
	size, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}
	stats := map[string]any{
		"backend":    r.Name(),
		"total_keys": int(size),
	}
	info, err := r.client.Info(ctx, "memory", "clients", "stats").Result()
	if err != nil {
		return stats, nil
	}
	for k, v := range parseInfo(info) {
		stats[k] = v
	}
	return stats, nil
}

// parseInfo 从 INFO 输出中提取监控关心的少数字段。
func parseInfo(info string) map[string]any {
	wanted := map[string]string{
		"used_memory_human": "memory_usage",
		"connected_clients": "connected_clients",
		"keyspace_hits":     "hits",
		"keyspace_misses":   "misses",
	}
	out := make(map[string]any, len(wanted))
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimRight(line, "\r")
		name, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key, ok := wanted[name]
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(val); err == nil {
			out[key] = n
		} else {
			out[key] = val
		}
	}
	return out
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// 确保 RedisStore 实现了 core.Store 接口
var _ core.Store = (*RedisStore)(nil)
