package core

import "context"

// Store 是 KV 存储的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 遵循依赖倒置原则：领域层定义接口，基础设施层实现接口
//
// 使用场景：
//   - cache.Cache 以它为后端做带版本号的 cache-aside 记忆化
//   - 后端对每个 key 自身保证原子性，调用方无需额外加锁
//
// 实现：
//   - store.MemoryStore（测试/开发/单机）
//   - store.RedisStore（生产）
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值；key 不存在返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value；ttlSeconds > 0 时设置过期时间
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error

	// Delete 删除单个 key
	Delete(ctx context.Context, key string) error

	// DeletePattern 删除所有 key 中包含 substr 的条目，返回删除数。
	// 只作为尽力而为的清理手段，失效语义由版本号承担。
	DeletePattern(ctx context.Context, substr string) (int, error)

	// Stats 返回后端统计信息（key 数量、内存占用等，字段因后端而异）
	Stats(ctx context.Context) (map[string]any, error)

	// Close 关闭连接/释放资源
	Close() error
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")
)

// IsStoreNotFound 检查错误是否为 key 不存在。
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Module == ModuleStore && domainErr.Code == ErrorCodeNotFound
}
