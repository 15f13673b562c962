// Package persist 负责训练快照的原子落盘与恢复。
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flixmate/recommender/core"
)

// SchemaVersion 是快照文件的编码版本；格式变更时递增，
// 旧文件据此被拒绝加载，而不是被悄悄误读。
const SchemaVersion = 1

// Snapshot 是训练后引擎状态的可序列化快照：三张数据表、模型版本号与
// 最近训练时间。衍生工件（内容索引、因子矩阵）不落盘 —— 恢复后从表重建，
// 且多半能命中各自的缓存条目（版本号一并恢复）。
type Snapshot struct {
	Schema     int         `json:"schema_version"`
	Version    int64       `json:"model_version"`
	LastUpdate time.Time   `json:"last_update"`
	Tables     core.Tables `json:"tables"`
}

// Store 是快照文件的存取器。互斥锁保证并发 Train 不会交叉写同一文件；
// 写入先落临时文件再 rename，进程中途崩溃不会留下半个快照。
type Store struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Save 原子写入快照。任何失败都清理临时文件，磁盘上之前的快照保持权威。
func (s *Store) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Schema = SchemaVersion
	data, err := json.Marshal(snap)
	if err != nil {
		return core.NewDomainError(core.ModulePersist, core.ErrorCodeInternalError,
			fmt.Sprintf("persist: encode snapshot: %v", err))
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("persist: create snapshot dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.cleanupTemp(tmp)
		return fmt.Errorf("persist: write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.cleanupTemp(tmp)
		return fmt.Errorf("persist: replace snapshot: %w", err)
	}
	s.logger.Info("snapshot saved", zap.String("path", s.path), zap.Int64("version", snap.Version))
	return nil
}

// Load 读取快照。文件缺失返回 NOT_FOUND；schema 版本不符视同不可用。
func (s *Store) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewDomainError(core.ModulePersist, core.ErrorCodeNotFound,
				"persist: no snapshot on disk")
		}
		return nil, fmt.Errorf("persist: read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("persist: decode snapshot: %w", err)
	}
	if snap.Schema != SchemaVersion {
		return nil, core.NewDomainError(core.ModulePersist, core.ErrorCodeUnavailable,
			fmt.Sprintf("persist: snapshot schema %d incompatible with %d", snap.Schema, SchemaVersion))
	}
	return &snap, nil
}

func (s *Store) cleanupTemp(tmp string) {
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to clean up temp snapshot", zap.String("path", tmp), zap.Error(err))
	}
}
