// Package engine 是推荐引擎的编排层：生命周期状态机、训练周期的快照替换、
// 带分层记忆化的推荐请求路径，以及快照的落盘与恢复。
package engine

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/flixmate/recommender/cache"
	"github.com/flixmate/recommender/config"
	"github.com/flixmate/recommender/content"
	"github.com/flixmate/recommender/core"
	"github.com/flixmate/recommender/factor"
	"github.com/flixmate/recommender/filter"
	"github.com/flixmate/recommender/persist"
	"github.com/flixmate/recommender/pipeline"
	"github.com/flixmate/recommender/profile"
	"github.com/flixmate/recommender/rank"
	"github.com/flixmate/recommender/rerank"
	"github.com/flixmate/recommender/store"
)

// State 是引擎生命周期状态。
type State int32

const (
	StateUninitialized State = iota // 尚未训练，无可用快照
	StateLoading                    // 正在从持久化快照恢复
	StateReady                      // 有可用快照，可服务请求
	StateTraining                   // 训练中，旧快照继续服务
	StateDegraded                   // 数据源失败或电影表为空，拒绝请求
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateTraining:
		return "training"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// ScoredMovie 是推荐结果里的一条打分候选。
type ScoredMovie struct {
	MovieID int     `json:"movie_id"`
	Score   float64 `json:"score"`
}

// Recommendation 是一次推荐的结果：首位电影、完整降序列表与缓存命中标记。
type Recommendation struct {
	MovieID   int           `json:"movie_id"`
	Score     float64       `json:"score"`
	Results   []ScoredMovie `json:"results"`
	CacheUsed bool          `json:"cache_used"`
}

// Engine 是推荐引擎句柄。所有公开方法并发安全：
// 读路径走原子快照指针，Train 与持久化由同一把互斥锁串行化。
type Engine struct {
	cfg      *config.Config
	provider core.DataProvider
	cache    *cache.Cache
	profiles *profile.Builder
	snaps    *persist.Store   // nil 表示未启用持久化
	rule     *filter.RuleNode // nil 表示无过滤规则
	weights  rank.Weights
	logger   *zap.Logger

	state atomic.Int32
	cur   atomic.Pointer[epoch]

	// trainMu 串行化 Train / Restore / Save；请求路径不持有它
	trainMu sync.Mutex
}

// New 按配置创建引擎。缓存后端按 Redis 配置接入，连接失败只会
// 禁用缓存而不是让引擎失败 —— 无缓存路径必须产出完全相同的结果。
func New(cfg *config.Config, provider core.DataProvider, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var backend core.Store
	if cfg.Redis.Addr != "" {
		rs, err := store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Timeout())
		if err != nil {
			logger.Warn("redis unreachable, running without cache",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			backend = rs
		}
	}
	return NewWithBackend(cfg, provider, backend, logger)
}

// NewWithBackend 用显式缓存后端创建引擎；backend 为 nil 时关闭缓存。
func NewWithBackend(cfg *config.Config, provider core.DataProvider, backend core.Store, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if provider == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput,
			"engine: data provider is required")
	}

	c := cache.New(backend, cfg.Redis.Timeout(), logger)

	var rule *filter.RuleNode
	if expr := cfg.Scoring.FilterRule; expr != "" {
		node, err := filter.NewRuleNode(expr)
		if err != nil {
			return nil, fmt.Errorf("engine: filter rule: %w", err)
		}
		rule = node
	}

	var snaps *persist.Store
	if cfg.Engine.SnapshotPath != "" {
		snaps = persist.NewStore(cfg.Engine.SnapshotPath, logger)
	}

	e := &Engine{
		cfg:      cfg,
		provider: provider,
		cache:    c,
		profiles: profile.NewBuilder(c, logger),
		snaps:    snaps,
		rule:     rule,
		weights:  cfg.Scoring.Weights(),
		logger:   logger,
	}
	e.state.Store(int32(StateUninitialized))
	return e, nil
}

// State 返回当前生命周期状态。
func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) setState(s State) { e.state.Store(int32(s)) }

// Train 执行一个完整训练周期：先推进缓存版本号（旧条目随即不可达），
// 再加载数据表、合并增量交互（同键后写覆盖先写）、重建内容索引与因子模型，
// 最后原子替换快照。任何一步失败都不替换快照，上一代继续服务。
func (e *Engine) Train(ctx context.Context, incoming ...core.Interaction) error {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	e.setState(StateTraining)
	started := time.Now()

	// 版本推进必须先于数据重载，保证后续所有读写都落在新版本的 key 空间
	version := e.cache.IncrementVersion(ctx)

	tables, err := e.loadTables(ctx)
	if err != nil {
		e.setState(StateDegraded)
		return err
	}
	if len(tables.Movies) == 0 {
		e.setState(StateDegraded)
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnavailable,
			"engine: movie table is empty")
	}

	if len(incoming) > 0 {
		merged, overwritten := core.MergeInteractions(tables.Interactions, incoming)
		tables.Interactions = merged
		e.logger.Info("interactions merged",
			zap.Int("incoming", len(incoming)), zap.Int("overwritten", overwritten))
	}

	index := content.BuildIndex(tables.Movies)
	model := factor.Build(ctx, tables.Interactions, e.cache, e.logger)

	e.cur.Store(newEpoch(tables, index, model, time.Now()))
	e.profiles.Reset()
	e.setState(StateReady)

	e.logger.Info("training completed",
		zap.Int64("version", version),
		zap.Int("movies", len(tables.Movies)),
		zap.Int("interactions", len(tables.Interactions)),
		zap.Bool("content_index", index != nil),
		zap.Bool("collaborative_model", model != nil),
		zap.Duration("elapsed", time.Since(started)))

	// 落盘失败不影响训练结果，下一次 Train 还有机会
	if e.snaps != nil {
		if err := e.saveLocked(); err != nil {
			e.logger.Warn("snapshot save failed", zap.Error(err))
		}
	}
	return nil
}

// loadTables 加载三张表，优先用缓存副本（TTL 内重启免打数据源）。
func (e *Engine) loadTables(ctx context.Context) (*core.Tables, error) {
	var cached core.Tables
	if e.cache.GetJSON(ctx, &cached, "db_data", "all") {
		e.logger.Info("tables served from cache",
			zap.Int("movies", len(cached.Movies)))
		return &cached, nil
	}

	tables, err := e.provider.LoadTables(ctx)
	if err != nil {
		if de := core.GetDomainError(err); de != nil {
			return nil, err
		}
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnavailable,
			fmt.Sprintf("engine: load tables: %v", err))
	}
	e.cache.SetJSON(ctx, "db_data", []any{"all"}, tables, cache.TTLData)
	return tables, nil
}

// Recommend 在候选集内为用户打分并返回 Top-N。候选校验失败返回 INVALID_INPUT，
// 引擎不可用返回 UNAVAILABLE，打分后无正分候选返回 EMPTY_RESULT。
// 快照过旧时机会性重训，重训失败记日志后继续用旧快照服务。
func (e *Engine) Recommend(ctx context.Context, userID int, candidateIDs []int, topN int) (*Recommendation, error) {
	if userID <= 0 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput,
			"engine: user id must be positive")
	}
	if len(candidateIDs) == 0 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput,
			"engine: candidate list is empty")
	}
	for _, id := range candidateIDs {
		if id <= 0 {
			return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput,
				fmt.Sprintf("engine: invalid candidate id %d", id))
		}
	}
	if topN <= 0 {
		topN = e.cfg.Engine.DefaultTopN
		if topN <= 0 {
			topN = 1
		}
	}

	if e.State() == StateDegraded {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnavailable,
			"engine: degraded, data source unavailable")
	}
	ep := e.cur.Load()
	if ep == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnavailable,
			"engine: not trained yet")
	}
	ep = e.maybeRetrain(ctx, ep)

	candKey := candidateHash(candidateIDs)
	var rec Recommendation
	if e.cache.GetJSON(ctx, &rec, "recommendation", userID, candKey, topN) {
		rec.CacheUsed = true
		return &rec, nil
	}

	rctx := &core.RecommendContext{
		UserID:  userID,
		Profile: e.profiles.Build(ctx, userID, ep),
	}
	items := make([]*core.Item, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		items = append(items, core.NewItem(id))
	}

	nodes := []pipeline.Node{
		&rank.HybridNode{
			Content: &rank.ContentScorer{Movies: ep.movies, Index: ep.index, Cache: e.cache},
			Model:   ep.model,
			Weights: e.weights,
		},
	}
	if e.rule != nil {
		nodes = append(nodes, e.rule)
	}
	nodes = append(nodes, &rerank.TopNNode{N: topN})

	out, err := (&pipeline.Pipeline{Nodes: nodes}).Run(ctx, rctx, items)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInternalError,
			fmt.Sprintf("engine: scoring pipeline: %v", err))
	}
	if len(out) == 0 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeEmptyResult,
			"engine: no candidate scored above zero")
	}

	rec = Recommendation{
		MovieID: out[0].ID,
		Score:   out[0].Score,
		Results: make([]ScoredMovie, 0, len(out)),
	}
	for _, it := range out {
		rec.Results = append(rec.Results, ScoredMovie{MovieID: it.ID, Score: it.Score})
	}
	e.cache.SetJSON(ctx, "recommendation", []any{userID, candKey, topN}, &rec, cache.TTLRecommendation)
	return &rec, nil
}

// maybeRetrain 在快照超过重训间隔时触发一次 Train。
// 失败只记日志：对请求方而言旧快照仍然可用。
func (e *Engine) maybeRetrain(ctx context.Context, ep *epoch) *epoch {
	if time.Since(ep.lastUpdate) <= e.cfg.Engine.RetrainInterval() {
		return ep
	}
	e.logger.Info("snapshot stale, retraining",
		zap.Time("last_update", ep.lastUpdate))
	if err := e.Train(ctx); err != nil {
		e.logger.Warn("opportunistic retrain failed, serving previous snapshot", zap.Error(err))
		return ep
	}
	if fresh := e.cur.Load(); fresh != nil {
		return fresh
	}
	return ep
}

// Stats 返回缓存、快照与模型的运行指标。
func (e *Engine) Stats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"state":           e.State().String(),
		"cache":           e.cache.Stats(ctx),
		"profiles_cached": e.profiles.Size(),
	}
	ep := e.cur.Load()
	if ep == nil {
		return stats
	}
	stats["movies"] = len(ep.tables.Movies)
	stats["interactions"] = len(ep.tables.Interactions)
	stats["last_update"] = ep.lastUpdate.Format(time.RFC3339)
	stats["content_index"] = ep.index != nil
	if ep.index != nil {
		stats["vocabulary_size"] = ep.index.VocabularySize()
	}
	stats["collaborative_model"] = ep.model != nil
	if ep.model != nil {
		stats["model_rank"] = ep.model.K
	}
	return stats
}

// Save 把当前快照原子落盘。未训练或未启用持久化时返回 UNAVAILABLE。
func (e *Engine) Save() error {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()
	return e.saveLocked()
}

func (e *Engine) saveLocked() error {
	if e.snaps == nil {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnavailable,
			"engine: persistence disabled")
	}
	ep := e.cur.Load()
	if ep == nil {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnavailable,
			"engine: nothing to save, not trained yet")
	}
	return e.snaps.Save(&persist.Snapshot{
		Version:    e.cache.Version(),
		LastUpdate: ep.lastUpdate,
		Tables:     *ep.tables,
	})
}

// Restore 从磁盘快照恢复：回填缓存版本号，再从快照表重建索引与因子模型
// （多半命中恢复版本下的缓存工件）。恢复成功后引擎进入 Ready。
func (e *Engine) Restore(ctx context.Context) error {
	if e.snaps == nil {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnavailable,
			"engine: persistence disabled")
	}
	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	e.setState(StateLoading)
	snap, err := e.snaps.Load()
	if err != nil {
		e.setState(StateUninitialized)
		return err
	}
	if len(snap.Tables.Movies) == 0 {
		e.setState(StateDegraded)
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnavailable,
			"engine: snapshot movie table is empty")
	}

	e.cache.SetVersion(snap.Version)
	tables := snap.Tables
	index := content.BuildIndex(tables.Movies)
	model := factor.Build(ctx, tables.Interactions, e.cache, e.logger)

	e.cur.Store(newEpoch(&tables, index, model, snap.LastUpdate))
	e.profiles.Reset()
	e.setState(StateReady)

	e.logger.Info("snapshot restored",
		zap.Int64("version", snap.Version),
		zap.Int("movies", len(tables.Movies)),
		zap.Time("last_update", snap.LastUpdate))
	return nil
}

// candidateHash 对候选 ID 排序后取 md5 前 8 位，作为推荐缓存 key 的一部分。
// 排序保证同一候选集不同顺序命中同一条目。
func candidateHash(ids []int) string {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.Itoa(id)
	}
	sum := md5.Sum([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])[:8]
}
