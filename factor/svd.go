// Package factor 把用户×电影交互矩阵做截断 SVD 低秩分解，
// 暴露按 (user, movie) 的协同亲和度打分。
package factor

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/flixmate/recommender/cache"
	"github.com/flixmate/recommender/core"
)

// SchemaVersion 是缓存工件的编码版本号；格式变更时递增，
// 旧条目据此被识别并丢弃，而不是被悄悄误读。
const SchemaVersion = 1

// 分解的最小数据量门槛与秩上限
const (
	minMatrixDim = 3  // min(#users, #items) 下限
	minNonZero   = 5  // 非零交互数下限
	maxRank      = 20 // 秩上限
)

// Model 是协同因子模型：用户因子矩阵（|users|×k）、物品因子矩阵（|items|×k），
// 以及按升序排列、充当下标 ↔ ID 映射的两份 ID 列表。每次成功 Train 整体替换。
//
// 已知近似：缺失评分在矩阵中按 0 填充，与"明确不喜欢"无法区分。
type Model struct {
	Schema      int         `json:"schema_version"`
	K           int         `json:"k"`
	UserIDs     []int       `json:"user_ids"`
	MovieIDs    []int       `json:"movie_ids"`
	UserFactors [][]float64 `json:"user_factors"`
	ItemFactors [][]float64 `json:"item_factors"`

	userIdx map[int]int
	itemIdx map[int]int
}

// Build 从交互表构建因子模型。数据不足（m < 3 或非零项 < 5）返回 nil：
// 协同打分整体缺席，混合权重退回纯内容，这不是错误。
// 构建前先尝试从 cache 恢复上一次的工件，冷启动在 TTL 内可免去重新分解。
func Build(ctx context.Context, interactions []core.Interaction, c *cache.Cache, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(interactions) == 0 {
		return nil
	}

	if m := restore(ctx, c, logger); m != nil {
		return m
	}

	userIDs, movieIDs, dense, nz := pivot(interactions)
	minDim := len(userIDs)
	if len(movieIDs) < minDim {
		minDim = len(movieIDs)
	}
	if minDim < minMatrixDim || nz < minNonZero {
		logger.Info("insufficient interactions for factorization, content-only fallback",
			zap.Int("min_dim", minDim), zap.Int("non_zero", nz))
		return nil
	}

	k := minDim - 1
	if k > maxRank {
		k = maxRank
	}
	if half := nz / 2; half < k {
		k = half
	}
	if k < 2 {
		k = 2
	}

	var svd mat.SVD
	if ok := svd.Factorize(dense, mat.SVDThin); !ok {
		logger.Warn("svd factorization did not converge")
		return nil
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	model := &Model{
		Schema:      SchemaVersion,
		K:           k,
		UserIDs:     userIDs,
		MovieIDs:    movieIDs,
		UserFactors: make([][]float64, len(userIDs)),
		ItemFactors: make([][]float64, len(movieIDs)),
	}
	// 用户因子吸收奇异值（U_k·Σ_k），物品因子取 V_k，
	// 点积即重构的交互强度
	for i := range userIDs {
		row := make([]float64, k)
		for f := 0; f < k; f++ {
			row[f] = u.At(i, f) * s[f]
		}
		model.UserFactors[i] = row
	}
	for j := range movieIDs {
		row := make([]float64, k)
		for f := 0; f < k; f++ {
			row[f] = v.At(j, f)
		}
		model.ItemFactors[j] = row
	}
	model.buildIndex()

	c.SetJSON(ctx, "collaborative", []any{"model"}, model, cache.TTLModel)
	logger.Info("collaborative model fitted",
		zap.Int("users", len(userIDs)), zap.Int("movies", len(movieIDs)),
		zap.Int("k", k), zap.Int("non_zero", nz))
	return model
}

// restore 尝试从 cache 恢复工件；schema 版本不符时丢弃。
func restore(ctx context.Context, c *cache.Cache, logger *zap.Logger) *Model {
	var m Model
	if !c.GetJSON(ctx, &m, "collaborative", "model") {
		return nil
	}
	if m.Schema != SchemaVersion || m.K <= 0 ||
		len(m.UserFactors) != len(m.UserIDs) || len(m.ItemFactors) != len(m.MovieIDs) {
		logger.Warn("cached collaborative model has incompatible schema, refitting",
			zap.Int("schema", m.Schema))
		return nil
	}
	m.buildIndex()
	logger.Info("collaborative model restored from cache", zap.Int("k", m.K))
	return &m
}

// pivot 把交互表转成稠密用户×电影矩阵。行列按 ID 升序，缺失项填 0。
func pivot(interactions []core.Interaction) (userIDs, movieIDs []int, dense *mat.Dense, nonZero int) {
	userSet := make(map[int]bool)
	movieSet := make(map[int]bool)
	for _, in := range interactions {
		userSet[in.UserID] = true
		movieSet[in.MovieID] = true
	}
	userIDs = sortedKeys(userSet)
	movieIDs = sortedKeys(movieSet)

	userPos := make(map[int]int, len(userIDs))
	for i, id := range userIDs {
		userPos[id] = i
	}
	moviePos := make(map[int]int, len(movieIDs))
	for j, id := range movieIDs {
		moviePos[id] = j
	}

	dense = mat.NewDense(len(userIDs), len(movieIDs), nil)
	for _, in := range interactions {
		dense.Set(userPos[in.UserID], moviePos[in.MovieID], float64(in.Label))
	}
	for i := 0; i < len(userIDs); i++ {
		for j := 0; j < len(movieIDs); j++ {
			if dense.At(i, j) != 0 {
				nonZero++
			}
		}
	}
	return userIDs, movieIDs, dense, nonZero
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func (m *Model) buildIndex() {
	m.userIdx = make(map[int]int, len(m.UserIDs))
	for i, id := range m.UserIDs {
		m.userIdx[id] = i
	}
	m.itemIdx = make(map[int]int, len(m.MovieIDs))
	for j, id := range m.MovieIDs {
		m.itemIdx[id] = j
	}
}

// Score 返回用户因子与物品因子的点积。用户或电影不在训练矩阵中时
// 返回 (0, false)："没有协同意见"，与零分是两回事。
func (m *Model) Score(userID, movieID int) (float64, bool) {
	if m == nil {
		return 0, false
	}
	i, ok := m.userIdx[userID]
	if !ok {
		return 0, false
	}
	j, ok := m.itemIdx[movieID]
	if !ok {
		return 0, false
	}
	return floats.Dot(m.UserFactors[i], m.ItemFactors[j]), true
}
