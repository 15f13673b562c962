package content

import (
	"context"
	"math"
	"strings"

	"github.com/flixmate/recommender/cache"
	"github.com/flixmate/recommender/core"
)

// overviewLimit 是拼入特征文本的简介截断长度（按 rune）。
const overviewLimit = 200

// Index 是内容特征索引：电影行下标 -> 稀疏 TF-IDF 向量。
// 行下标与构建时的电影切片顺序一致；重训后下标会重新映射，
// 相似度缓存 key 内嵌模型版本，旧条目随版本一跳整体失效。
type Index struct {
	vectorizer *Vectorizer
	rows       []map[int]float64
	rowByID    map[int]int
}

// blob 拼接一部电影的特征文本：类型 + 简介前 200 字符 + 语言代码。
func blob(m *core.Movie) string {
	overview := m.Overview
	if r := []rune(overview); len(r) > overviewLimit {
		overview = string(r[:overviewLimit])
	}
	return strings.Join(m.Genres, " ") + " " + overview + " " + m.Language
}

// BuildIndex 在电影表上拟合向量空间。所有特征文本为空、或筛选后词表为空时
// 返回 nil：内容相似度退化为零分，不是错误。
func BuildIndex(movies []core.Movie) *Index {
	if len(movies) == 0 {
		return nil
	}
	docs := make([]string, len(movies))
	empty := true
	for i := range movies {
		docs[i] = blob(&movies[i])
		if strings.TrimSpace(docs[i]) != "" {
			empty = false
		}
	}
	if empty {
		return nil
	}

	vectorizer, rows := Fit(docs)
	if vectorizer == nil {
		return nil
	}

	rowByID := make(map[int]int, len(movies))
	for i := range movies {
		rowByID[movies[i].ID] = i
	}
	return &Index{vectorizer: vectorizer, rows: rows, rowByID: rowByID}
}

// Row 返回电影 ID 对应的行下标。
func (idx *Index) Row(movieID int) (int, bool) {
	if idx == nil {
		return 0, false
	}
	row, ok := idx.rowByID[movieID]
	return row, ok
}

// Similarity 计算两部电影（按 ID）的余弦相似度，经 cache 记忆化。
// ID 不在索引中时返回 0。
func (idx *Index) Similarity(ctx context.Context, c *cache.Cache, id1, id2 int) float64 {
	if idx == nil {
		return 0
	}
	row1, ok1 := idx.Row(id1)
	row2, ok2 := idx.Row(id2)
	if !ok1 || !ok2 {
		return 0
	}

	var cached float64
	if c.GetJSON(ctx, &cached, "similarity", row1, row2) {
		return cached
	}

	sim := dotSparse(idx.rows[row1], idx.rows[row2]) // 行向量已 L2 归一，点积即余弦
	c.SetJSON(ctx, "similarity", []any{row1, row2}, sim, cache.TTLSimilarity)
	return sim
}

// VocabularySize 返回词表大小（Stats 用）。
func (idx *Index) VocabularySize() int {
	if idx == nil {
		return 0
	}
	return len(idx.vectorizer.Vocabulary)
}

// dotSparse 计算两个稀疏向量的点积，遍历较小的一侧。
func dotSparse(a, b map[int]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for k, va := range a {
		sum += va * b[k]
	}
	return sum
}

// smoothIDF 平滑逆文档频率：ln((1+n)/(1+df)) + 1。
func smoothIDF(n, df int) float64 {
	return math.Log(float64(1+n)/float64(1+df)) + 1
}

// normalizeL2 将稀疏向量原地 L2 归一；零向量保持不变。
func normalizeL2(vec map[int]float64) {
	var sq float64
	for _, v := range vec {
		sq += v * v
	}
	if sq == 0 {
		return
	}
	n := math.Sqrt(sq)
	for k, v := range vec {
		vec[k] = v / n
	}
}
