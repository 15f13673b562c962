// Package rank 实现混合打分：内容分量、协同分量与自适应加权组合。
package rank

import (
	"context"

	"github.com/flixmate/recommender/cache"
	"github.com/flixmate/recommender/content"
	"github.com/flixmate/recommender/core"
)

// 内容分量的组合权重与封顶值
const (
	genreMatchWeight  = 0.4 // 声明类型命中比例
	genreHistWeight   = 0.3 // 历史类型权重
	likedSimWeight    = 0.2 // 与喜欢电影的平均相似度
	dislikedSimWeight = 0.1 // 与不喜欢电影的平均相似度（减分）
	likedSimLimit     = 5   // 参与相似度的喜欢电影数上限
	dislikedSimLimit  = 3   // 参与相似度的不喜欢电影数上限
	popularityCap     = 0.1 // 热度加成封顶：min(popularity/1000, 0.1)
	ratingCap         = 0.1 // 评分加成封顶：min(rating/10, 0.1)
)

// ContentScorer 按用户画像对候选电影计算内容分量，结果裁剪到 [0,1]。
type ContentScorer struct {
	Movies map[int]*core.Movie
	Index  *content.Index // nil 表示内容索引不可用，相似度项退化为 0
	Cache  *cache.Cache
}

// Score 计算一部候选电影的内容分。电影不在本周期表中返回 (0, false)。
func (s *ContentScorer) Score(ctx context.Context, p *core.UserProfile, movieID int) (float64, bool) {
	movie, ok := s.Movies[movieID]
	if !ok {
		return 0, false
	}

	score := 0.0

	// 声明类型命中比例
	if len(p.PreferredGenres) > 0 && len(movie.Genres) > 0 {
		preferred := p.PreferredGenreSet()
		matched := 0
		for _, g := range movie.Genres {
			if preferred[g] {
				matched++
			}
		}
		score += genreMatchWeight * float64(matched) / float64(len(preferred))
	}

	// 历史类型权重
	for _, g := range movie.Genres {
		score += genreHistWeight * p.GenreWeights[g]
	}

	// 与喜欢/不喜欢电影的相似度（仅取正相似度的均值）
	if s.Index != nil {
		if m, ok := s.meanSimilarity(ctx, movieID, p.Liked, likedSimLimit); ok {
			score += likedSimWeight * m
		}
		if m, ok := s.meanSimilarity(ctx, movieID, p.Disliked, dislikedSimLimit); ok {
			score -= dislikedSimWeight * m
		}
	}

	// 热度与评分加成
	if movie.Popularity > 0 {
		score += min(movie.Popularity/1000, popularityCap)
	}
	if movie.Rating > 0 {
		score += min(movie.Rating/10, ratingCap)
	}

	return clamp01(score), true
}

// meanSimilarity 取 movieID 与 others 前 limit 部电影中正相似度的均值；
// 没有任何正相似度时返回 (0, false)。
func (s *ContentScorer) meanSimilarity(ctx context.Context, movieID int, others []int, limit int) (float64, bool) {
	if len(others) > limit {
		others = others[:limit]
	}
	sum, n := 0.0, 0
	for _, other := range others {
		if sim := s.Index.Similarity(ctx, s.Cache, movieID, other); sim > 0 {
			sum += sim
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
