// Package profile 从交互表与声明偏好表派生用户画像，带两级缓存：
// 进程内按训练周期的 map（Train 时清空）与外部 cache（key 内嵌模型版本）。
package profile

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/flixmate/recommender/cache"
	"github.com/flixmate/recommender/core"
)

// Builder 是 UserProfile 的构建器。任何查询失败都退化为部分/空字段，
// 画像残缺不能阻塞打分。
type Builder struct {
	cache  *cache.Cache
	logger *zap.Logger

	mu    sync.RWMutex
	local map[int]*core.UserProfile
}

func NewBuilder(c *cache.Cache, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		cache:  c,
		logger: logger,
		local:  make(map[int]*core.UserProfile),
	}
}

// Reset 清空进程内画像缓存；每次成功 Train 后调用。
// 外部 cache 无需清理：key 内嵌版本号，版本一跳自然失效。
func (b *Builder) Reset() {
	b.mu.Lock()
	b.local = make(map[int]*core.UserProfile)
	b.mu.Unlock()
}

// Size 返回进程内缓存的画像数（Stats 用）。
func (b *Builder) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.local)
}

// Build 返回用户画像：先查外部 cache（按 user id 与模型版本），
// 再查进程内 map，都 miss 时从本周期数据视图派生并回写。
func (b *Builder) Build(ctx context.Context, userID int, view core.TableView) *core.UserProfile {
	cached := core.NewUserProfile(userID)
	if b.cache.GetJSON(ctx, cached, "profile", userID) {
		return cached
	}

	b.mu.RLock()
	if p, ok := b.local[userID]; ok {
		b.mu.RUnlock()
		return p
	}
	b.mu.RUnlock()

	p := derive(userID, view)

	b.cache.SetJSON(ctx, "profile", []any{userID}, p, cache.TTLProfile)
	b.mu.Lock()
	b.local[userID] = p
	b.mu.Unlock()
	return p
}

// derive 从数据视图组装画像。
func derive(userID int, view core.TableView) *core.UserProfile {
	p := core.NewUserProfile(userID)
	if view == nil {
		return p
	}

	p.PreferredGenres = view.PreferredGenres(userID)

	interactions := view.UserInteractions(userID)
	if len(interactions) == 0 {
		return p
	}

	sum := 0
	for _, in := range interactions {
		if in.Label == 1 {
			p.Liked = append(p.Liked, in.MovieID)
		} else {
			p.Disliked = append(p.Disliked, in.MovieID)
		}
		sum += in.Label
	}
	p.AvgLabel = float64(sum) / float64(len(interactions))

	// 类型权重 = 含该类型的喜欢电影数 / 喜欢电影总数；
	// 仅当至少一部喜欢的电影能解析出类型时才有值
	counts := make(map[string]int)
	for _, movieID := range p.Liked {
		m, ok := view.MovieByID(movieID)
		if !ok {
			continue
		}
		for _, g := range m.Genres {
			counts[g]++
		}
	}
	if len(counts) > 0 {
		total := float64(len(p.Liked))
		for g, c := range counts {
			p.GenreWeights[g] = float64(c) / total
		}
	}
	return p
}
