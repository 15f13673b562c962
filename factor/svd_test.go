package factor

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/flixmate/recommender/cache"
	"github.com/flixmate/recommender/core"
	"github.com/flixmate/recommender/store"
)

func noCache() *cache.Cache { return cache.New(nil, time.Second, nil) }

// denseInteractions 构造 users×movies 的全 1 交互网格。
func denseInteractions(users, movies int) []core.Interaction {
	out := make([]core.Interaction, 0, users*movies)
	for u := 1; u <= users; u++ {
		for m := 1; m <= movies; m++ {
			out = append(out, core.Interaction{UserID: u, MovieID: 100 + m, Label: 1})
		}
	}
	return out
}

func TestBuildInsufficientData(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name         string
		interactions []core.Interaction
	}{
		{name: "no interactions", interactions: nil},
		{
			name: "too few users",
			// 2 用户 × 3 电影：min(m) = 2 < 3
			interactions: denseInteractions(2, 3),
		},
		{
			name: "too few non-zero entries",
			// 3 用户 × 3 电影但只有 4 个非零标签
			interactions: []core.Interaction{
				{UserID: 1, MovieID: 101, Label: 1},
				{UserID: 2, MovieID: 102, Label: 1},
				{UserID: 3, MovieID: 103, Label: 1},
				{UserID: 1, MovieID: 102, Label: 1},
				{UserID: 2, MovieID: 103, Label: 0}, // 0 标签不计入非零
				{UserID: 3, MovieID: 101, Label: 0},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if m := Build(ctx, tt.interactions, noCache(), nil); m != nil {
				t.Errorf("Build = %+v, want nil", m)
			}
		})
	}
}

func TestBuildRankPolicy(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		users  int
		movies int
		wantK  int
	}{
		// k = max(2, min(min(20, minDim-1), nz/2))
		{name: "small grid floors at 2", users: 3, movies: 3, wantK: 2},
		{name: "minDim bounds k", users: 5, movies: 8, wantK: 4},
		{name: "cap at 20", users: 30, movies: 40, wantK: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Build(ctx, denseInteractions(tt.users, tt.movies), noCache(), nil)
			if m == nil {
				t.Fatal("Build returned nil on sufficient data")
			}
			if m.K != tt.wantK {
				t.Errorf("K = %d, want %d", m.K, tt.wantK)
			}
			if len(m.UserFactors) != tt.users || len(m.ItemFactors) != tt.movies {
				t.Errorf("factors %dx%d, want %dx%d",
					len(m.UserFactors), len(m.ItemFactors), tt.users, tt.movies)
			}
		})
	}
}

func TestModelScore(t *testing.T) {
	ctx := context.Background()
	// 两个明显的偏好块：用户 1-2 喜欢电影 101-102，用户 3-4 喜欢电影 103-104
	interactions := []core.Interaction{
		{UserID: 1, MovieID: 101, Label: 1},
		{UserID: 1, MovieID: 102, Label: 1},
		{UserID: 2, MovieID: 101, Label: 1},
		{UserID: 2, MovieID: 102, Label: 1},
		{UserID: 3, MovieID: 103, Label: 1},
		{UserID: 3, MovieID: 104, Label: 1},
		{UserID: 4, MovieID: 103, Label: 1},
		{UserID: 4, MovieID: 104, Label: 1},
	}
	m := Build(ctx, interactions, noCache(), nil)
	if m == nil {
		t.Fatal("Build returned nil")
	}

	inBlock, ok := m.Score(1, 102)
	if !ok {
		t.Fatal("Score(1,102) should have an opinion")
	}
	outBlock, ok := m.Score(1, 104)
	if !ok {
		t.Fatal("Score(1,104) should have an opinion")
	}
	if inBlock <= outBlock {
		t.Errorf("in-block score %f must exceed cross-block score %f", inBlock, outBlock)
	}
	// 重构的交互强度应接近 1
	if math.Abs(inBlock-1) > 0.2 {
		t.Errorf("reconstructed strength = %f, want near 1", inBlock)
	}

	// 未见过的用户/电影没有协同意见
	if _, ok := m.Score(99, 101); ok {
		t.Error("unknown user must have no opinion")
	}
	if _, ok := m.Score(1, 999); ok {
		t.Error("unknown movie must have no opinion")
	}

	// nil 模型安全
	var nilModel *Model
	if _, ok := nilModel.Score(1, 101); ok {
		t.Error("nil model must have no opinion")
	}
}

func TestBuildRestoresFromCache(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	defer ms.Close()
	c := cache.New(ms, time.Second, nil)

	interactions := denseInteractions(4, 4)
	first := Build(ctx, interactions, c, nil)
	if first == nil {
		t.Fatal("first Build returned nil")
	}

	// 同版本下第二次构建从缓存恢复，交互表即使为空也能拿到工件
	restored := Build(ctx, []core.Interaction{{UserID: 1, MovieID: 101, Label: 1}}, c, nil)
	if restored == nil {
		t.Fatal("restore returned nil")
	}
	if restored.K != first.K || len(restored.UserIDs) != len(first.UserIDs) {
		t.Errorf("restored model differs: K=%d users=%d", restored.K, len(restored.UserIDs))
	}
	s1, ok1 := first.Score(1, 101)
	s2, ok2 := restored.Score(1, 101)
	if !ok1 || !ok2 || math.Abs(s1-s2) > 1e-9 {
		t.Errorf("restored score %f (%v), want %f (%v)", s2, ok2, s1, ok1)
	}

	// 版本一跳后缓存工件不可达，数据不足则整体缺席
	c.IncrementVersion(ctx)
	if m := Build(ctx, []core.Interaction{{UserID: 1, MovieID: 101, Label: 1}}, c, nil); m != nil {
		t.Error("after version bump insufficient data must yield nil model")
	}
}

func TestPivot(t *testing.T) {
	interactions := []core.Interaction{
		{UserID: 3, MovieID: 30, Label: 1},
		{UserID: 1, MovieID: 10, Label: 1},
		{UserID: 2, MovieID: 20, Label: 0},
	}
	userIDs, movieIDs, dense, nz := pivot(interactions)

	wantUsers := []int{1, 2, 3}
	for i, id := range wantUsers {
		if userIDs[i] != id {
			t.Errorf("userIDs[%d] = %d, want %d (ascending order)", i, userIDs[i], id)
		}
	}
	wantMovies := []int{10, 20, 30}
	for i, id := range wantMovies {
		if movieIDs[i] != id {
			t.Errorf("movieIDs[%d] = %d, want %d (ascending order)", i, movieIDs[i], id)
		}
	}
	if nz != 2 {
		t.Errorf("nonZero = %d, want 2 (label 0 fills as zero)", nz)
	}
	if dense.At(0, 0) != 1 || dense.At(1, 1) != 0 || dense.At(2, 2) != 1 {
		t.Error("pivot placed labels at wrong positions")
	}
}
