package rank

import (
	"context"
	"math"
	"testing"

	"github.com/flixmate/recommender/core"
	"github.com/flixmate/recommender/factor"
)

func items(ids ...int) []*core.Item {
	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.NewItem(id))
	}
	return out
}

// coldProfile / warmProfile 构造交互数在分界两侧的画像。
func profileWithLikes(n int) *core.UserProfile {
	p := core.NewUserProfile(1)
	for i := 0; i < n; i++ {
		p.Liked = append(p.Liked, 1000+i)
	}
	return p
}

func trainedModel(t *testing.T) *factor.Model {
	t.Helper()
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
	m := factor.Build(context.Background(), interactions, noCache(), nil)
	if m == nil {
		t.Fatal("factor.Build returned nil")
	}
	return m
}

func TestHybridPickWeights(t *testing.T) {
	model := trainedModel(t)
	tests := []struct {
		name        string
		model       *factor.Model
		likes       int
		wantContent float64
		wantCollab  float64
		wantMode    string
	}{
		{name: "model absent goes content only", model: nil, likes: 10, wantContent: 1.0, wantCollab: 0, wantMode: "content_only"},
		{name: "cold user", model: model, likes: 4, wantContent: 0.8, wantCollab: 0.2, wantMode: "hybrid_cold"},
		{name: "warm user at boundary", model: model, likes: 5, wantContent: 0.4, wantCollab: 0.6, wantMode: "hybrid_warm"},
		{name: "warm user", model: model, likes: 50, wantContent: 0.4, wantCollab: 0.6, wantMode: "hybrid_warm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &HybridNode{Model: tt.model, Weights: DefaultWeights()}
			wc, wb, mode := n.pick(profileWithLikes(tt.likes))
			if wc != tt.wantContent || wb != tt.wantCollab || mode != tt.wantMode {
				t.Errorf("pick = (%f, %f, %s), want (%f, %f, %s)",
					wc, wb, mode, tt.wantContent, tt.wantCollab, tt.wantMode)
			}
		})
	}
}

func TestHybridProcessScoresAndSorts(t *testing.T) {
	movies := movieMap(
		&core.Movie{ID: 101, Genres: []string{"Action"}, Rating: 8, Popularity: 500},
		&core.Movie{ID: 103, Genres: []string{"Drama"}, Rating: 8, Popularity: 500},
		&core.Movie{ID: 999, Genres: []string{"Drama"}, Rating: 6},
	)
	model := trainedModel(t)
	n := &HybridNode{
		Content: &ContentScorer{Movies: movies, Cache: noCache()},
		Model:   model,
		Weights: DefaultWeights(),
	}

	p := core.NewUserProfile(1)
	p.GenreWeights["Action"] = 1.0
	// 交互记录让用户成为热用户
	for i := 0; i < 6; i++ {
		p.Liked = append(p.Liked, 2000+i)
	}
	rctx := &core.RecommendContext{UserID: 1, Profile: p}

	out, err := n.Process(context.Background(), rctx, items(103, 101, 999))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected scored items")
	}

	// 用户 1 在 101 的协同块里且偏好 Action：101 必须排第一
	if out[0].ID != 101 {
		t.Errorf("top item = %d, want 101", out[0].ID)
	}
	for i := 1; i < len(out); i++ {
		if out[i-1].Score < out[i].Score {
			t.Errorf("not sorted descending at %d: %f < %f", i, out[i-1].Score, out[i].Score)
		}
	}
	for _, it := range out {
		if it.Score <= 0 {
			t.Errorf("item %d kept with non-positive score %f", it.ID, it.Score)
		}
		if _, ok := it.Features["content_score"]; !ok {
			t.Errorf("item %d missing content_score feature", it.ID)
		}
		lbl, ok := it.Labels["score_mode"]
		if !ok || lbl.Value != "hybrid_warm" {
			t.Errorf("item %d score_mode = %v", it.ID, lbl)
		}
	}
	// 999 不在因子矩阵中：协同项缺席但内容分为正，仍保留
	found999 := false
	for _, it := range out {
		if it.ID == 999 {
			found999 = true
			if _, ok := it.Features["collab_score"]; ok {
				t.Error("item 999 must not carry a collab_score")
			}
		}
	}
	if !found999 {
		t.Error("item 999 with positive content score must survive")
	}
}

func TestHybridProcessDropsNonPositive(t *testing.T) {
	// 没有任何信号的电影内容分为 0，协同缺席：整体 0 分被丢弃
	movies := movieMap(&core.Movie{ID: 5})
	n := &HybridNode{
		Content: &ContentScorer{Movies: movies, Cache: noCache()},
		Weights: DefaultWeights(),
	}
	rctx := &core.RecommendContext{UserID: 1, Profile: core.NewUserProfile(1)}

	out, err := n.Process(context.Background(), rctx, items(5))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("zero-score item must be dropped, got %d items", len(out))
	}
}

func TestHybridProcessStableTies(t *testing.T) {
	// 两部电影信号完全相同：同分时保持候选输入顺序
	movies := movieMap(
		&core.Movie{ID: 1, Rating: 8},
		&core.Movie{ID: 2, Rating: 8},
	)
	n := &HybridNode{
		Content: &ContentScorer{Movies: movies, Cache: noCache()},
		Weights: DefaultWeights(),
	}
	rctx := &core.RecommendContext{UserID: 1, Profile: core.NewUserProfile(1)}

	out, err := n.Process(context.Background(), rctx, items(2, 1))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 2 || out[0].ID != 2 || out[1].ID != 1 {
		t.Errorf("tie order must follow input, got %v", []int{out[0].ID, out[1].ID})
	}
	if math.Abs(out[0].Score-out[1].Score) > 1e-12 {
		t.Errorf("scores differ: %f vs %f", out[0].Score, out[1].Score)
	}
}

func TestHybridProcessEmptyInput(t *testing.T) {
	n := &HybridNode{Weights: DefaultWeights()}
	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: 1, Profile: core.NewUserProfile(1)}, nil)
	if err != nil || out != nil {
		t.Errorf("empty input = (%v, %v), want (nil, nil)", out, err)
	}
	out, err = n.Process(context.Background(), nil, items(1))
	if err != nil || out != nil {
		t.Errorf("nil context = (%v, %v), want (nil, nil)", out, err)
	}
}
