package rank

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/flixmate/recommender/core"
	"github.com/flixmate/recommender/factor"
	"github.com/flixmate/recommender/pipeline"
	"github.com/flixmate/recommender/pkg/utils"
)

// Weights 是混合权重配置，按用户交互量自适应切换。
type Weights struct {
	// MinInteractions 冷/热用户的分界：交互总数低于此值按冷用户加权
	MinInteractions int
	ColdContent     float64
	ColdCollab      float64
	WarmContent     float64
	WarmCollab      float64
}

// DefaultWeights 返回默认混合权重：冷用户 0.8/0.2，热用户 0.4/0.6，分界 5。
func DefaultWeights() Weights {
	return Weights{
		MinInteractions: 5,
		ColdContent:     0.8,
		ColdCollab:      0.2,
		WarmContent:     0.4,
		WarmCollab:      0.6,
	}
}

// HybridNode 是打分 Node：并发计算内容分量与协同分量，按自适应权重
// 组合为最终分数。只保留正分候选，降序排列，同分保持输入顺序。
//
// 协同分量缺席（用户或电影不在因子矩阵中）时该项不参与组合，
// 而不是按 0 计入 —— "没有协同意见"不等于零分。
type HybridNode struct {
	Content *ContentScorer
	Model   *factor.Model // nil 表示协同模型缺席，权重整体退回内容
	Weights Weights
}

func (n *HybridNode) Name() string        { return "rank.hybrid" }
func (n *HybridNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *HybridNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if rctx == nil || rctx.Profile == nil || len(items) == 0 {
		return nil, nil
	}
	profile := rctx.Profile

	// 两个分量相互独立，并发计算；内容分量可能逐对访问相似度缓存，
	// 耗时远大于协同分量的查表点积
	contentScores := make(map[int]float64, len(items))
	collabScores := make(map[int]float64, len(items))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		for _, it := range items {
			if s, ok := n.Content.Score(egCtx, profile, it.ID); ok {
				contentScores[it.ID] = s
			}
		}
		return nil
	})
	eg.Go(func() error {
		for _, it := range items {
			if s, ok := n.Model.Score(rctx.UserID, it.ID); ok {
				collabScores[it.ID] = s
			}
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	wContent, wCollab, mode := n.pick(profile)

	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		score := wContent * contentScores[it.ID]
		if collab, ok := collabScores[it.ID]; ok {
			score += wCollab * collab
		}
		if score <= 0 {
			continue
		}
		it.Score = score
		it.Features["content_score"] = contentScores[it.ID]
		if collab, ok := collabScores[it.ID]; ok {
			it.Features["collab_score"] = collab
		}
		it.PutLabel("score_mode", utils.Label{Value: mode, Source: "rank"})
		out = append(out, it)
	}

	// 稳定排序：同分按输入（候选）顺序
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}

// pick 按交互量选择权重；协同模型缺席时权重整体归内容。
func (n *HybridNode) pick(p *core.UserProfile) (wContent, wCollab float64, mode string) {
	w := n.Weights
	if w.MinInteractions <= 0 {
		w = DefaultWeights()
	}
	if n.Model == nil {
		return 1.0, 0, "content_only"
	}
	if p.InteractionCount() < w.MinInteractions {
		return w.ColdContent, w.ColdCollab, "hybrid_cold"
	}
	return w.WarmContent, w.WarmCollab, "hybrid_warm"
}
