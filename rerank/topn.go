// Package rerank 提供排序后的重排/截断 Node。
package rerank

import (
	"context"

	"github.com/flixmate/recommender/core"
	"github.com/flixmate/recommender/pipeline"
)

// TopNNode 截取已排序候选的前 N 个，放在打分与过滤之后收尾。
//
// 示例：
//
//	pipeline := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &rank.HybridNode{...},   // 打分排序
//	        &rerank.TopNNode{N: 10}, // 截取 Top 10
//	    },
//	}
type TopNNode struct {
	// N 要保留的候选数量
	// 如果 N <= 0 或 N > len(items)，则返回所有候选（不截断）
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.N <= 0 || len(items) <= n.N {
		return items, nil
	}
	return items[:n.N], nil
}
