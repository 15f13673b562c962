package pipeline

import (
	"context"

	"github.com/flixmate/recommender/core"
)

// Kind 用于标记 Node 类型，方便观测/治理（例如按阶段打点）。
type Kind string

const (
	KindRank   Kind = "rank"   // 打分阶段：对候选写入分量并计算混合分
	KindFilter Kind = "filter" // 过滤阶段：剔除不符合规则的候选
	KindReRank Kind = "rerank" // 重排阶段：截断/调序
)

// Node 是打分链路的最小可扩展单元。
// 统一采用"输入 items -> 输出 items"的形态，打分、过滤、截断都是同一形状。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}
