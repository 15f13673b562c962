package core

import "github.com/flixmate/recommender/pkg/utils"

// Item 是打分链路中的统一承载结构：候选电影、各分量分数、解释标签。
// Features 中约定的 key：
//   - "content_score": 内容分量（[0,1]）
//   - "collab_score":  协同分量（仅在因子矩阵同时含该用户与物品时写入）
// Score 为混合后的最终分数，用于排序决策；Labels 用于 explain / 观测。
type Item struct {
	ID       int
	Score    float64
	Features map[string]float64
	Labels   map[string]utils.Label
}

func NewItem(id int) *Item {
	return &Item{
		ID:       id,
		Features: make(map[string]float64),
		Labels:   make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}
