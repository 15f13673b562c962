package core

import "github.com/flixmate/recommender/pkg/utils"

// RecommendContext 承载一次推荐请求的用户信息，贯穿整个 Node 链透传。
type RecommendContext struct {
	UserID int

	// Profile 是本次请求使用的用户画像（ProfileBuilder 产出）
	Profile *UserProfile

	// Labels 是用户级标签，可驱动 Node 行为（如 "cold_start"）
	Labels map[string]utils.Label

	// Params 请求级上下文参数
	Params map[string]any
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
