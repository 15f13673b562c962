// Package recommender 是一个混合推荐引擎（内容相似 + 协同过滤），
// 带模型版本号驱动的分层缓存与原子快照持久化。
//
// 设计要点：
// - Snapshot-first: 每次训练产出不可变快照，原子替换，读方永远看到完整一代
// - Version-keyed cache: 缓存 key 内嵌模型版本，版本一跳旧条目整体失效
// - Pipeline: 打分逻辑通过 Node 串联（Rank → Filter → ReRank），可插拔扩展
package recommender

import "github.com/flixmate/recommender/pipeline"

// 轻量 facade：便于用户直接 import 根包使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRank   = pipeline.KindRank
	KindFilter = pipeline.KindFilter
	KindReRank = pipeline.KindReRank
)
