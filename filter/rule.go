// Package filter 提供基于 CEL (Common Expression Language) 的候选过滤 Node。
package filter

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/flixmate/recommender/core"
	"github.com/flixmate/recommender/pipeline"
	"github.com/flixmate/recommender/pkg/utils"
)

// RuleNode 按 CEL 布尔表达式过滤已打分候选，接在打分之后、Top-N 截断之前。
//
// 表达式可用变量：
//   - id:       候选电影 ID（int）
//   - user_id:  请求用户 ID（int）
//   - score:    混合分数（double）
//   - features: 分量字典（map[string]double，如 features["content_score"]）
//   - labels:   标签字典（map[string]string，如 labels["score_mode"]）
//
// 示例：
//   - `score >= 0.05`
//   - `labels["score_mode"] != "content_only" || score > 0.2`
//
// 表达式求值失败时放行该候选：过滤规则是策略优化，不是正确性依赖。
type RuleNode struct {
	Rule string

	prg cel.Program
}

// NewRuleNode 编译规则表达式；编译失败在构造期报错，而不是等到请求路径。
func NewRuleNode(rule string) (*RuleNode, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.IntType),
		cel.Variable("user_id", cel.IntType),
		cel.Variable("score", cel.DoubleType),
		cel.Variable("features", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("labels", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	ast, issues := env.Compile(rule)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile rule %q: %w", rule, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %q must evaluate to bool, got %s", rule, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build cel program: %w", err)
	}
	return &RuleNode{Rule: rule, prg: prg}, nil
}

func (n *RuleNode) Name() string        { return "filter.rule" }
func (n *RuleNode) Kind() pipeline.Kind { return pipeline.KindFilter }

func (n *RuleNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.prg == nil {
		return items, nil
	}
	userID := 0
	if rctx != nil {
		userID = rctx.UserID
	}

	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		keep := true
		val, _, err := n.prg.Eval(map[string]any{
			"id":       it.ID,
			"user_id":  userID,
			"score":    it.Score,
			"features": it.Features,
			"labels":   labelValues(it.Labels),
		})
		if err == nil {
			if b, ok := val.Value().(bool); ok {
				keep = b
			}
		}
		if keep {
			out = append(out, it)
		}
	}
	return out, nil
}

func labelValues(labels map[string]utils.Label) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v.Value
	}
	return out
}
