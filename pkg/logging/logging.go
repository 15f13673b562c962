// Package logging 提供统一的 zap Logger 构造。
package logging

import "go.uber.org/zap"

// New 返回生产配置的 Logger；debug 为 true 时使用开发配置（彩色、DebugLevel）。
// 构造失败时退化为 Nop，日志永远不是功能路径的正确性依赖。
func New(debug bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
