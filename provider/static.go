package provider

import (
	"context"

	"github.com/flixmate/recommender/core"
)

// StaticProvider 返回固定的内存数据，主要用于测试与示例。
// Err 非空时 LoadTables 直接返回该错误，方便模拟数据源故障。
type StaticProvider struct {
	Tables core.Tables
	Err    error
}

func NewStaticProvider(tables core.Tables) *StaticProvider {
	return &StaticProvider{Tables: tables}
}

func (p *StaticProvider) LoadTables(ctx context.Context) (*core.Tables, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	// 返回浅拷贝，调用方持有的切片头独立于 Provider
	t := core.Tables{
		Movies:       append([]core.Movie(nil), p.Tables.Movies...),
		Interactions: append([]core.Interaction(nil), p.Tables.Interactions...),
		Preferences:  append([]core.GenrePreference(nil), p.Tables.Preferences...),
	}
	return &t, nil
}

var _ core.DataProvider = (*StaticProvider)(nil)
