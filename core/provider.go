package core

import "context"

// DataProvider 是数据源契约：一次性返回三张扁平表。
// 上游（关系库、ETL 产物、静态数据）对缺失的可选列需以约定默认值兜底：
// 空类型串、空简介、零评分/零热度、语言 "en"。
//
// 实现：
//   - provider.SQLProvider（Postgres，生产）
//   - provider.StaticProvider（内存，测试/原型）
type DataProvider interface {
	LoadTables(ctx context.Context) (*Tables, error)
}

// TableView 是一个训练周期的只读数据视图，供 ProfileBuilder 等派生组件查询。
// Engine 的快照实现此接口；Train 成功后整体替换快照指针，读方永远看不到半成品。
type TableView interface {
	// MovieByID 按 ID 查电影；不存在返回 (nil, false)
	MovieByID(id int) (*Movie, bool)

	// UserInteractions 返回该用户的全部交互（保持表内顺序）
	UserInteractions(userID int) []Interaction

	// PreferredGenres 返回该用户声明的类型偏好，未声明为空
	PreferredGenres(userID int) []string
}
