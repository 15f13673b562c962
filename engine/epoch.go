package engine

import (
	"time"

	"github.com/flixmate/recommender/content"
	"github.com/flixmate/recommender/core"
	"github.com/flixmate/recommender/factor"
)

// epoch 是一个训练周期的不可变产物：三张表的索引视图、内容索引与因子模型。
// Train 成功后整体替换引擎里的 epoch 指针，读方要么看到上一代要么看到新一代，
// 永远不会看到半成品。
type epoch struct {
	tables *core.Tables

	movies map[int]*core.Movie
	byUser map[int][]core.Interaction
	prefs  map[int][]string

	index *content.Index // nil 表示内容索引不可用
	model *factor.Model  // nil 表示协同模型缺席

	lastUpdate time.Time
}

func newEpoch(tables *core.Tables, index *content.Index, model *factor.Model, at time.Time) *epoch {
	ep := &epoch{
		tables:     tables,
		movies:     make(map[int]*core.Movie, len(tables.Movies)),
		byUser:     make(map[int][]core.Interaction),
		prefs:      make(map[int][]string, len(tables.Preferences)),
		index:      index,
		model:      model,
		lastUpdate: at,
	}
	for i := range tables.Movies {
		m := &tables.Movies[i]
		ep.movies[m.ID] = m
	}
	for _, in := range tables.Interactions {
		ep.byUser[in.UserID] = append(ep.byUser[in.UserID], in)
	}
	for _, pref := range tables.Preferences {
		ep.prefs[pref.UserID] = pref.Genres
	}
	return ep
}

func (ep *epoch) MovieByID(id int) (*core.Movie, bool) {
	m, ok := ep.movies[id]
	return m, ok
}

func (ep *epoch) UserInteractions(userID int) []core.Interaction {
	return ep.byUser[userID]
}

func (ep *epoch) PreferredGenres(userID int) []string {
	return ep.prefs[userID]
}

var _ core.TableView = (*epoch)(nil)
