package core

import "strings"

// Movie 是一部电影在一个训练周期内的只读记录。
// Genres 在构造时从数据源的 "A|B|C" 竖线串解析为去重集合，后续不再修改；
// 下一次 Train 整表替换，而不是原地更新。
type Movie struct {
	ID         int      `json:"id"`
	Title      string   `json:"title"`
	Overview   string   `json:"overview"`
	Rating     float64  `json:"rating"`
	Popularity float64  `json:"popularity"`
	Language   string   `json:"language"`
	Genres     []string `json:"genres"`
}

// ParseGenres 解析竖线分隔的类型串，去掉空白项并保持首次出现顺序去重。
func ParseGenres(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	seen := make(map[string]bool)
	out := make([]string, 0, 4)
	for _, g := range strings.Split(s, "|") {
		g = strings.TrimSpace(g)
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}

// GenreSet 返回类型集合，供打分时做交集运算。
func (m *Movie) GenreSet() map[string]bool {
	set := make(map[string]bool, len(m.Genres))
	for _, g := range m.Genres {
		set[g] = true
	}
	return set
}

// Interaction 是一条二元反馈：Label ∈ {0,1}（1=喜欢，0=不喜欢）。
// 同一 (UserID, MovieID) 至多保留一条，后写覆盖先写。
type Interaction struct {
	UserID  int `json:"user_id"`
	MovieID int `json:"movie_id"`
	Label   int `json:"label"`
}

// GenrePreference 是用户声明的类型偏好，按训练周期整表刷新，只读。
type GenrePreference struct {
	UserID int      `json:"user_id"`
	Genres []string `json:"genres"`
}

// Tables 是一个训练周期的三张输入表。
// Engine 在 Train 期间独占修改；其他组件只拿到本周期的只读视图。
type Tables struct {
	Movies       []Movie           `json:"movies"`
	Interactions []Interaction     `json:"interactions"`
	Preferences  []GenrePreference `json:"preferences"`
}

// MergeInteractions 把 incoming 合并进 existing：同一 (user, movie) 后写覆盖先写。
// 返回合并结果与被覆盖的旧记录数。顺序保持 existing 在前、新增在后，保证重训可复现。
func MergeInteractions(existing, incoming []Interaction) ([]Interaction, int) {
	if len(incoming) == 0 {
		return existing, 0
	}
	type pair struct{ u, m int }
	override := make(map[pair]Interaction, len(incoming))
	for _, in := range incoming {
		override[pair{in.UserID, in.MovieID}] = in
	}

	overwritten := 0
	out := make([]Interaction, 0, len(existing)+len(incoming))
	for _, ex := range existing {
		if in, ok := override[pair{ex.UserID, ex.MovieID}]; ok {
			out = append(out, in)
			delete(override, pair{ex.UserID, ex.MovieID})
			overwritten++
			continue
		}
		out = append(out, ex)
	}
	// 未覆盖任何旧记录的新交互按 incoming 原始顺序追加
	for _, in := range incoming {
		if v, ok := override[pair{in.UserID, in.MovieID}]; ok && v == in {
			out = append(out, in)
			delete(override, pair{in.UserID, in.MovieID})
		}
	}
	return out, overwritten
}
