package core

// UserProfile 是从交互表与声明偏好表派生的用户画像。
//
// 它不是权威数据：按用户懒加载重算，带 TTL 缓存，缓存 key 内嵌模型版本，
// 版本一跳即整体失效。任何字段缺失都只意味着该信号为空，不阻塞打分。
type UserProfile struct {
	UserID int `json:"user_id"`

	// PreferredGenres 是用户声明的类型偏好；未声明时为空
	PreferredGenres []string `json:"preferred_genres"`

	// Liked / Disliked 按标签切分的电影 ID 列表，保持交互表顺序
	Liked    []int `json:"liked"`
	Disliked []int `json:"disliked"`

	// AvgLabel 是标签均值；零交互时取 0.5 作为中性先验
	AvgLabel float64 `json:"avg_label"`

	// GenreWeights = 含该类型的喜欢电影数 / 喜欢电影总数。
	// 仅当至少一部喜欢的电影能解析到带类型的已知电影时才计算。
	GenreWeights map[string]float64 `json:"genre_weights"`
}

func NewUserProfile(userID int) *UserProfile {
	return &UserProfile{
		UserID:       userID,
		AvgLabel:     0.5,
		GenreWeights: make(map[string]float64),
	}
}

// InteractionCount 返回喜欢+不喜欢的总交互数，混合权重据此自适应。
func (p *UserProfile) InteractionCount() int {
	return len(p.Liked) + len(p.Disliked)
}

// PreferredGenreSet 返回声明偏好的集合形式。
func (p *UserProfile) PreferredGenreSet() map[string]bool {
	set := make(map[string]bool, len(p.PreferredGenres))
	for _, g := range p.PreferredGenres {
		set[g] = true
	}
	return set
}
