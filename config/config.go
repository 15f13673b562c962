// Package config 提供引擎配置的加载（YAML）与默认值。
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flixmate/recommender/rank"
)

// Config 是引擎的全部配置。
type Config struct {
	Debug   bool          `yaml:"debug"`
	Redis   RedisConfig   `yaml:"redis"`
	Scoring ScoringConfig `yaml:"scoring"`
	Engine  EngineConfig  `yaml:"engine"`
}

// RedisConfig 是缓存后端配置。Addr 为空表示不接缓存，所有层记忆化退化为 miss。
type RedisConfig struct {
	Addr           string `yaml:"addr"`
	DB             int    `yaml:"db"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout 返回缓存操作的有界超时。
func (r *RedisConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// ScoringConfig 是混合打分配置。
type ScoringConfig struct {
	// MinInteractions 冷/热用户分界，默认 5
	MinInteractions int `yaml:"min_interactions"`
	// 冷用户权重（交互数 < MinInteractions），默认 0.8 / 0.2
	ColdContentWeight float64 `yaml:"cold_content_weight"`
	ColdCollabWeight  float64 `yaml:"cold_collab_weight"`
	// 热用户权重，默认 0.4 / 0.6
	WarmContentWeight float64 `yaml:"warm_content_weight"`
	WarmCollabWeight  float64 `yaml:"warm_collab_weight"`
	// FilterRule 可选的 CEL 过滤表达式，作用在打分之后、Top-N 之前
	FilterRule string `yaml:"filter_rule"`
}

// Weights 转换为 rank 包的权重配置。
func (s *ScoringConfig) Weights() rank.Weights {
	w := rank.DefaultWeights()
	if s.MinInteractions > 0 {
		w.MinInteractions = s.MinInteractions
	}
	if s.ColdContentWeight > 0 || s.ColdCollabWeight > 0 {
		w.ColdContent = s.ColdContentWeight
		w.ColdCollab = s.ColdCollabWeight
	}
	if s.WarmContentWeight > 0 || s.WarmCollabWeight > 0 {
		w.WarmContent = s.WarmContentWeight
		w.WarmCollab = s.WarmCollabWeight
	}
	return w
}

// EngineConfig 是引擎生命周期配置。
type EngineConfig struct {
	// RetrainIntervalHours 自动重训间隔，默认 24
	RetrainIntervalHours int `yaml:"retrain_interval_hours"`
	// SnapshotPath 模型快照文件路径，默认 "model_data/snapshot.json"
	SnapshotPath string `yaml:"snapshot_path"`
	// DefaultTopN Recommend 未显式给 topN 时的默认值，默认 1
	DefaultTopN int `yaml:"default_top_n"`
}

// RetrainInterval 返回自动重训间隔。
func (e *EngineConfig) RetrainInterval() time.Duration {
	hours := e.RetrainIntervalHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// Default 返回带默认值的配置。
func Default() *Config {
	return &Config{
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			TimeoutSeconds: 5,
		},
		Scoring: ScoringConfig{
			MinInteractions:   5,
			ColdContentWeight: 0.8,
			ColdCollabWeight:  0.2,
			WarmContentWeight: 0.4,
			WarmCollabWeight:  0.6,
		},
		Engine: EngineConfig{
			RetrainIntervalHours: 24,
			SnapshotPath:         "model_data/snapshot.json",
			DefaultTopN:          1,
		},
	}
}

// Load 从 YAML 文件加载配置，未设置的字段取默认值。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
