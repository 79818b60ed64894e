package service

import (
	"edu_progress_backend/internal/config"
	"sync"
)

const DefaultVideoThreshold = 0.8

// ProgressSettings 可热更新的进度参数
type ProgressSettings struct {
	mu        sync.RWMutex
	threshold float64
	weights   Weights
}

func NewProgressSettings(cfg config.ProgressConfig) *ProgressSettings {
	s := &ProgressSettings{threshold: DefaultVideoThreshold, weights: DefaultWeights()}
	s.Apply(cfg)
	return s
}

// Apply 非法配置保持原值
func (s *ProgressSettings) Apply(cfg config.ProgressConfig) {
	if err := cfg.Validate(); err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = cfg.VideoThreshold
	s.weights = Weights{
		Lessons:     cfg.Weights.Lessons,
		Quizzes:     cfg.Weights.Quizzes,
		Assignments: cfg.Weights.Assignments,
	}
}

func (s *ProgressSettings) VideoThreshold() float64 {
	if s == nil {
		return DefaultVideoThreshold
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

func (s *ProgressSettings) Weights() Weights {
	if s == nil {
		return DefaultWeights()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weights
}
