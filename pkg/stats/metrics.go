// Package stats 提供课表统计分析功能
package stats

import "math"

// Input 指标计算输入
type Input struct {
	RequiredHours  int // 总课时需求
	PlacedHours    int // 已安排的课时
	TotalSessions  int // 最终课表中的分配数
	TotalConflicts int // 冲突数
	Fitness        int
	MaxFitness     int
}

// Metrics 运行指标
type Metrics struct {
	QualityScore   float64 `json:"quality_score"`   // 适应度归一化 (0-100)
	SchedulingRate float64 `json:"scheduling_rate"` // 课时安排率 (%)
	TotalSessions  int     `json:"total_sessions"`
	TotalConflicts int     `json:"total_conflicts"`
	RequiredHours  int     `json:"required_hours"`
	PlacedHours    int     `json:"placed_hours"`
	UnplacedHours  int     `json:"unplaced_hours"`
	Fitness        int     `json:"fitness"`
	MaxFitness     int     `json:"max_fitness"`
}

// Calculate 计算运行指标
func Calculate(in Input) Metrics {
	m := Metrics{
		TotalSessions:  in.TotalSessions,
		TotalConflicts: in.TotalConflicts,
		RequiredHours:  in.RequiredHours,
		PlacedHours:    in.PlacedHours,
		UnplacedHours:  in.RequiredHours - in.PlacedHours,
		Fitness:        in.Fitness,
		MaxFitness:     in.MaxFitness,
	}
	if m.UnplacedHours < 0 {
		m.UnplacedHours = 0
	}

	// 没有需求视为全部安排
	m.SchedulingRate = 100
	if in.RequiredHours > 0 {
		m.SchedulingRate = clampPercent(float64(in.PlacedHours) / float64(in.RequiredHours) * 100)
	}

	if in.MaxFitness > 0 {
		m.QualityScore = clampPercent(float64(in.Fitness) / float64(in.MaxFitness) * 100)
	}
	return m
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
