package stats

import (
	"math"
	"sort"

	"github.com/kebiao/kebiao/pkg/model"
)

// WorkloadMetrics 教师负荷与教室利用率
type WorkloadMetrics struct {
	// 教师负荷
	LoadGini        float64       `json:"load_gini"`     // 课时基尼系数 (0=完全均衡, 1=完全不均衡)
	LoadVariance    float64       `json:"load_variance"` // 课时方差
	LoadStdDev      float64       `json:"load_std_dev"`  // 课时标准差
	AvgHours        float64       `json:"avg_hours"`     // 人均课时
	MaxHours        int           `json:"max_hours"`
	MinHours        int           `json:"min_hours"`
	TeacherStats    []TeacherStat `json:"teacher_stats"`
	UnassignedHours int           `json:"unassigned_hours"` // 未指定教师的课时

	// 教室利用
	RoomUtilization float64            `json:"room_utilization"` // 占用的 (教室, 时段) / 全部 (%)
	RoomStats       []RoomStat         `json:"room_stats"`
	DailyHours      map[string]int     `json:"daily_hours"`      // 每天的课时数
	KindUtilization map[string]float64 `json:"kind_utilization"` // 按教室类型的利用率 (%)

	// 综合评分
	BalanceScore float64 `json:"balance_score"` // 负荷均衡评分 (0-100)
}

// TeacherStat 教师统计
type TeacherStat struct {
	TeacherID   string  `json:"teacher_id"`
	TeacherName string  `json:"teacher_name"`
	Hours       int     `json:"hours"`
	LabHours    int     `json:"lab_hours"`
	Days        int     `json:"days"` // 有课的天数
	MaxHours    int     `json:"max_hours,omitempty"`
	Overload    int     `json:"overload"`
	Deviation   float64 `json:"deviation"` // 与平均值的偏差百分比
}

// RoomStat 教室统计
type RoomStat struct {
	RoomID      string  `json:"room_id"`
	Kind        string  `json:"kind"`
	Sessions    int     `json:"sessions"`
	Utilization float64 `json:"utilization"` // 占用时段 / 全部时段 (%)
}

// WorkloadAnalyzer 负荷分析器
type WorkloadAnalyzer struct{}

// NewWorkloadAnalyzer 创建负荷分析器
func NewWorkloadAnalyzer() *WorkloadAnalyzer {
	return &WorkloadAnalyzer{}
}

// AnalyzeWorkload 使用默认分析器分析课表
func AnalyzeWorkload(s model.Schedule, teachers []model.Teacher, rooms []model.Room, slots []model.TimeSlot) *WorkloadMetrics {
	return NewWorkloadAnalyzer().Analyze(s, teachers, rooms, slots)
}

// Analyze 分析教师负荷和教室利用率
// 教师目录中没有课的教师按0课时计入均衡统计
func (w *WorkloadAnalyzer) Analyze(s model.Schedule, teachers []model.Teacher, rooms []model.Room, slots []model.TimeSlot) *WorkloadMetrics {
	m := &WorkloadMetrics{
		TeacherStats:    []TeacherStat{},
		RoomStats:       []RoomStat{},
		DailyHours:      make(map[string]int),
		KindUtilization: make(map[string]float64),
		BalanceScore:    100,
	}

	for i := range s {
		m.DailyHours[s[i].Slot.Day]++
		if !s[i].HasTeacher() {
			m.UnassignedHours++
		}
	}

	m.TeacherStats = w.teacherStats(s, teachers)
	if len(m.TeacherStats) > 0 {
		hours := make([]float64, len(m.TeacherStats))
		for i, st := range m.TeacherStats {
			hours[i] = float64(st.Hours)
		}

		m.AvgHours = calculateMean(hours)
		m.LoadVariance = calculateVariance(hours, m.AvgHours)
		m.LoadStdDev = math.Sqrt(m.LoadVariance)
		maxH, minH := calculateRange(hours)
		m.MaxHours, m.MinHours = int(maxH), int(minH)
		m.LoadGini = calculateGini(hours)

		for i := range m.TeacherStats {
			if m.AvgHours > 0 {
				m.TeacherStats[i].Deviation = (float64(m.TeacherStats[i].Hours) - m.AvgHours) / m.AvgHours * 100
			}
		}
		m.BalanceScore = balanceScore(m.LoadGini, m.LoadStdDev, m.AvgHours)
	}

	w.roomStats(m, s, rooms, len(slots))
	return m
}

// teacherStats 统计每位教师的课时，按课时降序、ID升序
func (w *WorkloadAnalyzer) teacherStats(s model.Schedule, teachers []model.Teacher) []TeacherStat {
	statMap := make(map[string]*TeacherStat)
	days := make(map[string]map[int]struct{})

	for i := range teachers {
		t := &teachers[i]
		statMap[t.ID] = &TeacherStat{TeacherID: t.ID, TeacherName: t.Name, MaxHours: t.MaxHours}
		days[t.ID] = make(map[int]struct{})
	}

	for i := range s {
		a := &s[i]
		if !a.HasTeacher() {
			continue
		}
		stat, exists := statMap[a.TeacherID]
		if !exists {
			stat = &TeacherStat{TeacherID: a.TeacherID, TeacherName: a.TeacherID}
			statMap[a.TeacherID] = stat
			days[a.TeacherID] = make(map[int]struct{})
		}
		stat.Hours++
		if a.IsLab {
			stat.LabHours++
		}
		days[a.TeacherID][a.Slot.DayIndex] = struct{}{}
	}

	result := make([]TeacherStat, 0, len(statMap))
	for id, stat := range statMap {
		stat.Days = len(days[id])
		if stat.MaxHours > 0 && stat.Hours > stat.MaxHours {
			stat.Overload = stat.Hours - stat.MaxHours
		}
		result = append(result, *stat)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Hours != result[j].Hours {
			return result[i].Hours > result[j].Hours
		}
		return result[i].TeacherID < result[j].TeacherID
	})
	return result
}

// roomStats 统计教室占用，重复安排的 (教室, 时段) 只计一次
func (w *WorkloadAnalyzer) roomStats(m *WorkloadMetrics, s model.Schedule, rooms []model.Room, slotCount int) {
	used := make(map[string]map[int]struct{})
	for i := range s {
		if s[i].RoomID == "" {
			continue
		}
		if used[s[i].RoomID] == nil {
			used[s[i].RoomID] = make(map[int]struct{})
		}
		used[s[i].RoomID][s[i].Slot.Index] = struct{}{}
	}

	if slotCount == 0 || len(rooms) == 0 {
		return
	}

	kindUsed := make(map[string]int)
	kindTotal := make(map[string]int)
	totalUsed := 0
	for _, r := range rooms {
		n := len(used[r.ID])
		kind := string(r.Kind)
		kindUsed[kind] += n
		kindTotal[kind] += slotCount
		totalUsed += n
		m.RoomStats = append(m.RoomStats, RoomStat{
			RoomID:      r.ID,
			Kind:        kind,
			Sessions:    n,
			Utilization: float64(n) / float64(slotCount) * 100,
		})
	}

	m.RoomUtilization = float64(totalUsed) / float64(slotCount*len(rooms)) * 100
	for kind, total := range kindTotal {
		m.KindUtilization[kind] = float64(kindUsed[kind]) / float64(total) * 100
	}
}

// calculateMean 计算平均值
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateVariance 计算方差
func calculateVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// calculateRange 计算极值
func calculateRange(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// calculateGini 计算基尼系数
func calculateGini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}

	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}

// balanceScore 负荷均衡评分
func balanceScore(gini, stdDev, avg float64) float64 {
	const (
		giniWeight = 0.7
		cvWeight   = 0.3
	)

	// 基尼系数转换为分数 (0=100分, 1=0分)
	giniScore := (1 - gini) * 100

	// 变异系数越低分数越高
	cvScore := 100.0
	if avg > 0 {
		cvScore = math.Max(0, 100-stdDev/avg*200)
	}

	return clampPercent(giniWeight*giniScore + cvWeight*cvScore)
}
