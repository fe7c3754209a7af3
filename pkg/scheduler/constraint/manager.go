// Package constraint 定义约束接口和管理器
package constraint

import (
	"sort"
	"sync"

	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/model"
)

// DefaultBaseline 适应度基准分
const DefaultBaseline = 1000

// Manager 约束管理器
type Manager struct {
	constraints []Constraint
	baseline    int
	mu          sync.RWMutex
	logger      *logger.SchedulerLogger
}

// NewManager 创建约束管理器
func NewManager() *Manager {
	return &Manager{
		constraints: make([]Constraint, 0),
		baseline:    DefaultBaseline,
		logger:      logger.NewSchedulerLogger(),
	}
}

// SetBaseline 设置适应度基准分
func (m *Manager) SetBaseline(baseline int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline = baseline
}

// Baseline 返回适应度基准分
func (m *Manager) Baseline() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.baseline
}

// Register 注册约束
// 写时复制，正在进行的评估不受影响
func (m *Manager) Register(c Constraint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make([]Constraint, 0, len(m.constraints)+1)
	replaced := false
	for _, existing := range m.constraints {
		if existing.Type() == c.Type() {
			next = append(next, c) // 替换
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append(next, c)
	}

	// 按类别和权重排序：硬约束在前，权重高的在前
	sort.SliceStable(next, func(i, j int) bool {
		ci, cj := next[i], next[j]
		if ci.Category() != cj.Category() {
			return ci.Category() == CategoryHard
		}
		return ci.Weight() > cj.Weight()
	})
	m.constraints = next
}

// GetConstraint 获取约束
func (m *Manager) GetConstraint(t Type) Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.constraints {
		if c.Type() == t {
			return c
		}
	}
	return nil
}

// GetAll 获取所有约束
func (m *Manager) GetAll() []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Constraint, len(m.constraints))
	copy(result, m.constraints)
	return result
}

// Fitness 计算课表适应度：基准分 - 惩罚 + 奖励，下限为0
// 纯函数，可并发调用
func (m *Manager) Fitness(ctx *Context, schedule model.Schedule) int {
	m.mu.RLock()
	constraints := m.constraints
	score := m.baseline
	m.mu.RUnlock()

	for _, c := range constraints {
		score -= c.Penalty(ctx, schedule)
		if r, ok := c.(Rewarder); ok {
			score += r.Reward(ctx, schedule)
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

// MaxFitness 返回理论最大适应度
func (m *Manager) MaxFitness(ctx *Context) int {
	m.mu.RLock()
	constraints := m.constraints
	max := m.baseline
	m.mu.RUnlock()

	for _, c := range constraints {
		if r, ok := c.(Rewarder); ok {
			max += r.MaxReward(ctx)
		}
	}
	return max
}

// Evaluate 评估所有约束并返回详情
func (m *Manager) Evaluate(ctx *Context, schedule model.Schedule) *Result {
	constraints := m.GetAll()

	result := &Result{
		IsValid:        true,
		HardViolations: make([]ViolationDetail, 0),
		SoftViolations: make([]ViolationDetail, 0),
	}

	for _, c := range constraints {
		if r, ok := c.(Rewarder); ok {
			result.TotalReward += r.Reward(ctx, schedule)
		}

		valid, penalty, details := c.Evaluate(ctx, schedule)
		if valid {
			continue
		}
		result.TotalPenalty += penalty

		for _, d := range details {
			if c.Category() == CategoryHard {
				result.IsValid = false
				result.HardViolations = append(result.HardViolations, d)
				m.logger.ConstraintViolation(c.Name(), d.Message)
			} else {
				result.SoftViolations = append(result.SoftViolations, d)
			}
		}
	}

	result.Fitness = m.Baseline() - result.TotalPenalty + result.TotalReward
	if result.Fitness < 0 {
		result.Fitness = 0
	}
	result.MaxFitness = m.MaxFitness(ctx)
	result.CalculateScore()
	return result
}

// Summary 约束摘要
type Summary struct {
	Total    int `json:"total"`
	Hard     int `json:"hard"`
	Soft     int `json:"soft"`
	Baseline int `json:"baseline"`
}

// Summary 返回已注册约束的摘要
func (m *Manager) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{Total: len(m.constraints), Baseline: m.baseline}
	for _, c := range m.constraints {
		if c.Category() == CategoryHard {
			s.Hard++
		} else {
			s.Soft++
		}
	}
	return s
}
