// Package optimizer 提供课表优化算法
package optimizer

import (
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// ConstraintEvaluator 约束评估器接口
type ConstraintEvaluator interface {
	// Fitness 计算课表适应度，必须是纯函数
	Fitness(s model.Schedule) int

	// MaxFitness 理论最大适应度
	MaxFitness() int
}

// ManagerEvaluator 基于约束管理器的评估器
type ManagerEvaluator struct {
	manager *constraint.Manager
	ctx     *constraint.Context
	max     int
}

// NewManagerEvaluator 创建评估器
func NewManagerEvaluator(manager *constraint.Manager, ctx *constraint.Context) *ManagerEvaluator {
	return &ManagerEvaluator{
		manager: manager,
		ctx:     ctx,
		max:     manager.MaxFitness(ctx),
	}
}

// Fitness 计算适应度
func (e *ManagerEvaluator) Fitness(s model.Schedule) int {
	return e.manager.Fitness(e.ctx, s)
}

// MaxFitness 理论最大适应度
func (e *ManagerEvaluator) MaxFitness() int {
	return e.max
}

// Solution 表示一个候选课表及其适应度
type Solution struct {
	Schedule model.Schedule
	Fitness  int
}

// Clone 深拷贝解决方案
func (s *Solution) Clone() *Solution {
	return &Solution{
		Schedule: s.Schedule.Clone(),
		Fitness:  s.Fitness,
	}
}
