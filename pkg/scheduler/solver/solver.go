// Package solver 提供排课求解器
package solver

import (
	"context"
	"time"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/optimizer"
	"github.com/kebiao/kebiao/pkg/scheduler/placement"
)

// Solver 求解器接口
type Solver interface {
	// Solve 生成课表
	Solve(ctx context.Context, schedCtx *constraint.Context) (*Result, error)

	// Name 返回求解器名称
	Name() string
}

// Result 求解结果
type Result struct {
	Schedule   model.Schedule             `json:"assignments"`
	Unplaced   []placement.Unplaced       `json:"unplaced"`
	Fitness    int                        `json:"fitness"`
	MaxFitness int                        `json:"max_fitness"`
	Trace      []optimizer.GenerationStat `json:"trace,omitempty"`
	Iterations int                        `json:"iterations"`
	Cancelled  bool                       `json:"cancelled"`
	TimedOut   bool                       `json:"timed_out"` // 求解器自身的时间预算耗尽
	Duration   time.Duration              `json:"duration"`
}

// PlacedHours 已安排的课时数
func (r *Result) PlacedHours() int {
	return len(r.Schedule)
}

// finish 计算适应度并记录耗时
func (r *Result) finish(cm *constraint.Manager, schedCtx *constraint.Context, start time.Time) {
	r.Fitness = cm.Fitness(schedCtx, r.Schedule)
	r.MaxFitness = cm.MaxFitness(schedCtx)
	r.Duration = time.Since(start)
}

// cancelledFrom 将第 from 个之后的需求记为因取消未安排
func cancelledFrom(reqs []placement.Requirement, from int) []placement.Unplaced {
	out := make([]placement.Unplaced, 0, len(reqs)-from)
	for _, req := range reqs[from:] {
		out = append(out, req.Unplaced(placement.ReasonCancelled))
	}
	return out
}
