package solver

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/placement"
)

// GreedyMode 贪心放置方式
type GreedyMode string

const (
	// GreedyFirstFit 按时段、教室顺序选第一个空闲组合
	GreedyFirstFit GreedyMode = "first_fit"
	// GreedyRandom 随机选择教室和时段，不避免冲突
	GreedyRandom GreedyMode = "random"
)

// ParseGreedyMode 解析贪心模式，空字符串为 first_fit
func ParseGreedyMode(s string) (GreedyMode, error) {
	switch GreedyMode(s) {
	case "", GreedyFirstFit:
		return GreedyFirstFit, nil
	case GreedyRandom:
		return GreedyRandom, nil
	}
	return "", fmt.Errorf("未知的贪心模式: %s", s)
}

// GreedySolver 贪心求解器
type GreedySolver struct {
	constraintManager *constraint.Manager
	mode              GreedyMode
	rng               *rand.Rand
	logger            *logger.SchedulerLogger
}

// NewGreedySolver 创建贪心求解器
// random 模式需要 rng；first_fit 模式不使用随机数
func NewGreedySolver(cm *constraint.Manager, mode GreedyMode, rng *rand.Rand) (*GreedySolver, error) {
	if mode == "" {
		mode = GreedyFirstFit
	}
	if mode == GreedyRandom && rng == nil {
		return nil, fmt.Errorf("随机模式需要随机数生成器")
	}
	return &GreedySolver{
		constraintManager: cm,
		mode:              mode,
		rng:               rng,
		logger:            logger.NewSchedulerLogger().With("greedy"),
	}, nil
}

// Name 返回求解器名称
func (s *GreedySolver) Name() string {
	return "GreedySolver"
}

// Mode 返回放置方式
func (s *GreedySolver) Mode() GreedyMode {
	return s.mode
}

// Solve 单遍构造课表
// 没有兼容教室或时段的课时记入 Unplaced，不返回错误；课程之间检查取消信号
func (s *GreedySolver) Solve(ctx context.Context, schedCtx *constraint.Context) (*Result, error) {
	start := time.Now()
	pool := placement.NewPool(schedCtx)
	reqs := placement.Expand(schedCtx.Subjects)

	result := &Result{
		Schedule: make(model.Schedule, 0, len(reqs)),
	}
	occupancy := placement.NewOccupancy()

	for i, req := range reqs {
		if i == 0 || req.SubjectID != reqs[i-1].SubjectID {
			if ctx.Err() != nil {
				result.Unplaced = append(result.Unplaced, cancelledFrom(reqs, i)...)
				result.Cancelled = true
				break
			}
		}
		result.Iterations++

		a, ok := s.place(pool, occupancy, req)
		if !ok {
			reason, _ := pool.Check(req)
			result.Unplaced = append(result.Unplaced, req.Unplaced(reason))
			s.logger.Unplaced(req.SubjectID, req.Hour, reason)
			continue
		}
		occupancy.Mark(a)
		result.Schedule = append(result.Schedule, a)
	}

	result.finish(s.constraintManager, schedCtx, start)
	return result, nil
}

func (s *GreedySolver) place(pool *placement.Pool, o *placement.Occupancy, req placement.Requirement) (model.Assignment, bool) {
	if s.mode == GreedyRandom {
		return pool.Random(s.rng, req)
	}
	return pool.FirstFit(o, req)
}
