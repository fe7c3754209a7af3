package solver

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/optimizer"
	"github.com/kebiao/kebiao/pkg/scheduler/placement"
)

// ConstraintSolver 约束修复求解器
// 先用 first_fit 贪心生成初始解，再用局部搜索消除冲突
type ConstraintSolver struct {
	constraintManager *constraint.Manager
	config            *optimizer.OptimizationConfig
	rng               *rand.Rand
}

// NewConstraintSolver 创建约束修复求解器
func NewConstraintSolver(cm *constraint.Manager, cfg *optimizer.OptimizationConfig, rng *rand.Rand) (*ConstraintSolver, error) {
	if rng == nil {
		return nil, fmt.Errorf("随机数生成器未初始化")
	}
	if cfg == nil {
		cfg = optimizer.DefaultOptConfig()
	}
	return &ConstraintSolver{constraintManager: cm, config: cfg, rng: rng}, nil
}

// Name 返回求解器名称
func (s *ConstraintSolver) Name() string {
	return "ConstraintSolver"
}

// Solve 构造初始解后局部搜索
func (s *ConstraintSolver) Solve(ctx context.Context, schedCtx *constraint.Context) (*Result, error) {
	start := time.Now()

	greedy, err := NewGreedySolver(s.constraintManager, GreedyFirstFit, nil)
	if err != nil {
		return nil, err
	}
	seed, err := greedy.Solve(ctx, schedCtx)
	if err != nil {
		return nil, err
	}
	if seed.Cancelled || len(seed.Schedule) == 0 {
		seed.Duration = time.Since(start)
		return seed, nil
	}

	pool := placement.NewPool(schedCtx)
	evaluator := optimizer.NewManagerEvaluator(s.constraintManager, schedCtx)
	search, err := optimizer.NewLocalSearchOptimizer(s.config, evaluator, pool, s.rng)
	if err != nil {
		return nil, err
	}

	best, stats := search.Optimize(ctx, seed.Schedule)
	result := &Result{
		Schedule:   best.Schedule,
		Unplaced:   seed.Unplaced,
		Iterations: seed.Iterations + stats.Iterations,
		Cancelled:  stats.Cancelled,
		TimedOut:   stats.TimedOut,
	}
	result.finish(s.constraintManager, schedCtx, start)
	return result, nil
}
