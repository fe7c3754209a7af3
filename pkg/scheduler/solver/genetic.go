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

// GeneticSolver 遗传算法求解器
type GeneticSolver struct {
	constraintManager *constraint.Manager
	config            optimizer.GeneticConfig
	rng               *rand.Rand
}

// NewGeneticSolver 创建遗传算法求解器
func NewGeneticSolver(cm *constraint.Manager, cfg optimizer.GeneticConfig, rng *rand.Rand) (*GeneticSolver, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("随机数生成器未初始化")
	}
	return &GeneticSolver{constraintManager: cm, config: cfg, rng: rng}, nil
}

// Name 返回求解器名称
func (s *GeneticSolver) Name() string {
	return "GeneticSolver"
}

// Solve 进化求解，取消时返回当前最优课表
func (s *GeneticSolver) Solve(ctx context.Context, schedCtx *constraint.Context) (*Result, error) {
	start := time.Now()
	pool := placement.NewPool(schedCtx)
	reqs, unplaced := pool.Placeable(placement.Expand(schedCtx.Subjects))

	evaluator := optimizer.NewManagerEvaluator(s.constraintManager, schedCtx)
	ga, err := optimizer.NewGeneticOptimizer(s.config, pool, evaluator, s.rng)
	if err != nil {
		return nil, err
	}

	out := ga.Optimize(ctx, reqs)
	result := &Result{
		Schedule:   out.Best,
		Unplaced:   unplaced,
		Trace:      out.Trace,
		Iterations: out.Generations,
		Cancelled:  out.Cancelled,
	}
	result.finish(s.constraintManager, schedCtx, start)
	return result, nil
}
