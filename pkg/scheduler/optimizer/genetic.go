// Package optimizer 提供课表优化算法
package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"

	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/placement"
)

// GeneticConfig 遗传算法配置
type GeneticConfig struct {
	PopulationSize int     `json:"population_size"` // 种群大小
	Generations    int     `json:"generations"`     // 进化代数
	MutationRate   float64 `json:"mutation_rate"`   // 单个分配的变异概率
	CrossoverRate  float64 `json:"crossover_rate"`  // 交叉概率
	ElitismRate    float64 `json:"elitism_rate"`    // 精英保留比例
	TournamentSize int     `json:"tournament_size"` // 锦标赛规模
	Workers        int     `json:"workers"`         // 并行评估协程数
}

// DefaultGeneticConfig 默认遗传算法配置
func DefaultGeneticConfig() GeneticConfig {
	return GeneticConfig{
		PopulationSize: 50,
		Generations:    100,
		MutationRate:   0.1,
		CrossoverRate:  0.8,
		ElitismRate:    0.1,
		TournamentSize: 3,
		Workers:        runtime.NumCPU(),
	}
}

// WithDefaults 用默认值补齐未设置的字段
func (c GeneticConfig) WithDefaults() GeneticConfig {
	def := DefaultGeneticConfig()
	if c.PopulationSize == 0 {
		c.PopulationSize = def.PopulationSize
	}
	if c.Generations == 0 {
		c.Generations = def.Generations
	}
	if c.TournamentSize == 0 {
		c.TournamentSize = def.TournamentSize
	}
	if c.Workers == 0 {
		c.Workers = def.Workers
	}
	return c
}

// Validate 校验配置
func (c GeneticConfig) Validate() error {
	if c.PopulationSize < 1 {
		return fmt.Errorf("种群大小必须大于0: %d", c.PopulationSize)
	}
	if c.Generations < 1 {
		return fmt.Errorf("进化代数必须大于0: %d", c.Generations)
	}
	if c.TournamentSize < 1 {
		return fmt.Errorf("锦标赛规模必须大于0: %d", c.TournamentSize)
	}
	rates := []struct {
		name  string
		value float64
	}{
		{"mutation_rate", c.MutationRate},
		{"crossover_rate", c.CrossoverRate},
		{"elitism_rate", c.ElitismRate},
	}
	for _, r := range rates {
		if r.value < 0 || r.value > 1 {
			return fmt.Errorf("%s 必须在 [0,1] 区间: %v", r.name, r.value)
		}
	}
	return nil
}

// eliteCount 精英数量，比例大于0时至少保留1个
func (c GeneticConfig) eliteCount() int {
	n := int(float64(c.PopulationSize) * c.ElitismRate)
	if n == 0 && c.ElitismRate > 0 {
		n = 1
	}
	if n > c.PopulationSize {
		n = c.PopulationSize
	}
	return n
}

// GenerationStat 单代统计
type GenerationStat struct {
	Generation int     `json:"generation"`
	Best       int     `json:"best"`
	BestSoFar  int     `json:"best_so_far"`
	Mean       float64 `json:"mean"`
	Worst      int     `json:"worst"`
}

// GeneticResult 遗传算法结果
type GeneticResult struct {
	Best        model.Schedule   `json:"-"`
	Fitness     int              `json:"fitness"`
	MaxFitness  int              `json:"max_fitness"`
	Trace       []GenerationStat `json:"trace"`
	Generations int              `json:"generations"`
	Evaluations int              `json:"evaluations"`
	Cancelled   bool             `json:"cancelled"`
	ReachedMax  bool             `json:"reached_max"`
}

// GeneticOptimizer 遗传算法优化器
type GeneticOptimizer struct {
	cfg       GeneticConfig
	pool      *placement.Pool
	evaluator ConstraintEvaluator
	parallel  *ParallelEvaluator
	rng       *rand.Rand
	logger    *logger.SchedulerLogger
}

// NewGeneticOptimizer 创建遗传算法优化器，随机源由调用方注入
func NewGeneticOptimizer(cfg GeneticConfig, pool *placement.Pool, evaluator ConstraintEvaluator, rng *rand.Rand) (*GeneticOptimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("随机数生成器未初始化")
	}
	if pool == nil || evaluator == nil {
		return nil, fmt.Errorf("资源池和评估器不能为空")
	}
	return &GeneticOptimizer{
		cfg:       cfg,
		pool:      pool,
		evaluator: evaluator,
		parallel:  NewParallelEvaluator(cfg.Workers, evaluator),
		rng:       rng,
		logger:    logger.NewSchedulerLogger().With("genetic"),
	}, nil
}

// Optimize 执行进化，返回所有代中见过的最优课表
// 每代开始时检查取消信号，取消时返回当前最优解
func (g *GeneticOptimizer) Optimize(ctx context.Context, reqs []placement.Requirement) *GeneticResult {
	popSize := g.cfg.PopulationSize
	maxFitness := g.evaluator.MaxFitness()

	// 初始化种群
	population := make([]model.Schedule, popSize)
	for i := range population {
		population[i] = g.pool.RandomSchedule(g.rng, reqs)
	}
	scores := g.parallel.EvaluateBatch(population)

	result := &GeneticResult{
		MaxFitness:  maxFitness,
		Trace:       make([]GenerationStat, 0, g.cfg.Generations),
		Evaluations: popSize,
	}

	bestIdx := FindBest(scores)
	best := population[bestIdx]
	bestFitness := scores[bestIdx]

	idxs := make([]int, popSize)
	elites := g.cfg.eliteCount()

	for gen := 0; gen < g.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			result.Cancelled = true
			break
		}

		// 按适应度降序排序
		for i := range idxs {
			idxs[i] = i
		}
		sort.SliceStable(idxs, func(i, j int) bool {
			return scores[idxs[i]] > scores[idxs[j]]
		})

		stat := g.stat(gen, scores, idxs, bestFitness)
		result.Trace = append(result.Trace, stat)
		result.Generations = gen + 1
		g.logger.Generation(stat.Generation, stat.Best, stat.BestSoFar, stat.Mean, stat.Worst)

		if bestFitness >= maxFitness {
			result.ReachedMax = true
			break
		}

		// 精英保留
		next := make([]model.Schedule, 0, popSize)
		nextScores := make([]int, 0, popSize)
		for e := 0; e < elites; e++ {
			next = append(next, population[idxs[e]])
			nextScores = append(nextScores, scores[idxs[e]])
		}

		// 生成子代
		children := make([]model.Schedule, 0, popSize-elites)
		for len(next)+len(children) < popSize {
			p1 := g.tournament(scores)
			p2 := g.tournament(scores)

			c1, c2 := g.crossover(population[p1], population[p2])
			g.mutate(c1)
			g.mutate(c2)

			children = append(children, c1)
			if len(next)+len(children) < popSize {
				children = append(children, c2)
			}
		}

		childScores := g.parallel.EvaluateBatch(children)
		result.Evaluations += len(children)
		for i, score := range childScores {
			if score > bestFitness {
				bestFitness = score
				best = children[i]
			}
		}

		population = append(next, children...)
		scores = append(nextScores, childScores...)
	}

	result.Best = best.Clone()
	result.Fitness = bestFitness
	if !result.ReachedMax && bestFitness >= maxFitness {
		result.ReachedMax = true
	}
	return result
}

// stat 统计当前代
func (g *GeneticOptimizer) stat(gen int, scores []int, sorted []int, bestSoFar int) GenerationStat {
	sum := 0
	for _, s := range scores {
		sum += s
	}
	genBest := scores[sorted[0]]
	if genBest > bestSoFar {
		bestSoFar = genBest
	}
	return GenerationStat{
		Generation: gen,
		Best:       genBest,
		BestSoFar:  bestSoFar,
		Mean:       float64(sum) / float64(len(scores)),
		Worst:      scores[sorted[len(sorted)-1]],
	}
}

// tournament 锦标赛选择：有放回地抽取若干个体，取最优者
func (g *GeneticOptimizer) tournament(scores []int) int {
	best := g.rng.Intn(len(scores))
	for i := 1; i < g.cfg.TournamentSize; i++ {
		c := g.rng.Intn(len(scores))
		if scores[c] > scores[best] {
			best = c
		}
	}
	return best
}

// crossover 单点交叉，切点取在较短父代的长度范围内
// 未发生交叉时子代为父代的拷贝
func (g *GeneticOptimizer) crossover(a, b model.Schedule) (model.Schedule, model.Schedule) {
	c1, c2 := a.Clone(), b.Clone()
	if g.rng.Float64() >= g.cfg.CrossoverRate {
		return c1, c2
	}

	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return c1, c2
	}

	cut := 1 + g.rng.Intn(n-1)
	c1 = append(append(model.Schedule{}, a[:cut]...), b[cut:]...)
	c2 = append(append(model.Schedule{}, b[:cut]...), a[cut:]...)
	return c1, c2
}

// mutate 逐个分配以变异概率重选教室或时段（各半概率）
func (g *GeneticOptimizer) mutate(s model.Schedule) {
	for i := range s {
		if g.rng.Float64() >= g.cfg.MutationRate {
			continue
		}
		if g.rng.Intn(2) == 0 {
			s[i].RoomID = g.pool.RandomRoom(g.rng, s[i])
		} else {
			s[i].Slot = g.pool.RandomSlot(g.rng, s[i])
		}
	}
}
