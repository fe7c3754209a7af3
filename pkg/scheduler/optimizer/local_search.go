// Package optimizer 提供课表优化算法
package optimizer

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/placement"
)

// OptimizationConfig 局部搜索配置
type OptimizationConfig struct {
	MaxIterations    int           `json:"max_iterations"`    // 最大迭代次数
	MaxTime          time.Duration `json:"max_time"`          // 最大运行时间
	InitialTemp      float64       `json:"initial_temp"`      // 模拟退火初始温度
	CoolingRate      float64       `json:"cooling_rate"`      // 冷却速率
	TabuSize         int           `json:"tabu_size"`         // 禁忌表大小
	NeighborhoodSize int           `json:"neighborhood_size"` // 邻域大小
	StopOnPlateau    bool          `json:"stop_on_plateau"`   // 平台期停止
	PlateauThreshold int           `json:"plateau_threshold"` // 平台期阈值（无改进迭代次数）
}

// DefaultOptConfig 默认优化配置
func DefaultOptConfig() *OptimizationConfig {
	return &OptimizationConfig{
		MaxIterations:    2000,
		MaxTime:          30 * time.Second,
		InitialTemp:      100.0,
		CoolingRate:      0.995,
		TabuSize:         50,
		NeighborhoodSize: 20,
		StopOnPlateau:    true,
		PlateauThreshold: 300,
	}
}

// SearchStats 局部搜索统计
type SearchStats struct {
	Iterations     int  `json:"iterations"`
	InitialFitness int  `json:"initial_fitness"`
	FinalFitness   int  `json:"final_fitness"`
	Cancelled      bool `json:"cancelled"`
	TimedOut       bool `json:"timed_out"` // 达到 MaxTime 提前结束
	ReachedMax     bool `json:"reached_max"`
	Plateau        bool `json:"plateau"`
}

// LocalSearchOptimizer 局部搜索优化器（模拟退火 + 禁忌表）
type LocalSearchOptimizer struct {
	config    *OptimizationConfig
	evaluator ConstraintEvaluator
	neighbors *NeighborhoodGenerator
	tabuList  *TabuList
	rng       *rand.Rand
	logger    *logger.SchedulerLogger
}

// NewLocalSearchOptimizer 创建局部搜索优化器
func NewLocalSearchOptimizer(config *OptimizationConfig, evaluator ConstraintEvaluator, pool *placement.Pool, rng *rand.Rand) (*LocalSearchOptimizer, error) {
	if config == nil {
		config = DefaultOptConfig()
	}
	if rng == nil {
		return nil, fmt.Errorf("随机数生成器未初始化")
	}
	if evaluator == nil || pool == nil {
		return nil, fmt.Errorf("资源池和评估器不能为空")
	}
	return &LocalSearchOptimizer{
		config:    config,
		evaluator: evaluator,
		neighbors: NewNeighborhoodGenerator(pool, rng),
		tabuList:  NewTabuList(config.TabuSize),
		rng:       rng,
		logger:    logger.NewSchedulerLogger().With("constraint"),
	}, nil
}

// Optimize 从初始解出发优化课表，返回搜索过程中的最优解
// 每次迭代开始检查取消信号
func (o *LocalSearchOptimizer) Optimize(ctx context.Context, initial model.Schedule) (*Solution, *SearchStats) {
	start := time.Now()
	maxFitness := o.evaluator.MaxFitness()

	current := &Solution{Schedule: initial.Clone(), Fitness: o.evaluator.Fitness(initial)}
	best := current.Clone()
	stats := &SearchStats{InitialFitness: current.Fitness}

	temperature := o.config.InitialTemp
	noImprovementCount := 0
	o.tabuList.Clear()

	for i := 0; i < o.config.MaxIterations; i++ {
		if best.Fitness >= maxFitness {
			stats.ReachedMax = true
			break
		}

		// 检查超时和取消
		if ctx.Err() != nil {
			stats.Cancelled = true
			break
		}
		if o.config.MaxTime > 0 && time.Since(start) > o.config.MaxTime {
			stats.TimedOut = true
			break
		}
		stats.Iterations = i + 1

		// 评估邻域，取最优邻居
		bestNeighbor := o.bestNeighbor(current)
		if bestNeighbor == nil {
			noImprovementCount++
			if o.plateau(noImprovementCount) {
				stats.Plateau = true
				break
			}
			continue
		}

		// 检查是否在禁忌表中
		moveKey := hashAssignments(bestNeighbor.Schedule)
		inTabu := o.tabuList.Contains(moveKey)

		// 模拟退火接受准则
		accept := false
		if bestNeighbor.Fitness > current.Fitness {
			accept = true
		} else if !inTabu {
			delta := float64(current.Fitness - bestNeighbor.Fitness)
			if o.rng.Float64() < boltzmannProbability(delta, temperature) {
				accept = true
			}
		}

		if accept {
			current = bestNeighbor
			o.tabuList.Add(moveKey)

			// 更新最优解
			if current.Fitness > best.Fitness {
				best = current.Clone()
				noImprovementCount = 0
				o.logger.Improvement(i, best.Fitness)
			} else {
				noImprovementCount++
			}
		} else {
			noImprovementCount++
		}

		if o.plateau(noImprovementCount) {
			stats.Plateau = true
			break
		}

		// 降温
		temperature *= o.config.CoolingRate
	}

	if best.Fitness >= maxFitness {
		stats.ReachedMax = true
	}
	stats.FinalFitness = best.Fitness
	return best, stats
}

func (o *LocalSearchOptimizer) plateau(noImprovement int) bool {
	return o.config.StopOnPlateau && noImprovement >= o.config.PlateauThreshold
}

// bestNeighbor 生成并评估邻域，返回适应度最高的邻居
func (o *LocalSearchOptimizer) bestNeighbor(current *Solution) *Solution {
	var best *Solution
	for i := 0; i < o.config.NeighborhoodSize; i++ {
		neighbor := o.neighbors.GenerateNeighbor(current)
		if neighbor == nil {
			continue
		}
		neighbor.Fitness = o.evaluator.Fitness(neighbor.Schedule)
		if best == nil || neighbor.Fitness > best.Fitness {
			best = neighbor
		}
	}
	return best
}

// hashAssignments 计算课表的哈希 (使用FNV-1a算法)
func hashAssignments(s model.Schedule) uint64 {
	if len(s) == 0 {
		return 0
	}
	h := fnv.New64a()
	for i := range s {
		h.Write([]byte(s[i].SubjectID))
		h.Write([]byte{0})
		h.Write([]byte(s[i].RoomID))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(s[i].Slot.Index)))
		h.Write([]byte{1})
	}
	return h.Sum64()
}

// boltzmannProbability 计算模拟退火的接受概率
// delta: 适应度下降量 (old - new)
// temperature: 当前温度
func boltzmannProbability(delta, temperature float64) float64 {
	if delta <= 0 {
		return 1.0 // 不变差的解总是接受
	}
	if temperature <= 0 {
		return 0.0 // 温度为0时不接受更差的解
	}
	return math.Exp(-delta / temperature)
}

// TabuList 禁忌表（使用uint64哈希作为键提高性能）
type TabuList struct {
	items   map[uint64]struct{}
	order   []uint64
	maxSize int
	mu      sync.RWMutex
}

// NewTabuList 创建禁忌表
func NewTabuList(size int) *TabuList {
	if size <= 0 {
		size = 1
	}
	return &TabuList{
		items:   make(map[uint64]struct{}),
		order:   make([]uint64, 0, size),
		maxSize: size,
	}
}

// Add 添加到禁忌表
func (t *TabuList) Add(key uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.items[key]; exists {
		return
	}

	// 超出容量时移除最旧的
	if len(t.order) >= t.maxSize {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.items, oldest)
	}

	t.items[key] = struct{}{}
	t.order = append(t.order, key)
}

// Contains 检查是否在禁忌表中
func (t *TabuList) Contains(key uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, exists := t.items[key]
	return exists
}

// Len 返回禁忌表长度
func (t *TabuList) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Clear 清空禁忌表
func (t *TabuList) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = make(map[uint64]struct{})
	t.order = t.order[:0]
}
