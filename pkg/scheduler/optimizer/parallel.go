// Package optimizer 提供课表优化算法
package optimizer

import (
	"sync"

	"github.com/kebiao/kebiao/pkg/model"
)

// ParallelEvaluator 并行评估器
// 只读课表、按下标写结果，结果与串行评估一致
type ParallelEvaluator struct {
	workers   int
	evaluator ConstraintEvaluator
}

// NewParallelEvaluator 创建并行评估器
func NewParallelEvaluator(workers int, evaluator ConstraintEvaluator) *ParallelEvaluator {
	if workers <= 0 {
		workers = 4
	}
	return &ParallelEvaluator{
		workers:   workers,
		evaluator: evaluator,
	}
}

// EvaluationResult 评估结果
type EvaluationResult struct {
	Index   int
	Fitness int
}

// EvaluateBatch 并行评估一批课表，返回与输入同序的适应度
// 一批评估总是完整执行，取消只在代边界检查
func (p *ParallelEvaluator) EvaluateBatch(schedules []model.Schedule) []int {
	if len(schedules) == 0 {
		return nil
	}

	scores := make([]int, len(schedules))
	if p.workers == 1 || len(schedules) == 1 {
		for i, s := range schedules {
			scores[i] = p.evaluator.Fitness(s)
		}
		return scores
	}

	resultChan := make(chan EvaluationResult, len(schedules))
	jobChan := make(chan int, len(schedules))

	// 启动工作协程
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				resultChan <- EvaluationResult{
					Index:   idx,
					Fitness: p.evaluator.Fitness(schedules[idx]),
				}
			}
		}()
	}

	// 发送任务
	for i := range schedules {
		jobChan <- i
	}
	close(jobChan)

	// 等待完成
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// 收集结果
	for result := range resultChan {
		scores[result.Index] = result.Fitness
	}

	return scores
}

// FindBest 返回适应度最高的下标，相同时取靠前的
func FindBest(scores []int) int {
	if len(scores) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}
