// Package swap 提供调课建议功能
package swap

import (
	"fmt"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/validator"
)

// 移动类型
const (
	MoveRelocate = "relocate" // 移到新的 (教室, 时段)
	MoveExchange = "exchange" // 与另一课时交换时段
)

// MoveEvaluator 调课评估器
type MoveEvaluator struct {
	constraintManager *constraint.Manager
	conflictDetector  *validator.ConflictDetector
}

// NewMoveEvaluator 创建调课评估器
func NewMoveEvaluator(cm *constraint.Manager) *MoveEvaluator {
	return &MoveEvaluator{
		constraintManager: cm,
		conflictDetector:  validator.NewConflictDetector(nil),
	}
}

// MoveRequest 调课请求
type MoveRequest struct {
	Index    int              `json:"index"`              // 被移动课时在课表中的下标
	Target   model.Assignment `json:"target"`             // relocate 时的新分配
	Exchange *int             `json:"exchange,omitempty"` // exchange 时对方的下标
}

// Type 返回移动类型
func (r *MoveRequest) Type() string {
	if r.Exchange != nil {
		return MoveExchange
	}
	return MoveRelocate
}

// MoveEvaluation 调课评估结果
type MoveEvaluation struct {
	Feasible       bool        `json:"feasible"`
	FitnessBefore  int         `json:"fitness_before"`
	FitnessAfter   int         `json:"fitness_after"`
	FitnessDelta   int         `json:"fitness_delta"`
	Score          float64     `json:"score"`  // 0-100
	Issues         []MoveIssue `json:"issues"` // 问题列表
	Recommendation string      `json:"recommendation"`
}

// MoveIssue 调课问题
type MoveIssue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"` // error/warning/info
	Message  string `json:"message"`
}

// EvaluateMove 评估调课可行性
// 被移动的课时在移动后不能与其他课时重复安排
func (e *MoveEvaluator) EvaluateMove(ctx *constraint.Context, schedule model.Schedule, request *MoveRequest) *MoveEvaluation {
	result := &MoveEvaluation{
		Feasible: true,
		Issues:   make([]MoveIssue, 0),
	}

	// 1. 基础检查
	if request == nil || request.Index < 0 || request.Index >= len(schedule) {
		result.Feasible = false
		result.Issues = append(result.Issues, MoveIssue{
			Type:     "invalid_request",
			Severity: validator.SeverityError,
			Message:  "无效的调课请求",
		})
		return result
	}
	if request.Exchange != nil && (*request.Exchange < 0 || *request.Exchange >= len(schedule) || *request.Exchange == request.Index) {
		result.Feasible = false
		result.Issues = append(result.Issues, MoveIssue{
			Type:     "invalid_request",
			Severity: validator.SeverityError,
			Message:  "无效的交换对象",
		})
		return result
	}

	// 2. 教室类型检查
	if request.Exchange == nil {
		if room := ctx.GetRoom(request.Target.RoomID); room != nil && room.Kind != model.RequiredKind(schedule[request.Index].IsLab) {
			result.Feasible = false
			result.Issues = append(result.Issues, MoveIssue{
				Type:     "room_kind_mismatch",
				Severity: validator.SeverityError,
				Message:  fmt.Sprintf("教室 %s 类型为 %s，不满足课时要求", room.ID, room.Kind),
			})
		}
	}

	// 3. 模拟调课后检测被移动课时的冲突
	simulated := e.simulateMove(schedule, request)
	moved := []int{request.Index}
	if request.Exchange != nil {
		moved = append(moved, *request.Exchange)
	}
	for _, i := range moved {
		for _, conflict := range e.conflictDetector.DetectForAssignment(simulated[i], simulated, i) {
			result.Feasible = false
			result.Issues = append(result.Issues, MoveIssue{
				Type:     string(conflict.Type),
				Severity: conflict.Severity,
				Message:  conflict.Message,
			})
		}
	}

	// 4. 使用约束管理器评估
	if e.constraintManager != nil {
		result.FitnessBefore = e.constraintManager.Fitness(ctx, schedule)
		result.FitnessAfter = e.constraintManager.Fitness(ctx, simulated)
		result.FitnessDelta = result.FitnessAfter - result.FitnessBefore

		maxFitness := e.constraintManager.MaxFitness(ctx)
		if maxFitness > 0 {
			r := &constraint.Result{Fitness: result.FitnessAfter, MaxFitness: maxFitness}
			r.CalculateScore()
			result.Score = r.Score
		}
	}

	// 5. 生成建议
	result.Recommendation = e.generateRecommendation(result)

	return result
}

// simulateMove 模拟调课后的课表，不修改输入
func (e *MoveEvaluator) simulateMove(schedule model.Schedule, request *MoveRequest) model.Schedule {
	simulated := schedule.Clone()
	if request.Exchange != nil {
		j := *request.Exchange
		simulated[request.Index].Slot, simulated[j].Slot = simulated[j].Slot, simulated[request.Index].Slot
		return simulated
	}
	simulated[request.Index] = request.Target
	return simulated
}

// generateRecommendation 生成调课建议
func (e *MoveEvaluator) generateRecommendation(result *MoveEvaluation) string {
	if !result.Feasible {
		return "不建议进行此调课，存在重复安排"
	}

	switch {
	case result.FitnessDelta > 0:
		return "推荐，调课后课表质量提升"
	case result.FitnessDelta == 0:
		return "可以进行，对课表质量无影响"
	default:
		return "谨慎进行，可能降低课表质量"
	}
}

// CanMove 快速检查是否可调课
func (e *MoveEvaluator) CanMove(ctx *constraint.Context, schedule model.Schedule, request *MoveRequest) (bool, string) {
	result := e.EvaluateMove(ctx, schedule, request)
	if !result.Feasible {
		if len(result.Issues) > 0 {
			return false, result.Issues[0].Message
		}
		return false, "无法调课"
	}
	return true, ""
}
