package swap

import (
	"fmt"
	"sort"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/validator"
)

// Recommender 调课推荐器
type Recommender struct {
	evaluator *MoveEvaluator
}

// NewRecommender 创建调课推荐器
func NewRecommender(cm *constraint.Manager) *Recommender {
	return &Recommender{
		evaluator: NewMoveEvaluator(cm),
	}
}

// Recommendation 调课推荐
type Recommendation struct {
	Index        int              `json:"index"`
	SubjectID    string           `json:"subject_id"`
	MoveType     string           `json:"move_type"` // relocate/exchange
	Target       model.Assignment `json:"target"`
	ExchangeWith *int             `json:"exchange_with,omitempty"`
	FitnessDelta int              `json:"fitness_delta"`
	Score        float64          `json:"score"`
	Reason       string           `json:"reason"`
	Rank         int              `json:"rank"`
}

// RecommendOptions 推荐选项
type RecommendOptions struct {
	MaxRecommendations int  // 每个课时的最大推荐数量
	AllowExchange      bool // 是否允许交换时段
	MinDelta           int  // 最低适应度变化
}

// DefaultRecommendOptions 返回默认选项
func DefaultRecommendOptions() *RecommendOptions {
	return &RecommendOptions{
		MaxRecommendations: 3,
		AllowExchange:      true,
		MinDelta:           0,
	}
}

// Recommend 为指定课时推荐调课方案，按适应度提升降序
func (r *Recommender) Recommend(ctx *constraint.Context, schedule model.Schedule, index int, options *RecommendOptions) []Recommendation {
	if options == nil {
		options = DefaultRecommendOptions()
	}
	if index < 0 || index >= len(schedule) {
		return nil
	}
	source := schedule[index]

	var candidates []Recommendation

	// 遍历全部兼容 (教室, 时段)
	for _, slot := range ctx.Slots {
		for _, room := range ctx.RoomsOfKind(model.RequiredKind(source.IsLab)) {
			if slot.Index == source.Slot.Index && room.ID == source.RoomID {
				continue
			}
			target := source
			target.RoomID = room.ID
			target.Slot = slot

			evaluation := r.evaluator.EvaluateMove(ctx, schedule, &MoveRequest{Index: index, Target: target})
			if !evaluation.Feasible || evaluation.FitnessDelta < options.MinDelta {
				continue
			}
			candidates = append(candidates, Recommendation{
				Index:        index,
				SubjectID:    source.SubjectID,
				MoveType:     MoveRelocate,
				Target:       target,
				FitnessDelta: evaluation.FitnessDelta,
				Score:        evaluation.Score,
				Reason:       evaluation.Recommendation,
			})
		}
	}

	// 与其他课时交换时段
	if options.AllowExchange {
		candidates = append(candidates, r.findExchangeCandidates(ctx, schedule, index, options)...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := &candidates[i], &candidates[j]
		if a.FitnessDelta != b.FitnessDelta {
			return a.FitnessDelta > b.FitnessDelta
		}
		if a.Target.Slot.Index != b.Target.Slot.Index {
			return a.Target.Slot.Index < b.Target.Slot.Index
		}
		return a.Target.RoomID < b.Target.RoomID
	})

	if options.MaxRecommendations > 0 && len(candidates) > options.MaxRecommendations {
		candidates = candidates[:options.MaxRecommendations]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return candidates
}

// findExchangeCandidates 查找交换候选
func (r *Recommender) findExchangeCandidates(ctx *constraint.Context, schedule model.Schedule, index int, options *RecommendOptions) []Recommendation {
	var candidates []Recommendation
	source := schedule[index]

	for j := range schedule {
		// 同一时段交换没有意义
		if j == index || schedule[j].Slot.Index == source.Slot.Index {
			continue
		}
		other := j
		evaluation := r.evaluator.EvaluateMove(ctx, schedule, &MoveRequest{Index: index, Exchange: &other})
		if !evaluation.Feasible || evaluation.FitnessDelta < options.MinDelta {
			continue
		}

		target := source
		target.Slot = schedule[j].Slot
		candidates = append(candidates, Recommendation{
			Index:        index,
			SubjectID:    source.SubjectID,
			MoveType:     MoveExchange,
			Target:       target,
			ExchangeWith: &other,
			FitnessDelta: evaluation.FitnessDelta,
			Score:        evaluation.Score,
			Reason:       fmt.Sprintf("与 %s 交换时段", schedule[j].SubjectID),
		})
	}
	return candidates
}

// Suggestion 某个冲突课时的调课建议
type Suggestion struct {
	Conflict        validator.ConflictType `json:"conflict"`
	Index           int                    `json:"index"`
	SubjectID       string                 `json:"subject_id"`
	Recommendations []Recommendation       `json:"recommendations"`
}

// RecommendForConflicts 为重复安排冲突推荐调课
// 每个冲突保留第一个课时，为其余课时给出建议
func (r *Recommender) RecommendForConflicts(ctx *constraint.Context, schedule model.Schedule, conflicts []validator.Conflict, options *RecommendOptions) []Suggestion {
	var suggestions []Suggestion
	seen := make(map[int]bool)

	for _, c := range conflicts {
		if c.Type != validator.ConflictRoomDoubleBooked && c.Type != validator.ConflictTeacherDoubleBooked {
			continue
		}
		for _, idx := range c.Assignments[1:] {
			if seen[idx] || idx < 0 || idx >= len(schedule) {
				continue
			}
			seen[idx] = true
			suggestions = append(suggestions, Suggestion{
				Conflict:        c.Type,
				Index:           idx,
				SubjectID:       schedule[idx].SubjectID,
				Recommendations: r.Recommend(ctx, schedule, idx, options),
			})
		}
	}
	return suggestions
}
