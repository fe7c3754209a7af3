package builtin

import (
	"sort"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// ConsecutiveLabConstraint 实验课连排奖励
// 同一课程同一天相邻时段的两个实验课时计一次奖励，按天和时段排序后统计
type ConsecutiveLabConstraint struct {
	*BaseConstraint
}

// NewConsecutiveLabConstraint 创建实验课连排约束
func NewConsecutiveLabConstraint(weight int) *ConsecutiveLabConstraint {
	return &ConsecutiveLabConstraint{
		BaseConstraint: NewBaseConstraint(
			"实验课连排",
			constraint.TypeConsecutiveLab,
			constraint.CategorySoft,
			weight,
		),
	}
}

// Reward 计算奖励分
func (c *ConsecutiveLabConstraint) Reward(ctx *constraint.Context, s model.Schedule) int {
	return c.Pairs(s) * c.Weight()
}

// Pairs 统计相邻实验课时对数
func (c *ConsecutiveLabConstraint) Pairs(s model.Schedule) int {
	bySubject := make(map[string][]model.TimeSlot)
	for i := range s {
		if s[i].IsLab {
			bySubject[s[i].SubjectID] = append(bySubject[s[i].SubjectID], s[i].Slot)
		}
	}

	pairs := 0
	for _, slots := range bySubject {
		if len(slots) < 2 {
			continue
		}
		sort.Slice(slots, func(i, j int) bool {
			if slots[i].DayIndex != slots[j].DayIndex {
				return slots[i].DayIndex < slots[j].DayIndex
			}
			return slots[i].Index < slots[j].Index
		})
		for i := 1; i < len(slots); i++ {
			if slots[i].AdjacentTo(slots[i-1]) {
				pairs++
			}
		}
	}
	return pairs
}

// MaxReward 理论最大奖励：每门课的实验课时尽量连排，每天最多排满一天的时段
func (c *ConsecutiveLabConstraint) MaxReward(ctx *constraint.Context) int {
	perDay := ctx.BlocksPerDay()
	if perDay == 0 {
		return 0
	}

	pairs := 0
	for i := range ctx.Subjects {
		sub := &ctx.Subjects[i]
		labs := 0
		for h := 0; h < sub.TotalHours(); h++ {
			if sub.IsLabHour(h) {
				labs++
			}
		}
		if labs < 2 {
			continue
		}
		runs := (labs + perDay - 1) / perDay
		pairs += labs - runs
	}
	return pairs * c.Weight()
}

// Evaluate 奖励型约束不产生违反
func (c *ConsecutiveLabConstraint) Evaluate(ctx *constraint.Context, s model.Schedule) (bool, int, []constraint.ViolationDetail) {
	return true, 0, nil
}
