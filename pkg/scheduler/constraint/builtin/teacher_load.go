package builtin

import (
	"fmt"
	"sort"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// TeacherOverloadConstraint 教师周课时上限约束
// 按超出课时数线性惩罚；未配置上限或不在目录中的教师不检查
type TeacherOverloadConstraint struct {
	*BaseConstraint
}

// NewTeacherOverloadConstraint 创建教师超负荷约束
func NewTeacherOverloadConstraint(weight int) *TeacherOverloadConstraint {
	return &TeacherOverloadConstraint{
		BaseConstraint: NewBaseConstraint(
			"教师课时上限",
			constraint.TypeTeacherOverload,
			constraint.CategorySoft,
			weight,
		),
	}
}

// Penalty 计算惩罚值
func (c *TeacherOverloadConstraint) Penalty(ctx *constraint.Context, s model.Schedule) int {
	excess := 0
	for id, hours := range s.HoursByTeacher() {
		t := ctx.GetTeacher(id)
		if t == nil || !t.HasLimit() {
			continue
		}
		if hours > t.MaxHours {
			excess += hours - t.MaxHours
		}
	}
	return excess * c.Weight()
}

// Evaluate 评估整个课表
func (c *TeacherOverloadConstraint) Evaluate(ctx *constraint.Context, s model.Schedule) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	hoursByTeacher := s.HoursByTeacher()
	ids := make([]string, 0, len(hoursByTeacher))
	for id := range hoursByTeacher {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		t := ctx.GetTeacher(id)
		if t == nil || !t.HasLimit() {
			continue
		}
		hours := hoursByTeacher[id]
		if hours <= t.MaxHours {
			continue
		}
		penalty := (hours - t.MaxHours) * c.Weight()
		totalPenalty += penalty
		violations = append(violations, c.CreateViolation(
			violation{teacherID: id},
			fmt.Sprintf("教师 %s 每周 %d 课时，超过上限 %d 课时", teacherName(t), hours, t.MaxHours),
			penalty,
		))
	}

	return len(violations) == 0, totalPenalty, violations
}

// TeacherAvailabilityConstraint 教师不可用约束
// 每个引用不可用教师的分配计一次惩罚
type TeacherAvailabilityConstraint struct {
	*BaseConstraint
}

// NewTeacherAvailabilityConstraint 创建教师可用性约束
func NewTeacherAvailabilityConstraint(weight int) *TeacherAvailabilityConstraint {
	return &TeacherAvailabilityConstraint{
		BaseConstraint: NewBaseConstraint(
			"教师不可用",
			constraint.TypeTeacherUnavailable,
			constraint.CategoryHard,
			weight,
		),
	}
}

// Penalty 计算惩罚值
func (c *TeacherAvailabilityConstraint) Penalty(ctx *constraint.Context, s model.Schedule) int {
	count := 0
	for i := range s {
		if c.unavailable(ctx, &s[i]) {
			count++
		}
	}
	return count * c.Weight()
}

// Evaluate 评估整个课表
func (c *TeacherAvailabilityConstraint) Evaluate(ctx *constraint.Context, s model.Schedule) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for i := range s {
		a := &s[i]
		if !c.unavailable(ctx, a) {
			continue
		}
		totalPenalty += c.Weight()
		violations = append(violations, c.CreateViolation(
			violation{subjectID: a.SubjectID, teacherID: a.TeacherID, slot: constraint.IntPtr(a.Slot.Index)},
			fmt.Sprintf("教师 %s 不可用，但被安排在 %s 讲授 %s", teacherName(ctx.GetTeacher(a.TeacherID)), a.Slot, a.SubjectID),
			c.Weight(),
		))
	}

	return len(violations) == 0, totalPenalty, violations
}

func (c *TeacherAvailabilityConstraint) unavailable(ctx *constraint.Context, a *model.Assignment) bool {
	if !a.HasTeacher() {
		return false
	}
	t := ctx.GetTeacher(a.TeacherID)
	return t != nil && !t.Available
}

// WorkloadBalanceConstraint 教师课时均衡约束
// 以课时最多与最少教师之差计罚，只统计课程中指定过的教师
type WorkloadBalanceConstraint struct {
	*BaseConstraint
}

// NewWorkloadBalanceConstraint 创建课时均衡约束
func NewWorkloadBalanceConstraint(weight int) *WorkloadBalanceConstraint {
	return &WorkloadBalanceConstraint{
		BaseConstraint: NewBaseConstraint(
			"教师课时均衡",
			constraint.TypeWorkloadBalance,
			constraint.CategorySoft,
			weight,
		),
	}
}

// Penalty 计算惩罚值
func (c *WorkloadBalanceConstraint) Penalty(ctx *constraint.Context, s model.Schedule) int {
	spread, _, _ := c.spread(ctx, s)
	return spread * c.Weight()
}

// Evaluate 评估整个课表
func (c *WorkloadBalanceConstraint) Evaluate(ctx *constraint.Context, s model.Schedule) (bool, int, []constraint.ViolationDetail) {
	spread, maxID, minID := c.spread(ctx, s)
	if spread == 0 || c.Weight() == 0 {
		return true, 0, nil
	}
	penalty := spread * c.Weight()
	return false, penalty, []constraint.ViolationDetail{
		c.CreateViolation(
			violation{teacherID: maxID},
			fmt.Sprintf("教师课时不均衡：%s 比 %s 多 %d 课时", maxID, minID, spread),
			penalty,
		),
	}
}

func (c *WorkloadBalanceConstraint) spread(ctx *constraint.Context, s model.Schedule) (int, string, string) {
	hours := s.HoursByTeacher()

	ids := make([]string, 0)
	seen := make(map[string]bool)
	for i := range ctx.Subjects {
		id := ctx.Subjects[i].TeacherID
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) < 2 {
		return 0, "", ""
	}
	sort.Strings(ids)

	maxID, minID := ids[0], ids[0]
	for _, id := range ids[1:] {
		if hours[id] > hours[maxID] {
			maxID = id
		}
		if hours[id] < hours[minID] {
			minID = id
		}
	}
	return hours[maxID] - hours[minID], maxID, minID
}

func teacherName(t *model.Teacher) string {
	if t == nil {
		return ""
	}
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}
