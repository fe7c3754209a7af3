package builtin

import (
	"fmt"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// RoomConflictConstraint 教室同一时段重复占用约束
// 按分配顺序记录每个教室已使用的时段，每次复用计一次惩罚
type RoomConflictConstraint struct {
	*BaseConstraint
}

// NewRoomConflictConstraint 创建教室冲突约束
func NewRoomConflictConstraint(weight int) *RoomConflictConstraint {
	return &RoomConflictConstraint{
		BaseConstraint: NewBaseConstraint(
			"教室时段冲突",
			constraint.TypeRoomConflict,
			constraint.CategoryHard,
			weight,
		),
	}
}

// Penalty 计算惩罚值
func (c *RoomConflictConstraint) Penalty(ctx *constraint.Context, s model.Schedule) int {
	return countReuse(s, roomOf) * c.Weight()
}

// Evaluate 评估整个课表
func (c *RoomConflictConstraint) Evaluate(ctx *constraint.Context, s model.Schedule) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	used := make(map[slotKey]int, len(s))
	for i := range s {
		a := &s[i]
		if a.RoomID == "" {
			continue
		}
		key := slotKey{id: a.RoomID, slot: a.Slot.Index}
		if first, ok := used[key]; ok {
			totalPenalty += c.Weight()
			violations = append(violations, c.CreateViolation(
				violation{subjectID: a.SubjectID, roomID: a.RoomID, slot: constraint.IntPtr(a.Slot.Index)},
				fmt.Sprintf("教室 %s 在 %s 已被课程 %s 占用，课程 %s 重复安排", a.RoomID, a.Slot, s[first].SubjectID, a.SubjectID),
				c.Weight(),
			))
			continue
		}
		used[key] = i
	}

	return len(violations) == 0, totalPenalty, violations
}

// TeacherConflictConstraint 教师同一时段重复授课约束
// 未指定教师的分配不参与检查
type TeacherConflictConstraint struct {
	*BaseConstraint
}

// NewTeacherConflictConstraint 创建教师冲突约束
func NewTeacherConflictConstraint(weight int) *TeacherConflictConstraint {
	return &TeacherConflictConstraint{
		BaseConstraint: NewBaseConstraint(
			"教师时段冲突",
			constraint.TypeTeacherConflict,
			constraint.CategoryHard,
			weight,
		),
	}
}

// Penalty 计算惩罚值
func (c *TeacherConflictConstraint) Penalty(ctx *constraint.Context, s model.Schedule) int {
	return countReuse(s, teacherOf) * c.Weight()
}

// Evaluate 评估整个课表
func (c *TeacherConflictConstraint) Evaluate(ctx *constraint.Context, s model.Schedule) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	used := make(map[slotKey]int, len(s))
	for i := range s {
		a := &s[i]
		if !a.HasTeacher() {
			continue
		}
		key := slotKey{id: a.TeacherID, slot: a.Slot.Index}
		if first, ok := used[key]; ok {
			totalPenalty += c.Weight()
			violations = append(violations, c.CreateViolation(
				violation{subjectID: a.SubjectID, teacherID: a.TeacherID, slot: constraint.IntPtr(a.Slot.Index)},
				fmt.Sprintf("教师 %s 在 %s 同时讲授 %s 和 %s", a.TeacherID, a.Slot, s[first].SubjectID, a.SubjectID),
				c.Weight(),
			))
			continue
		}
		used[key] = i
	}

	return len(violations) == 0, totalPenalty, violations
}

func roomOf(a *model.Assignment) string    { return a.RoomID }
func teacherOf(a *model.Assignment) string { return a.TeacherID }

// countReuse 统计资源时段被重复使用的次数，空资源ID不计
func countReuse(s model.Schedule, resource func(*model.Assignment) string) int {
	used := make(map[slotKey]struct{}, len(s))
	reuse := 0
	for i := range s {
		id := resource(&s[i])
		if id == "" {
			continue
		}
		key := slotKey{id: id, slot: s[i].Slot.Index}
		if _, ok := used[key]; ok {
			reuse++
			continue
		}
		used[key] = struct{}{}
	}
	return reuse
}
