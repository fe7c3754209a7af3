// Package builtin 提供内置约束实现
package builtin

import (
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// BaseConstraint 约束基类
type BaseConstraint struct {
	name     string
	typ      constraint.Type
	category constraint.Category
	weight   int
}

// NewBaseConstraint 创建基础约束
func NewBaseConstraint(name string, typ constraint.Type, cat constraint.Category, weight int) *BaseConstraint {
	return &BaseConstraint{
		name:     name,
		typ:      typ,
		category: cat,
		weight:   weight,
	}
}

// Name 返回约束名称
func (c *BaseConstraint) Name() string { return c.name }

// Type 返回约束类型
func (c *BaseConstraint) Type() constraint.Type { return c.typ }

// Category 返回约束类别
func (c *BaseConstraint) Category() constraint.Category { return c.category }

// Weight 返回约束权重
func (c *BaseConstraint) Weight() int { return c.weight }

// violation 违反详情的定位信息
type violation struct {
	subjectID string
	teacherID string
	roomID    string
	slot      *int
}

// CreateViolation 创建违反详情
func (c *BaseConstraint) CreateViolation(at violation, message string, penalty int) constraint.ViolationDetail {
	severity := "warning"
	if c.category == constraint.CategoryHard {
		severity = "error"
	}

	return constraint.ViolationDetail{
		ConstraintType: c.typ,
		ConstraintName: c.name,
		SubjectID:      at.subjectID,
		TeacherID:      at.teacherID,
		RoomID:         at.roomID,
		SlotIndex:      at.slot,
		Message:        message,
		Severity:       severity,
		Penalty:        penalty,
	}
}

// Evaluate 默认评估实现（子类需覆盖）
func (c *BaseConstraint) Evaluate(ctx *constraint.Context, s model.Schedule) (bool, int, []constraint.ViolationDetail) {
	return true, 0, nil
}

// Penalty 默认惩罚实现（子类需覆盖）
func (c *BaseConstraint) Penalty(ctx *constraint.Context, s model.Schedule) int {
	return 0
}

// slotKey 资源与时段的组合键
type slotKey struct {
	id   string
	slot int
}
