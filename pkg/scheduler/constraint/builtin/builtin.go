// Package builtin 提供内置约束实现
package builtin

import (
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// 默认分值
const (
	DefaultRoomConflictPenalty       = 50
	DefaultTeacherConflictPenalty    = 40
	DefaultTeacherUnavailablePenalty = 30
	DefaultTeacherOverloadPenalty    = 10
	DefaultConsecutiveLabBonus       = 20
)

// RegisterDefaultConstraints 注册默认约束到管理器
func RegisterDefaultConstraints(manager *constraint.Manager, config map[string]interface{}) {
	// 从配置中获取参数，使用默认值
	baseline := getConfigInt(config, "baseline", constraint.DefaultBaseline)
	roomPenalty := getConfigInt(config, "room_conflict_penalty", DefaultRoomConflictPenalty)
	teacherPenalty := getConfigInt(config, "teacher_conflict_penalty", DefaultTeacherConflictPenalty)
	unavailablePenalty := getConfigInt(config, "teacher_unavailable_penalty", DefaultTeacherUnavailablePenalty)
	overloadPenalty := getConfigInt(config, "teacher_overload_penalty", DefaultTeacherOverloadPenalty)
	labBonus := getConfigInt(config, "consecutive_lab_bonus", DefaultConsecutiveLabBonus)
	balanceWeight := getConfigInt(config, "workload_balance_weight", 0)

	manager.SetBaseline(baseline)

	// 注册硬约束
	manager.Register(NewRoomConflictConstraint(roomPenalty))
	manager.Register(NewTeacherConflictConstraint(teacherPenalty))
	manager.Register(NewTeacherAvailabilityConstraint(unavailablePenalty))

	// 注册软约束
	manager.Register(NewTeacherOverloadConstraint(overloadPenalty))
	manager.Register(NewConsecutiveLabConstraint(labBonus))
	if balanceWeight > 0 {
		manager.Register(NewWorkloadBalanceConstraint(balanceWeight))
	}
}

// NewDefaultManager 创建已注册默认约束的管理器
func NewDefaultManager(config map[string]interface{}) *constraint.Manager {
	m := constraint.NewManager()
	RegisterDefaultConstraints(m, config)
	return m
}

// getConfigInt 从配置中获取整数
func getConfigInt(config map[string]interface{}, key string, defaultVal int) int {
	if config == nil {
		return defaultVal
	}
	if val, ok := config[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case float64:
			return int(v)
		case int64:
			return int(v)
		}
	}
	return defaultVal
}
