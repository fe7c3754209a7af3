// Package constraints 约束库：向客户端描述可配置的适应度约束
package constraints

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint/builtin"
)

// ConstraintParam 约束参数定义，Name 即请求 constraints 字段中的配置键
type ConstraintParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
}

// ConstraintDefinition 约束定义
type ConstraintDefinition struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Type        string            `json:"type"`     // hard 硬约束, soft 软约束
	Category    string            `json:"category"` // 分类
	Effect      string            `json:"effect"`   // penalty 扣分, reward 加分
	Description string            `json:"description"`
	Params      []ConstraintParam `json:"params"`
}

// LibraryResponse 约束库响应
type LibraryResponse struct {
	Baseline int                    `json:"baseline"`
	Active   constraint.Summary     `json:"active"` // 默认参数下注册的约束
	Library  []ConstraintDefinition `json:"library"`
}

func intParam(name, desc string, def, lo, hi int) ConstraintParam {
	return ConstraintParam{
		Name:        name,
		Type:        "int",
		Description: desc,
		Default:     strconv.Itoa(def),
		Min:         strconv.Itoa(lo),
		Max:         strconv.Itoa(hi),
	}
}

// GetLibrary 获取完整的约束库
func GetLibrary() []ConstraintDefinition {
	return []ConstraintDefinition{
		{
			Name:        string(constraint.TypeRoomConflict),
			DisplayName: "教室重复安排",
			Type:        string(constraint.CategoryHard),
			Category:    "资源冲突",
			Effect:      "penalty",
			Description: "同一时段同一教室被安排多于一节课。每个额外课时扣分一次。",
			Params: []ConstraintParam{
				intParam("room_conflict_penalty", "每次重复扣分", builtin.DefaultRoomConflictPenalty, 0, 1000),
			},
		},
		{
			Name:        string(constraint.TypeTeacherConflict),
			DisplayName: "教师重复安排",
			Type:        string(constraint.CategoryHard),
			Category:    "资源冲突",
			Effect:      "penalty",
			Description: "同一时段同一教师被安排多于一节课。未指定教师的课时不参与检查。",
			Params: []ConstraintParam{
				intParam("teacher_conflict_penalty", "每次重复扣分", builtin.DefaultTeacherConflictPenalty, 0, 1000),
			},
		},
		{
			Name:        string(constraint.TypeTeacherUnavailable),
			DisplayName: "教师不可用",
			Type:        string(constraint.CategoryHard),
			Category:    "教师可用性",
			Effect:      "penalty",
			Description: "课时被安排给标记为不可用的教师。",
			Params: []ConstraintParam{
				intParam("teacher_unavailable_penalty", "每个课时扣分", builtin.DefaultTeacherUnavailablePenalty, 0, 1000),
			},
		},
		{
			Name:        string(constraint.TypeTeacherOverload),
			DisplayName: "教师超课时",
			Type:        string(constraint.CategorySoft),
			Category:    "教师负荷",
			Effect:      "penalty",
			Description: "教师周课时超过其上限，按超出的课时数扣分。上限为0表示不限。",
			Params: []ConstraintParam{
				intParam("teacher_overload_penalty", "每超出一课时扣分", builtin.DefaultTeacherOverloadPenalty, 0, 1000),
			},
		},
		{
			Name:        string(constraint.TypeConsecutiveLab),
			DisplayName: "实验课连排",
			Type:        string(constraint.CategorySoft),
			Category:    "课程编排",
			Effect:      "reward",
			Description: "同一课程的实验课在同一天相邻课时块、同一实验室连续安排时加分。",
			Params: []ConstraintParam{
				intParam("consecutive_lab_bonus", "每对相邻实验课加分", builtin.DefaultConsecutiveLabBonus, 0, 1000),
			},
		},
		{
			Name:        string(constraint.TypeWorkloadBalance),
			DisplayName: "教师负荷均衡",
			Type:        string(constraint.CategorySoft),
			Category:    "教师负荷",
			Effect:      "penalty",
			Description: "按教师课时的最大差值扣分，默认关闭（权重为0）。",
			Params: []ConstraintParam{
				intParam("workload_balance_weight", "每课时差值扣分", 0, 0, 100),
			},
		},
	}
}

// baselineParam 适应度基准分
var baselineParam = intParam("baseline", "适应度基准分", constraint.DefaultBaseline, 0, 100000)

// GetResponse 返回约束库响应
func GetResponse() LibraryResponse {
	return LibraryResponse{
		Baseline: constraint.DefaultBaseline,
		Active:   builtin.NewDefaultManager(nil).Summary(),
		Library:  GetLibrary(),
	}
}

// params 返回全部可配置参数，按配置键索引
func params() map[string]ConstraintParam {
	out := map[string]ConstraintParam{baselineParam.Name: baselineParam}
	for _, def := range GetLibrary() {
		for _, p := range def.Params {
			out[p.Name] = p
		}
	}
	return out
}

// Defaults 返回全部参数的默认值
func Defaults() map[string]int {
	out := make(map[string]int)
	for name, p := range params() {
		v, _ := strconv.Atoi(p.Default)
		out[name] = v
	}
	return out
}

// ValidateConfig 校验约束配置：键必须已知，值必须为范围内的整数
// 返回按键排序的错误列表
func ValidateConfig(config map[string]interface{}) []error {
	known := params()
	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		p, ok := known[k]
		if !ok {
			errs = append(errs, fmt.Errorf("未知的约束参数 %q", k))
			continue
		}
		v, ok := toInt(config[k])
		if !ok {
			errs = append(errs, fmt.Errorf("约束参数 %q 必须为整数", k))
			continue
		}
		lo, _ := strconv.Atoi(p.Min)
		hi, _ := strconv.Atoi(p.Max)
		if v < lo || v > hi {
			errs = append(errs, fmt.Errorf("约束参数 %q 超出范围 [%d,%d]: %d", k, lo, hi, v))
		}
	}
	return errs
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
