// Package constraint 定义约束接口和管理器
package constraint

import (
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/grid"
)

// Type 约束类型标识
type Type string

const (
	// 硬约束类型
	TypeRoomConflict       Type = "room_conflict"
	TypeTeacherConflict    Type = "teacher_conflict"
	TypeTeacherUnavailable Type = "teacher_unavailable"

	// 软约束类型
	TypeTeacherOverload Type = "teacher_overload"
	TypeConsecutiveLab  Type = "consecutive_lab"
	TypeWorkloadBalance Type = "workload_balance"
)

// Category 约束类别
type Category string

const (
	CategoryHard Category = "hard" // 硬约束（必须满足）
	CategorySoft Category = "soft" // 软约束（尽量满足）
)

// Constraint 约束接口
type Constraint interface {
	// Name 返回约束名称
	Name() string

	// Type 返回约束类型
	Type() Type

	// Category 返回约束类别
	Category() Category

	// Weight 返回每次违反（或奖励）的分值
	Weight() int

	// Evaluate 评估整个课表
	// 返回：是否满足、惩罚值、违反详情
	Evaluate(ctx *Context, schedule model.Schedule) (valid bool, penalty int, details []ViolationDetail)

	// Penalty 只计算惩罚值，供适应度热路径使用
	Penalty(ctx *Context, schedule model.Schedule) int
}

// Rewarder 带奖励分的约束
type Rewarder interface {
	// Reward 返回课表获得的奖励分
	Reward(ctx *Context, schedule model.Schedule) int

	// MaxReward 返回理论最大奖励分
	MaxReward(ctx *Context) int
}

// ViolationDetail 约束违反详情
type ViolationDetail struct {
	ConstraintType Type   `json:"constraint_type"`
	ConstraintName string `json:"constraint_name"`
	SubjectID      string `json:"subject_id,omitempty"`
	TeacherID      string `json:"teacher_id,omitempty"`
	RoomID         string `json:"room_id,omitempty"`
	SlotIndex      *int   `json:"slot_index,omitempty"`
	Message        string `json:"message"`
	Severity       string `json:"severity"` // error/warning
	Penalty        int    `json:"penalty"`
}

// Context 排课上下文（单次运行内只读）
type Context struct {
	Subjects []model.Subject  `json:"subjects"`
	Teachers []model.Teacher  `json:"teachers"`
	Rooms    []model.Room     `json:"rooms"`
	Slots    []model.TimeSlot `json:"slots"`

	// 索引缓存
	subjectMap   map[string]*model.Subject
	teacherMap   map[string]*model.Teacher
	roomMap      map[string]*model.Room
	roomsByKind  map[model.RoomKind][]*model.Room
	blocksPerDay int

	// 额外配置
	Config map[string]interface{} `json:"config,omitempty"`
}

// NewContext 创建排课上下文
func NewContext(subjects []model.Subject, teachers []model.Teacher, rooms []model.Room, slots []model.TimeSlot) *Context {
	c := &Context{
		Subjects:    subjects,
		Teachers:    teachers,
		Rooms:       rooms,
		Slots:       slots,
		subjectMap:  make(map[string]*model.Subject, len(subjects)),
		teacherMap:  make(map[string]*model.Teacher, len(teachers)),
		roomMap:     make(map[string]*model.Room, len(rooms)),
		roomsByKind: make(map[model.RoomKind][]*model.Room),
		Config:      make(map[string]interface{}),
	}
	for i := range subjects {
		c.subjectMap[subjects[i].ID] = &subjects[i]
	}
	for i := range teachers {
		c.teacherMap[teachers[i].ID] = &teachers[i]
	}
	for i := range rooms {
		r := &rooms[i]
		c.roomMap[r.ID] = r
		c.roomsByKind[r.Kind] = append(c.roomsByKind[r.Kind], r)
	}
	c.blocksPerDay = grid.BlocksPerDay(slots)
	return c
}

// GetSubject 获取课程
func (c *Context) GetSubject(id string) *model.Subject {
	return c.subjectMap[id]
}

// GetTeacher 获取教师
func (c *Context) GetTeacher(id string) *model.Teacher {
	return c.teacherMap[id]
}

// GetRoom 获取教室
func (c *Context) GetRoom(id string) *model.Room {
	return c.roomMap[id]
}

// RoomsOfKind 获取指定类型的教室
func (c *Context) RoomsOfKind(kind model.RoomKind) []*model.Room {
	return c.roomsByKind[kind]
}

// BlocksPerDay 单日最多时段数
func (c *Context) BlocksPerDay() int {
	return c.blocksPerDay
}

// RequiredHours 总课时需求
func (c *Context) RequiredHours() int {
	return model.TotalRequiredHours(c.Subjects)
}

// Result 约束评估结果
type Result struct {
	IsValid        bool              `json:"is_valid"`
	TotalPenalty   int               `json:"total_penalty"`
	TotalReward    int               `json:"total_reward"`
	Fitness        int               `json:"fitness"`
	MaxFitness     int               `json:"max_fitness"`
	HardViolations []ViolationDetail `json:"hard_violations"`
	SoftViolations []ViolationDetail `json:"soft_violations"`
	Score          float64           `json:"score"` // 0-100
}

// CalculateScore 计算适应度占理论最大值的百分比
func (r *Result) CalculateScore() {
	if r.MaxFitness <= 0 {
		r.Score = 0
		return
	}
	r.Score = 100.0 * float64(r.Fitness) / float64(r.MaxFitness)
	if r.Score < 0 {
		r.Score = 0
	}
	if r.Score > 100 {
		r.Score = 100
	}
}

// IntPtr 返回整数指针
func IntPtr(v int) *int {
	return &v
}
