// Package placement 提供课时需求展开与教室、时段的放置原语
package placement

import (
	"math/rand"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// 无法安排的原因
const (
	ReasonNoCompatibleRoom = "no_compatible_room"
	ReasonNoTimeSlots      = "no_time_slots"
	ReasonCancelled        = "cancelled"
)

// Requirement 单个课时需求
type Requirement struct {
	SubjectID string         `json:"subject_id"`
	TeacherID string         `json:"teacher_id,omitempty"`
	Hour      int            `json:"hour"`
	IsLab     bool           `json:"is_lab"`
	Kind      model.RoomKind `json:"kind"`
}

// Unplaced 无法安排的课时
type Unplaced struct {
	SubjectID string `json:"subject_id"`
	Hour      int    `json:"hour"`
	IsLab     bool   `json:"is_lab"`
	Reason    string `json:"reason"`
}

// Expand 将课程展开为逐课时需求，顺序与课程顺序一致
func Expand(subjects []model.Subject) []Requirement {
	reqs := make([]Requirement, 0, model.TotalRequiredHours(subjects))
	for i := range subjects {
		sub := &subjects[i]
		for h := 0; h < sub.TotalHours(); h++ {
			isLab := sub.IsLabHour(h)
			reqs = append(reqs, Requirement{
				SubjectID: sub.ID,
				TeacherID: sub.TeacherID,
				Hour:      h,
				IsLab:     isLab,
				Kind:      model.RequiredKind(isLab),
			})
		}
	}
	return reqs
}

// Assignment 以需求和选定的教室、时段构造分配
func (r Requirement) Assignment(roomID string, slot model.TimeSlot) model.Assignment {
	return model.Assignment{
		SubjectID: r.SubjectID,
		TeacherID: r.TeacherID,
		RoomID:    roomID,
		Slot:      slot,
		IsLab:     r.IsLab,
		Hour:      r.Hour,
	}
}

// Unplaced 以原因构造无法安排的记录
func (r Requirement) Unplaced(reason string) Unplaced {
	return Unplaced{SubjectID: r.SubjectID, Hour: r.Hour, IsLab: r.IsLab, Reason: reason}
}

// Pool 放置资源池
type Pool struct {
	ctx *constraint.Context
}

// NewPool 基于排课上下文创建资源池
func NewPool(ctx *constraint.Context) *Pool {
	return &Pool{ctx: ctx}
}

// Slots 返回时段目录
func (p *Pool) Slots() []model.TimeSlot {
	return p.ctx.Slots
}

// Compatible 返回满足类型要求的教室
func (p *Pool) Compatible(kind model.RoomKind) []*model.Room {
	return p.ctx.RoomsOfKind(kind)
}

// Check 检查需求是否有可用资源，返回无法安排的原因
func (p *Pool) Check(req Requirement) (string, bool) {
	if len(p.ctx.Slots) == 0 {
		return ReasonNoTimeSlots, false
	}
	if len(p.Compatible(req.Kind)) == 0 {
		return ReasonNoCompatibleRoom, false
	}
	return "", true
}

// Placeable 拆分可安排与无法安排的需求
func (p *Pool) Placeable(reqs []Requirement) ([]Requirement, []Unplaced) {
	ok := make([]Requirement, 0, len(reqs))
	var unplaced []Unplaced
	for _, req := range reqs {
		if reason, fine := p.Check(req); !fine {
			unplaced = append(unplaced, req.Unplaced(reason))
			continue
		}
		ok = append(ok, req)
	}
	return ok, unplaced
}

// Random 在兼容教室和全部时段中各均匀随机选一个
// 不避免冲突，冲突留给适应度和冲突检测处理
func (p *Pool) Random(rng *rand.Rand, req Requirement) (model.Assignment, bool) {
	if _, ok := p.Check(req); !ok {
		return model.Assignment{}, false
	}
	rooms := p.Compatible(req.Kind)
	room := rooms[rng.Intn(len(rooms))]
	slot := p.ctx.Slots[rng.Intn(len(p.ctx.Slots))]
	return req.Assignment(room.ID, slot), true
}

// RandomRoom 重新随机选择兼容教室
func (p *Pool) RandomRoom(rng *rand.Rand, a model.Assignment) string {
	rooms := p.Compatible(model.RequiredKind(a.IsLab))
	if len(rooms) == 0 {
		return a.RoomID
	}
	return rooms[rng.Intn(len(rooms))].ID
}

// RandomSlot 重新随机选择时段
func (p *Pool) RandomSlot(rng *rand.Rand, a model.Assignment) model.TimeSlot {
	if len(p.ctx.Slots) == 0 {
		return a.Slot
	}
	return p.ctx.Slots[rng.Intn(len(p.ctx.Slots))]
}

// RandomSchedule 为每个需求随机放置，生成一个完整候选课表
func (p *Pool) RandomSchedule(rng *rand.Rand, reqs []Requirement) model.Schedule {
	s := make(model.Schedule, 0, len(reqs))
	for _, req := range reqs {
		if a, ok := p.Random(rng, req); ok {
			s = append(s, a)
		}
	}
	return s
}
