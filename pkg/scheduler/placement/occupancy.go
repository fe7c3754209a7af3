package placement

import (
	"github.com/kebiao/kebiao/pkg/model"
)

type occKey struct {
	id   string
	slot int
}

// Occupancy 记录教室与教师的时段占用
type Occupancy struct {
	rooms    map[occKey]struct{}
	teachers map[occKey]struct{}
}

// NewOccupancy 创建占用表
func NewOccupancy() *Occupancy {
	return &Occupancy{
		rooms:    make(map[occKey]struct{}),
		teachers: make(map[occKey]struct{}),
	}
}

// Free 检查教室和教师在该时段是否空闲
func (o *Occupancy) Free(roomID, teacherID string, slot int) bool {
	if _, taken := o.rooms[occKey{roomID, slot}]; taken {
		return false
	}
	if teacherID != "" {
		if _, taken := o.teachers[occKey{teacherID, slot}]; taken {
			return false
		}
	}
	return true
}

// Mark 标记占用
func (o *Occupancy) Mark(a model.Assignment) {
	if a.RoomID != "" {
		o.rooms[occKey{a.RoomID, a.Slot.Index}] = struct{}{}
	}
	if a.HasTeacher() {
		o.teachers[occKey{a.TeacherID, a.Slot.Index}] = struct{}{}
	}
}

// FirstFit 按时段顺序、教室顺序寻找第一个空闲组合
// 找不到空闲组合时退回第一个时段和第一个兼容教室，由冲突检测暴露冲突
func (p *Pool) FirstFit(o *Occupancy, req Requirement) (model.Assignment, bool) {
	if _, ok := p.Check(req); !ok {
		return model.Assignment{}, false
	}
	rooms := p.Compatible(req.Kind)
	for _, slot := range p.ctx.Slots {
		for _, room := range rooms {
			if o.Free(room.ID, req.TeacherID, slot.Index) {
				return req.Assignment(room.ID, slot), true
			}
		}
	}
	return req.Assignment(rooms[0].ID, p.ctx.Slots[0]), true
}

// FreeSlots 返回该分配可以移动到的空闲 (教室, 时段) 组合
func (p *Pool) FreeSlots(o *Occupancy, a model.Assignment) []model.Assignment {
	var out []model.Assignment
	for _, slot := range p.ctx.Slots {
		for _, room := range p.Compatible(model.RequiredKind(a.IsLab)) {
			if slot.Index == a.Slot.Index && room.ID == a.RoomID {
				continue
			}
			if o.Free(room.ID, a.TeacherID, slot.Index) {
				moved := a
				moved.RoomID = room.ID
				moved.Slot = slot
				out = append(out, moved)
			}
		}
	}
	return out
}

// OccupancyOf 根据课表构建占用表，可跳过指定下标
func OccupancyOf(s model.Schedule, skip int) *Occupancy {
	o := NewOccupancy()
	for i := range s {
		if i == skip {
			continue
		}
		o.Mark(s[i])
	}
	return o
}
