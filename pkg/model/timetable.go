// Package model 定义排课引擎的核心数据模型
package model

import "fmt"

// TimeSlot 时间段
type TimeSlot struct {
	Day      string `json:"day" csv:"day"`
	DayIndex int    `json:"day_index" csv:"day_index"`
	Start    string `json:"start" csv:"start"` // HH:MM
	End      string `json:"end" csv:"end"`     // HH:MM
	Index    int    `json:"slot_index" csv:"slot_index"`
}

// AdjacentTo 判断两个时间段是否为同一天的相邻时段
func (t TimeSlot) AdjacentTo(other TimeSlot) bool {
	if t.DayIndex != other.DayIndex {
		return false
	}
	d := t.Index - other.Index
	return d == 1 || d == -1
}

// String 返回可读描述
func (t TimeSlot) String() string {
	return fmt.Sprintf("%s %s-%s", t.Day, t.Start, t.End)
}

// Assignment 排课分配（一门课程的一个课时）
type Assignment struct {
	SubjectID string   `json:"subject_id" validate:"required"`
	TeacherID string   `json:"teacher_id,omitempty"`
	RoomID    string   `json:"room_id"`
	Slot      TimeSlot `json:"slot"`
	IsLab     bool     `json:"is_lab"`
	Hour      int      `json:"hour"` // 该课程的第几个课时
}

// HasTeacher 是否指定了教师
func (a *Assignment) HasTeacher() bool {
	return a.TeacherID != ""
}

// Schedule 候选课表
type Schedule []Assignment

// Clone 复制课表
func (s Schedule) Clone() Schedule {
	if s == nil {
		return nil
	}
	c := make(Schedule, len(s))
	copy(c, s)
	return c
}

// CountBySubject 统计每门课程的课时数
func (s Schedule) CountBySubject() map[string]int {
	counts := make(map[string]int)
	for i := range s {
		counts[s[i].SubjectID]++
	}
	return counts
}

// HoursByTeacher 统计每位教师的课时数（未指定教师的分配不计）
func (s Schedule) HoursByTeacher() map[string]int {
	hours := make(map[string]int)
	for i := range s {
		if s[i].HasTeacher() {
			hours[s[i].TeacherID]++
		}
	}
	return hours
}
