// Package validator 提供课表冲突检测
package validator

import (
	"fmt"
	"sort"

	"github.com/kebiao/kebiao/pkg/model"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictRoomDoubleBooked    ConflictType = "room_double_booked"    // 教室同一时段重复安排
	ConflictTeacherDoubleBooked ConflictType = "teacher_double_booked" // 教师同一时段重复安排
	ConflictTeacherOverloaded   ConflictType = "teacher_overloaded"    // 教师超过最大课时
	ConflictTeacherUnavailable  ConflictType = "teacher_unavailable"   // 教师不可用
)

// 冲突类型的输出顺序
var typeOrder = map[ConflictType]int{
	ConflictRoomDoubleBooked:    0,
	ConflictTeacherDoubleBooked: 1,
	ConflictTeacherUnavailable:  2,
	ConflictTeacherOverloaded:   3,
}

// 严重程度
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Conflict 冲突信息
type Conflict struct {
	Type        ConflictType    `json:"type"`
	Severity    string          `json:"severity"` // error/warning
	ResourceID  string          `json:"resource_id"`
	Slot        *model.TimeSlot `json:"slot,omitempty"`
	Message     string          `json:"message"`
	Subjects    []string        `json:"subjects,omitempty"`
	Assignments []int           `json:"assignments,omitempty"` // 相关分配在输入中的下标
}

// IsHard 是否为硬约束冲突
func (c *Conflict) IsHard() bool {
	return c.Severity == SeverityError
}

// 未知引用类型
const (
	RefRoom    = "room"
	RefTeacher = "teacher"
	RefSubject = "subject"
)

// UnknownReference 目录中不存在的引用
type UnknownReference struct {
	Kind       string `json:"kind"`
	ID         string `json:"id"`
	Assignment int    `json:"assignment"`
}

// Catalog 校验用的实体目录，nil 字段表示未提供，不做引用检查
type Catalog struct {
	Subjects []model.Subject
	Teachers []model.Teacher
	Rooms    []model.Room
}

// Report 检测报告
type Report struct {
	Conflicts         []Conflict         `json:"conflicts"`
	UnknownReferences []UnknownReference `json:"unknown_references,omitempty"`
}

// IsValid 没有硬约束冲突
func (r *Report) IsValid() bool {
	return r.HardCount() == 0
}

// HardCount 硬约束冲突数
func (r *Report) HardCount() int {
	n := 0
	for i := range r.Conflicts {
		if r.Conflicts[i].IsHard() {
			n++
		}
	}
	return n
}

// CountByType 按类型统计冲突
func (r *Report) CountByType() map[ConflictType]int {
	counts := make(map[ConflictType]int)
	for _, c := range r.Conflicts {
		counts[c.Type]++
	}
	return counts
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	CheckOverload     bool // 是否检查教师超课时
	CheckAvailability bool // 是否检查教师可用性
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		CheckOverload:     true,
		CheckAvailability: true,
	}
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config *DetectorConfig) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	return &ConflictDetector{config: config}
}

type slotKey struct {
	id   string
	slot int
}

// DetectAll 检测所有冲突，不修改输入
// 未知引用不参与冲突检查，记录在报告中
func (d *ConflictDetector) DetectAll(schedule model.Schedule, catalog *Catalog) *Report {
	report := &Report{Conflicts: []Conflict{}}
	idx := newCatalogIndex(catalog)

	rooms := make(map[slotKey][]int)
	teachers := make(map[slotKey][]int)
	hours := make(map[string][]int)

	for i := range schedule {
		a := &schedule[i]

		if idx.subjects != nil {
			if _, ok := idx.subjects[a.SubjectID]; !ok {
				report.UnknownReferences = append(report.UnknownReferences, UnknownReference{RefSubject, a.SubjectID, i})
			}
		}

		if a.RoomID == "" || !idx.knownRoom(a.RoomID) {
			report.UnknownReferences = append(report.UnknownReferences, UnknownReference{RefRoom, a.RoomID, i})
		} else {
			k := slotKey{a.RoomID, a.Slot.Index}
			rooms[k] = append(rooms[k], i)
		}

		if !a.HasTeacher() {
			continue
		}
		if !idx.knownTeacher(a.TeacherID) {
			report.UnknownReferences = append(report.UnknownReferences, UnknownReference{RefTeacher, a.TeacherID, i})
			continue
		}
		k := slotKey{a.TeacherID, a.Slot.Index}
		teachers[k] = append(teachers[k], i)
		hours[a.TeacherID] = append(hours[a.TeacherID], i)
	}

	report.Conflicts = append(report.Conflicts, doubleBookings(schedule, rooms, ConflictRoomDoubleBooked, "教室")...)
	report.Conflicts = append(report.Conflicts, doubleBookings(schedule, teachers, ConflictTeacherDoubleBooked, "教师")...)

	if idx.teachers != nil {
		for id, list := range hours {
			teacher := idx.teachers[id]
			if d.config.CheckAvailability && !teacher.Available {
				report.Conflicts = append(report.Conflicts, Conflict{
					Type:        ConflictTeacherUnavailable,
					Severity:    SeverityError,
					ResourceID:  id,
					Message:     fmt.Sprintf("教师 %s 不可用，但安排了 %d 个课时", displayName(teacher), len(list)),
					Subjects:    subjectsOf(schedule, list),
					Assignments: list,
				})
			}
			if d.config.CheckOverload && teacher.HasLimit() && len(list) > teacher.MaxHours {
				report.Conflicts = append(report.Conflicts, Conflict{
					Type:        ConflictTeacherOverloaded,
					Severity:    SeverityWarning,
					ResourceID:  id,
					Message:     fmt.Sprintf("教师 %s 安排 %d 课时，超过上限 %d", displayName(teacher), len(list), teacher.MaxHours),
					Subjects:    subjectsOf(schedule, list),
					Assignments: list,
				})
			}
		}
	}

	sortConflicts(report.Conflicts)
	return report
}

// DetectForAssignment 检测单个分配与现有课表的重复安排
// skip 为该分配在现有课表中的下标，不在课表中时传 -1
func (d *ConflictDetector) DetectForAssignment(a model.Assignment, existing model.Schedule, skip int) []Conflict {
	var conflicts []Conflict
	for i := range existing {
		if i == skip || existing[i].Slot.Index != a.Slot.Index {
			continue
		}
		other := &existing[i]
		slot := a.Slot
		if a.RoomID != "" && other.RoomID == a.RoomID {
			conflicts = append(conflicts, Conflict{
				Type:        ConflictRoomDoubleBooked,
				Severity:    SeverityError,
				ResourceID:  a.RoomID,
				Slot:        &slot,
				Message:     fmt.Sprintf("教室 %s 在 %s 已安排 %s", a.RoomID, slot, other.SubjectID),
				Subjects:    []string{a.SubjectID, other.SubjectID},
				Assignments: []int{i},
			})
		}
		if a.HasTeacher() && other.TeacherID == a.TeacherID {
			conflicts = append(conflicts, Conflict{
				Type:        ConflictTeacherDoubleBooked,
				Severity:    SeverityError,
				ResourceID:  a.TeacherID,
				Slot:        &slot,
				Message:     fmt.Sprintf("教师 %s 在 %s 已安排 %s", a.TeacherID, slot, other.SubjectID),
				Subjects:    []string{a.SubjectID, other.SubjectID},
				Assignments: []int{i},
			})
		}
	}
	return conflicts
}

// doubleBookings 每个 (资源, 时段) 分组产生一条冲突，引用组内全部分配
func doubleBookings(schedule model.Schedule, groups map[slotKey][]int, typ ConflictType, label string) []Conflict {
	var conflicts []Conflict
	for k, list := range groups {
		if len(list) < 2 {
			continue
		}
		slot := schedule[list[0]].Slot
		conflicts = append(conflicts, Conflict{
			Type:        typ,
			Severity:    SeverityError,
			ResourceID:  k.id,
			Slot:        &slot,
			Message:     fmt.Sprintf("%s %s 在 %s 安排了 %d 门课", label, k.id, slot, len(list)),
			Subjects:    subjectsOf(schedule, list),
			Assignments: list,
		})
	}
	return conflicts
}

func sortConflicts(conflicts []Conflict) {
	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := &conflicts[i], &conflicts[j]
		if a.Type != b.Type {
			return typeOrder[a.Type] < typeOrder[b.Type]
		}
		ai, bi := slotIndexOf(a), slotIndexOf(b)
		if ai != bi {
			return ai < bi
		}
		return a.ResourceID < b.ResourceID
	})
}

func slotIndexOf(c *Conflict) int {
	if c.Slot == nil {
		return -1
	}
	return c.Slot.Index
}

func subjectsOf(schedule model.Schedule, list []int) []string {
	out := make([]string, len(list))
	for i, idx := range list {
		out[i] = schedule[idx].SubjectID
	}
	return out
}

func displayName(t *model.Teacher) string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

type catalogIndex struct {
	subjects map[string]*model.Subject
	teachers map[string]*model.Teacher
	rooms    map[string]*model.Room
}

func newCatalogIndex(c *Catalog) *catalogIndex {
	idx := &catalogIndex{}
	if c == nil {
		return idx
	}
	if c.Subjects != nil {
		idx.subjects = make(map[string]*model.Subject, len(c.Subjects))
		for i := range c.Subjects {
			idx.subjects[c.Subjects[i].ID] = &c.Subjects[i]
		}
	}
	if c.Teachers != nil {
		idx.teachers = make(map[string]*model.Teacher, len(c.Teachers))
		for i := range c.Teachers {
			idx.teachers[c.Teachers[i].ID] = &c.Teachers[i]
		}
	}
	if c.Rooms != nil {
		idx.rooms = make(map[string]*model.Room, len(c.Rooms))
		for i := range c.Rooms {
			idx.rooms[c.Rooms[i].ID] = &c.Rooms[i]
		}
	}
	return idx
}

func (c *catalogIndex) knownRoom(id string) bool {
	if c.rooms == nil {
		return true
	}
	_, ok := c.rooms[id]
	return ok
}

func (c *catalogIndex) knownTeacher(id string) bool {
	if c.teachers == nil {
		return true
	}
	_, ok := c.teachers[id]
	return ok
}
