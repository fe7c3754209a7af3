// Package model 定义排课引擎的核心数据模型
package model

// Subject 课程（一门课的每周课时需求）
type Subject struct {
	ID           string `json:"id" csv:"id" validate:"required"`
	Code         string `json:"code,omitempty" csv:"code"`
	Name         string `json:"name" csv:"name"`
	LectureHours int    `json:"lecture_hours" csv:"lecture_hours" validate:"gte=0"`
	LabHours     int    `json:"lab_hours" csv:"lab_hours" validate:"gte=0"`
	IsLab        bool   `json:"is_lab" csv:"is_lab"` // 纯实验课
	TeacherID    string `json:"teacher_id,omitempty" csv:"teacher_id"`
	Credits      int    `json:"credits,omitempty" csv:"credits"`
	Capacity     int    `json:"capacity,omitempty" csv:"capacity"`
}

// TotalHours 返回每周总课时
func (s *Subject) TotalHours() int {
	return s.LectureHours + s.LabHours
}

// IsLabHour 判断第 i 个课时（从0开始）是否为实验课时
// 纯实验课全部为实验课时；混合课程超出讲授课时的部分为实验课时
func (s *Subject) IsLabHour(i int) bool {
	if s.IsLab {
		return true
	}
	return i >= s.LectureHours
}

// Teacher 教师
type Teacher struct {
	ID        string `json:"id" csv:"id" validate:"required"`
	Name      string `json:"name" csv:"name"`
	Available bool   `json:"available" csv:"available"`
	MaxHours  int    `json:"max_hours" csv:"max_hours" validate:"gte=0"` // <=0 表示不限
}

// HasLimit 是否配置了课时上限
func (t *Teacher) HasLimit() bool {
	return t.MaxHours > 0
}

// Room 教室
type Room struct {
	ID       string   `json:"id" csv:"id" validate:"required"`
	Name     string   `json:"name" csv:"name"`
	Kind     RoomKind `json:"kind" csv:"kind" validate:"required,oneof=classroom lab auditorium"`
	Capacity int      `json:"capacity" csv:"capacity" validate:"gte=0"`
}

// TotalRequiredHours 计算所有课程的总课时
func TotalRequiredHours(subjects []Subject) int {
	total := 0
	for i := range subjects {
		total += subjects[i].TotalHours()
	}
	return total
}
