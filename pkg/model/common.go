// Package model 定义排课引擎的核心数据模型
package model

// RoomKind 教室类型
type RoomKind string

const (
	RoomClassroom  RoomKind = "classroom"  // 普通教室
	RoomLab        RoomKind = "lab"        // 实验室
	RoomAuditorium RoomKind = "auditorium" // 阶梯教室
)

// Valid 检查教室类型是否合法
func (k RoomKind) Valid() bool {
	switch k {
	case RoomClassroom, RoomLab, RoomAuditorium:
		return true
	}
	return false
}

// RequiredKind 返回课时所需的教室类型
func RequiredKind(isLab bool) RoomKind {
	if isLab {
		return RoomLab
	}
	return RoomClassroom
}
