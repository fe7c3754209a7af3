// Package grid 生成每周可排课的时间段目录
package grid

import (
	"fmt"
	"sort"
	"time"

	"github.com/kebiao/kebiao/pkg/model"
)

const clockLayout = "15:04"

// Block 一天中的一个课时块
type Block struct {
	Start string `json:"start"` // HH:MM
	End   string `json:"end"`   // HH:MM
}

// Template 每周时间模板
type Template struct {
	Days   []string `json:"days"`
	Blocks []Block  `json:"blocks"`
}

// DefaultTemplate 返回默认模板：周一至周五，每天4个课时块
func DefaultTemplate() Template {
	return Template{
		Days: []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		Blocks: []Block{
			{Start: "08:00", End: "09:00"},
			{Start: "09:00", End: "10:00"},
			{Start: "10:00", End: "11:00"},
			{Start: "11:00", End: "12:00"},
		},
	}
}

// Capacity 返回模板的时段总数
func (t Template) Capacity() int {
	return len(t.Days) * len(t.Blocks)
}

// Validate 校验模板中的时间格式
func (t Template) Validate() error {
	for i, b := range t.Blocks {
		if err := checkRange(b.Start, b.End); err != nil {
			return fmt.Errorf("课时块 %d %w", i, err)
		}
	}
	return nil
}

// ValidateSlots 校验外部提供的时段目录，时间须为 HH:MM 且结束晚于开始
func ValidateSlots(slots []model.TimeSlot) error {
	for i, s := range slots {
		if err := checkRange(s.Start, s.End); err != nil {
			return fmt.Errorf("时段 %d (%s) %w", i, s.Day, err)
		}
	}
	return nil
}

func checkRange(start, end string) error {
	s, err := time.Parse(clockLayout, start)
	if err != nil {
		return fmt.Errorf("开始时间无效: %w", err)
	}
	e, err := time.Parse(clockLayout, end)
	if err != nil {
		return fmt.Errorf("结束时间无效: %w", err)
	}
	if !e.After(s) {
		return fmt.Errorf("结束时间必须晚于开始时间")
	}
	return nil
}

// minuteOfDay 返回 HH:MM 对应的分钟数，无法解析时返回 -1
func minuteOfDay(clock string) int {
	t, err := time.Parse(clockLayout, clock)
	if err != nil {
		return -1
	}
	return t.Hour()*60 + t.Minute()
}

// Generate 按天优先、课时块其次的顺序生成时间段，slotIndex 连续递增
// 天或课时块为空时返回空目录
func Generate(t Template) []model.TimeSlot {
	if len(t.Days) == 0 || len(t.Blocks) == 0 {
		return []model.TimeSlot{}
	}

	slots := make([]model.TimeSlot, 0, t.Capacity())
	for d, day := range t.Days {
		for _, b := range t.Blocks {
			slots = append(slots, model.TimeSlot{
				Day:      day,
				DayIndex: d,
				Start:    b.Start,
				End:      b.End,
				Index:    len(slots),
			})
		}
	}
	return slots
}

// Normalize 规范化外部提供的时段目录
// 按天首次出现的顺序和开始时间（按时钟而非字符串比较）排序，并重新分配 DayIndex 与 slotIndex
func Normalize(slots []model.TimeSlot) []model.TimeSlot {
	dayOrder := make(map[string]int)
	for _, s := range slots {
		if _, ok := dayOrder[s.Day]; !ok {
			dayOrder[s.Day] = len(dayOrder)
		}
	}

	out := make([]model.TimeSlot, len(slots))
	copy(out, slots)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := dayOrder[out[i].Day], dayOrder[out[j].Day]
		if di != dj {
			return di < dj
		}
		mi, mj := minuteOfDay(out[i].Start), minuteOfDay(out[j].Start)
		if mi != mj {
			return mi < mj
		}
		return out[i].Start < out[j].Start
	})

	for i := range out {
		out[i].DayIndex = dayOrder[out[i].Day]
		out[i].Index = i
	}
	return out
}

// BlocksPerDay 返回单日最多的时段数
func BlocksPerDay(slots []model.TimeSlot) int {
	perDay := make(map[int]int)
	max := 0
	for _, s := range slots {
		perDay[s.DayIndex]++
		if perDay[s.DayIndex] > max {
			max = perDay[s.DayIndex]
		}
	}
	return max
}
