package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/placement"
	"github.com/kebiao/kebiao/pkg/validator"
)

// TimetableRow 课表导出行
type TimetableRow struct {
	Day       string `csv:"day"`
	Start     string `csv:"start"`
	End       string `csv:"end"`
	SlotIndex int    `csv:"slot_index"`
	RoomID    string `csv:"room_id"`
	SubjectID string `csv:"subject_id"`
	TeacherID string `csv:"teacher_id"`
	IsLab     bool   `csv:"is_lab"`
	Hour      int    `csv:"hour"`
}

// ConflictRow 冲突导出行
type ConflictRow struct {
	Type       string `csv:"type"`
	Severity   string `csv:"severity"`
	ResourceID string `csv:"resource_id"`
	Day        string `csv:"day"`
	Start      string `csv:"start"`
	SlotIndex  string `csv:"slot_index"` // 教师负荷类冲突无时段
	Subjects   string `csv:"subjects"`
	Message    string `csv:"message"`
}

// UnplacedRow 未安排课时导出行
type UnplacedRow struct {
	SubjectID string `csv:"subject_id"`
	Hour      int    `csv:"hour"`
	IsLab     bool   `csv:"is_lab"`
	Reason    string `csv:"reason"`
}

func newWriter(out io.Writer, delim rune) *gocsv.SafeCSVWriter {
	w := csv.NewWriter(out)
	w.Comma = delim
	return gocsv.NewSafeCSVWriter(w)
}

// TimetableRows 按时段、教室排序生成导出行，不修改输入
func TimetableRows(schedule model.Schedule) []*TimetableRow {
	rows := make([]*TimetableRow, 0, len(schedule))
	for _, a := range schedule {
		rows = append(rows, &TimetableRow{
			Day:       a.Slot.Day,
			Start:     a.Slot.Start,
			End:       a.Slot.End,
			SlotIndex: a.Slot.Index,
			RoomID:    a.RoomID,
			SubjectID: a.SubjectID,
			TeacherID: a.TeacherID,
			IsLab:     a.IsLab,
			Hour:      a.Hour,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SlotIndex != rows[j].SlotIndex {
			return rows[i].SlotIndex < rows[j].SlotIndex
		}
		return rows[i].RoomID < rows[j].RoomID
	})
	return rows
}

// WriteTimetable 导出课表
func WriteTimetable(out io.Writer, schedule model.Schedule, delim rune) error {
	rows := TimetableRows(schedule)
	if err := gocsv.MarshalCSV(&rows, newWriter(out, delim)); err != nil {
		return fmt.Errorf("导出课表失败: %w", err)
	}
	return nil
}

// WriteConflicts 导出冲突
func WriteConflicts(out io.Writer, conflicts []validator.Conflict, delim rune) error {
	rows := make([]*ConflictRow, 0, len(conflicts))
	for _, c := range conflicts {
		row := &ConflictRow{
			Type:       string(c.Type),
			Severity:   c.Severity,
			ResourceID: c.ResourceID,
			Subjects:   strings.Join(c.Subjects, ";"),
			Message:    c.Message,
		}
		if c.Slot != nil {
			row.Day = c.Slot.Day
			row.Start = c.Slot.Start
			row.SlotIndex = fmt.Sprintf("%d", c.Slot.Index)
		}
		rows = append(rows, row)
	}
	if err := gocsv.MarshalCSV(&rows, newWriter(out, delim)); err != nil {
		return fmt.Errorf("导出冲突失败: %w", err)
	}
	return nil
}

// WriteUnplaced 导出未安排课时
func WriteUnplaced(out io.Writer, unplaced []placement.Unplaced, delim rune) error {
	rows := make([]*UnplacedRow, 0, len(unplaced))
	for _, u := range unplaced {
		rows = append(rows, &UnplacedRow{SubjectID: u.SubjectID, Hour: u.Hour, IsLab: u.IsLab, Reason: u.Reason})
	}
	if err := gocsv.MarshalCSV(&rows, newWriter(out, delim)); err != nil {
		return fmt.Errorf("导出未安排课时失败: %w", err)
	}
	return nil
}

// WriteFile 创建或覆盖文件并写入
func WriteFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建 %s 失败: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
