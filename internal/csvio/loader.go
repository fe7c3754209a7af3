// Package csvio 提供课程、教师、教室目录的 CSV 读取与课表、冲突的 CSV 导出
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/kebiao/kebiao/pkg/model"
)

// DefaultDelimiter 默认分隔符
const DefaultDelimiter = ','

func newReader(in io.Reader, delim rune) gocsv.CSVReader {
	r := csv.NewReader(in)
	r.Comma = delim
	r.TrimLeadingSpace = true
	return r
}

// load 按表头解析 CSV 到结构体切片
func load[T any](in io.Reader, delim rune, what string) ([]T, error) {
	var rows []T
	if err := gocsv.UnmarshalCSV(newReader(in, delim), &rows); err != nil {
		if err == gocsv.ErrEmptyCSVFile {
			return []T{}, nil
		}
		return nil, fmt.Errorf("解析%s CSV 失败: %w", what, err)
	}
	return rows, nil
}

// LoadSubjects 读取课程目录
func LoadSubjects(in io.Reader, delim rune) ([]model.Subject, error) {
	subjects, err := load[model.Subject](in, delim, "课程")
	if err != nil {
		return nil, err
	}
	for i := range subjects {
		subjects[i].ID = strings.TrimSpace(subjects[i].ID)
		subjects[i].TeacherID = strings.TrimSpace(subjects[i].TeacherID)
	}
	return subjects, nil
}

// LoadTeachers 读取教师目录
func LoadTeachers(in io.Reader, delim rune) ([]model.Teacher, error) {
	teachers, err := load[model.Teacher](in, delim, "教师")
	if err != nil {
		return nil, err
	}
	for i := range teachers {
		teachers[i].ID = strings.TrimSpace(teachers[i].ID)
	}
	return teachers, nil
}

// LoadRooms 读取教室目录，类型统一转为小写
func LoadRooms(in io.Reader, delim rune) ([]model.Room, error) {
	rooms, err := load[model.Room](in, delim, "教室")
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		rooms[i].ID = strings.TrimSpace(rooms[i].ID)
		rooms[i].Kind = model.RoomKind(strings.ToLower(strings.TrimSpace(string(rooms[i].Kind))))
	}
	return rooms, nil
}

// LoadSlots 读取时段目录
func LoadSlots(in io.Reader, delim rune) ([]model.TimeSlot, error) {
	return load[model.TimeSlot](in, delim, "时段")
}

// Catalog 从文件读取的目录
type Catalog struct {
	Subjects []model.Subject
	Teachers []model.Teacher
	Rooms    []model.Room
	Slots    []model.TimeSlot
}

// Files 目录文件路径，为空的路径跳过
type Files struct {
	Subjects string
	Teachers string
	Rooms    string
	Slots    string
}

// LoadCatalog 依次读取各目录文件
func LoadCatalog(files Files, delim rune) (*Catalog, error) {
	cat := &Catalog{}
	var err error

	if cat.Subjects, err = loadFile(files.Subjects, delim, LoadSubjects); err != nil {
		return nil, err
	}
	if cat.Teachers, err = loadFile(files.Teachers, delim, LoadTeachers); err != nil {
		return nil, err
	}
	if cat.Rooms, err = loadFile(files.Rooms, delim, LoadRooms); err != nil {
		return nil, err
	}
	if cat.Slots, err = loadFile(files.Slots, delim, LoadSlots); err != nil {
		return nil, err
	}
	return cat, nil
}

func loadFile[T any](path string, delim rune, fn func(io.Reader, rune) ([]T, error)) ([]T, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开 %s 失败: %w", path, err)
	}
	defer f.Close()

	out, err := fn(f, delim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}
