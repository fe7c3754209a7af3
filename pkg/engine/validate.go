package engine

import (
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint/builtin"
	"github.com/kebiao/kebiao/pkg/scheduler/grid"
	"github.com/kebiao/kebiao/pkg/swap"
	"github.com/kebiao/kebiao/pkg/validator"
)

// ValidationReport 外部课表的校验结果
type ValidationReport struct {
	IsValid           bool                         `json:"is_valid"`
	Conflicts         []validator.Conflict         `json:"conflicts"`
	TotalSessions     int                          `json:"total_sessions"`
	ConflictCount     int                          `json:"conflict_count"`
	UnknownReferences []validator.UnknownReference `json:"unknown_references,omitempty"`
	Suggestions       []swap.Suggestion            `json:"suggestions,omitempty"`
}

// ValidateRequest 校验请求，目录字段为 nil 时不做引用检查
type ValidateRequest struct {
	Schedule model.Schedule
	Subjects []model.Subject
	Teachers []model.Teacher
	Rooms    []model.Room

	// 生成调课建议时使用的时段目录，slotIndex 须与课表一致，为空时用默认模板
	Slots       []model.TimeSlot
	Suggest     bool
	Constraints map[string]interface{}
}

// Validate 校验外部提供的课表，不修改输入
func (e *Engine) Validate(schedule model.Schedule, teachers []model.Teacher, rooms []model.Room) *ValidationReport {
	return e.ValidateWith(&ValidateRequest{Schedule: schedule, Teachers: teachers, Rooms: rooms})
}

// ValidateWith 校验课表，可选为重复安排的课时生成调课建议
func (e *Engine) ValidateWith(req *ValidateRequest) *ValidationReport {
	report := validator.NewConflictDetector(e.detector).DetectAll(req.Schedule, &validator.Catalog{
		Subjects: req.Subjects,
		Teachers: req.Teachers,
		Rooms:    req.Rooms,
	})

	out := &ValidationReport{
		IsValid:           report.IsValid(),
		Conflicts:         report.Conflicts,
		TotalSessions:     len(req.Schedule),
		ConflictCount:     len(report.Conflicts),
		UnknownReferences: report.UnknownReferences,
	}

	if req.Suggest && !report.IsValid() {
		slots := req.Slots
		if len(slots) == 0 {
			slots = grid.Generate(grid.DefaultTemplate())
		}
		schedCtx := constraint.NewContext(req.Subjects, req.Teachers, req.Rooms, slots)
		recommender := swap.NewRecommender(builtin.NewDefaultManager(req.Constraints))
		out.Suggestions = recommender.RecommendForConflicts(schedCtx, req.Schedule, report.Conflicts, nil)
	}
	return out
}
