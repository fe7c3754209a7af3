package swap

import (
	"testing"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint/builtin"
	"github.com/kebiao/kebiao/pkg/scheduler/grid"
	"github.com/kebiao/kebiao/pkg/validator"
)

func twoSlotContext() *constraint.Context {
	slots := grid.Generate(grid.Template{
		Days:   []string{"Monday"},
		Blocks: []grid.Block{{Start: "08:00", End: "09:00"}, {Start: "09:00", End: "10:00"}},
	})
	return constraint.NewContext(
		[]model.Subject{{ID: "a", LectureHours: 1, TeacherID: "t1"}, {ID: "b", LectureHours: 1, TeacherID: "t2"}},
		[]model.Teacher{{ID: "t1", Available: true}, {ID: "t2", Available: true}},
		[]model.Room{{ID: "r1", Kind: model.RoomClassroom}, {ID: "lab", Kind: model.RoomLab}},
		slots,
	)
}

func TestMoveEvaluator_EvaluateMove(t *testing.T) {
	ctx := twoSlotContext()
	schedule := model.Schedule{
		{SubjectID: "a", TeacherID: "t1", RoomID: "r1", Slot: ctx.Slots[0]},
		{SubjectID: "b", TeacherID: "t2", RoomID: "r1", Slot: ctx.Slots[0]},
	}
	evaluator := NewMoveEvaluator(builtin.NewDefaultManager(nil))

	tests := []struct {
		name      string
		request   *MoveRequest
		feasible  bool
		wantDelta int
	}{
		{"移到空闲时段", &MoveRequest{Index: 1, Target: model.Assignment{SubjectID: "b", TeacherID: "t2", RoomID: "r1", Slot: ctx.Slots[1]}}, true, 50},
		{"原地不动仍冲突", &MoveRequest{Index: 1, Target: schedule[1]}, false, 0},
		{"教室类型不符", &MoveRequest{Index: 1, Target: model.Assignment{SubjectID: "b", TeacherID: "t2", RoomID: "lab", Slot: ctx.Slots[1]}}, false, 50},
		{"下标越界", &MoveRequest{Index: 5}, false, 0},
		{"交换自身", &MoveRequest{Index: 0, Exchange: intPtr(0)}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := schedule.Clone()
			result := evaluator.EvaluateMove(ctx, schedule, tt.request)
			if result.Feasible != tt.feasible {
				t.Errorf("Feasible = %v, want %v (issues %+v)", result.Feasible, tt.feasible, result.Issues)
			}
			if result.FitnessDelta != tt.wantDelta {
				t.Errorf("FitnessDelta = %d, want %d", result.FitnessDelta, tt.wantDelta)
			}
			if schedule[1] != before[1] {
				t.Error("评估不应修改课表")
			}
		})
	}
}

func TestMoveEvaluator_Exchange(t *testing.T) {
	ctx := twoSlotContext()
	schedule := model.Schedule{
		{SubjectID: "a", TeacherID: "t1", RoomID: "r1", Slot: ctx.Slots[0]},
		{SubjectID: "b", TeacherID: "t2", RoomID: "r1", Slot: ctx.Slots[1]},
	}
	evaluator := NewMoveEvaluator(builtin.NewDefaultManager(nil))

	ok, reason := evaluator.CanMove(ctx, schedule, &MoveRequest{Index: 0, Exchange: intPtr(1)})
	if !ok {
		t.Errorf("交换两个不冲突课时的时段应可行: %s", reason)
	}
}

func TestRecommender_Recommend(t *testing.T) {
	ctx := twoSlotContext()
	schedule := model.Schedule{
		{SubjectID: "a", TeacherID: "t1", RoomID: "r1", Slot: ctx.Slots[0]},
		{SubjectID: "b", TeacherID: "t2", RoomID: "r1", Slot: ctx.Slots[0]},
	}
	recommender := NewRecommender(builtin.NewDefaultManager(nil))

	recs := recommender.Recommend(ctx, schedule, 1, nil)
	if len(recs) != 1 {
		t.Fatalf("只有一个空闲教室时段，Expected 1 recommendation, got %d", len(recs))
	}
	rec := recs[0]
	if rec.MoveType != MoveRelocate || rec.Target.Slot.Index != 1 || rec.Target.RoomID != "r1" {
		t.Errorf("recommendation = %+v", rec)
	}
	if rec.FitnessDelta != 50 || rec.Rank != 1 {
		t.Errorf("delta/rank = %d/%d", rec.FitnessDelta, rec.Rank)
	}
	if recommender.Recommend(ctx, schedule, 9, nil) != nil {
		t.Error("下标越界应返回 nil")
	}
}

func TestRecommender_RecommendForConflicts(t *testing.T) {
	ctx := twoSlotContext()
	schedule := model.Schedule{
		{SubjectID: "a", TeacherID: "t1", RoomID: "r1", Slot: ctx.Slots[0]},
		{SubjectID: "b", TeacherID: "t2", RoomID: "r1", Slot: ctx.Slots[0]},
	}
	report := validator.NewConflictDetector(nil).DetectAll(schedule, nil)

	suggestions := NewRecommender(builtin.NewDefaultManager(nil)).RecommendForConflicts(ctx, schedule, report.Conflicts, nil)
	if len(suggestions) != 1 {
		t.Fatalf("Expected 1 suggestion, got %d", len(suggestions))
	}
	if suggestions[0].Index != 1 || suggestions[0].SubjectID != "b" {
		t.Errorf("应为冲突中的第二个课时给出建议，got %+v", suggestions[0])
	}
	if len(suggestions[0].Recommendations) == 0 {
		t.Error("Expected at least one recommendation")
	}
}

func intPtr(v int) *int {
	return &v
}
