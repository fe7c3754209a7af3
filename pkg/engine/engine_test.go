package engine

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/grid"
	"github.com/kebiao/kebiao/pkg/scheduler/optimizer"
	"github.com/kebiao/kebiao/pkg/scheduler/placement"
	"github.com/kebiao/kebiao/pkg/validator"
)

var fixedTime = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func testEngine(opts ...Option) *Engine {
	id := uuid.MustParse("6f1c2a4e-8d3b-4c5a-9e7f-1a2b3c4d5e6f")
	base := []Option{
		WithClock(func() time.Time { return fixedTime }),
		WithIDGenerator(func() uuid.UUID { return id }),
	}
	return New(append(base, opts...)...)
}

func seed(v int64) *int64 {
	return &v
}

func smallGenetic() optimizer.GeneticConfig {
	return optimizer.GeneticConfig{PopulationSize: 20, Generations: 20, MutationRate: 0.1, CrossoverRate: 0.8, ElitismRate: 0.1, Workers: 2}
}

func TestEngine_TrivialGreedy(t *testing.T) {
	result, err := testEngine().Run(context.Background(), &Request{
		Algorithm: AlgorithmGreedy,
		Subjects:  []model.Subject{{ID: "math", LectureHours: 1, TeacherID: "t1"}},
		Teachers:  []model.Teacher{{ID: "t1", Available: true, MaxHours: 10}},
		Rooms:     []model.Room{{ID: "r1", Kind: model.RoomClassroom}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Assignments) != 1 {
		t.Errorf("Expected exactly 1 assignment, got %d", len(result.Assignments))
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("Expected 0 conflicts, got %+v", result.Conflicts)
	}
	if result.Metrics.SchedulingRate != 100 {
		t.Errorf("SchedulingRate = %v, want 100", result.Metrics.SchedulingRate)
	}
	if result.Metadata.SlotCount != 20 || result.Metadata.Algorithm != "greedy" {
		t.Errorf("metadata = %+v", result.Metadata)
	}
	if !result.Metadata.GeneratedAt.Equal(fixedTime) {
		t.Errorf("GeneratedAt = %v, want injected clock", result.Metadata.GeneratedAt)
	}
}

func TestEngine_ForcedRoomConflict(t *testing.T) {
	oneSlot := &grid.Template{Days: []string{"Monday"}, Blocks: []grid.Block{{Start: "08:00", End: "09:00"}}}

	for _, algo := range []Algorithm{AlgorithmGreedy, AlgorithmGenetic, AlgorithmConstraint} {
		t.Run(algo.String(), func(t *testing.T) {
			result, err := testEngine().Run(context.Background(), &Request{
				Algorithm: algo,
				Subjects:  []model.Subject{{ID: "a", LectureHours: 1}, {ID: "b", LectureHours: 1}},
				Rooms:     []model.Room{{ID: "r1", Kind: model.RoomClassroom}},
				Template:  oneSlot,
				Genetic:   smallGenetic(),
				Seed:      seed(1),
			})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(result.Assignments) != 2 {
				t.Fatalf("Expected 2 assignments, got %d", len(result.Assignments))
			}
			if len(result.Conflicts) != 1 || result.Conflicts[0].Type != validator.ConflictRoomDoubleBooked {
				t.Errorf("Expected exactly 1 room conflict, got %+v", result.Conflicts)
			}
			if result.Metrics.TotalConflicts != 1 || result.Metrics.TotalSessions != 2 {
				t.Errorf("metrics = %+v", result.Metrics)
			}
		})
	}
}

func TestEngine_TeacherOverload(t *testing.T) {
	rooms := []model.Room{{ID: "r1", Kind: model.RoomClassroom}}

	overloaded, err := testEngine().Run(context.Background(), &Request{
		Algorithm: AlgorithmGreedy,
		Subjects:  []model.Subject{{ID: "a", LectureHours: 4, TeacherID: "t1"}},
		Teachers:  []model.Teacher{{ID: "t1", Available: true, MaxHours: 2}},
		Rooms:     rooms,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	spread, err := testEngine().Run(context.Background(), &Request{
		Algorithm: AlgorithmGreedy,
		Subjects: []model.Subject{
			{ID: "a", LectureHours: 2, TeacherID: "t1"},
			{ID: "b", LectureHours: 2, TeacherID: "t2"},
		},
		Teachers: []model.Teacher{
			{ID: "t1", Available: true, MaxHours: 2},
			{ID: "t2", Available: true, MaxHours: 2},
		},
		Rooms: rooms,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if overloaded.Metrics.Fitness >= spread.Metrics.Fitness {
		t.Errorf("超课时的适应度 %d 应低于均摊的 %d", overloaded.Metrics.Fitness, spread.Metrics.Fitness)
	}
	counts := validatorCounts(overloaded.Conflicts)
	if counts[validator.ConflictTeacherOverloaded] != 1 {
		t.Errorf("Expected overload conflict, got %+v", overloaded.Conflicts)
	}
}

func validatorCounts(conflicts []validator.Conflict) map[validator.ConflictType]int {
	counts := make(map[validator.ConflictType]int)
	for _, c := range conflicts {
		counts[c.Type]++
	}
	return counts
}

func TestEngine_NoLabRoom(t *testing.T) {
	for _, algo := range []Algorithm{AlgorithmGreedy, AlgorithmGenetic, AlgorithmConstraint} {
		t.Run(algo.String(), func(t *testing.T) {
			result, err := testEngine().Run(context.Background(), &Request{
				Algorithm: algo,
				Subjects:  []model.Subject{{ID: "chem", LectureHours: 1, LabHours: 2}},
				Rooms:     []model.Room{{ID: "r1", Kind: model.RoomClassroom}},
				Genetic:   smallGenetic(),
				Seed:      seed(3),
			})
			if err != nil {
				t.Fatalf("缺少实验室不应返回错误: %v", err)
			}
			if len(result.Unplaced) != 2 {
				t.Fatalf("Expected 2 unplaced lab hours, got %+v", result.Unplaced)
			}
			for _, u := range result.Unplaced {
				if u.Reason != placement.ReasonNoCompatibleRoom {
					t.Errorf("unplaced reason = %s", u.Reason)
				}
			}
			if result.Metrics.SchedulingRate >= 100 || result.Metrics.UnplacedHours != 2 {
				t.Errorf("metrics = %+v", result.Metrics)
			}
		})
	}
}

func TestEngine_HourConservation(t *testing.T) {
	for _, algo := range []Algorithm{AlgorithmGreedy, AlgorithmGenetic, AlgorithmConstraint} {
		t.Run(algo.String(), func(t *testing.T) {
			result, err := testEngine().Run(context.Background(), &Request{
				Algorithm: algo,
				Subjects: []model.Subject{
					{ID: "chem", LectureHours: 3, LabHours: 2, TeacherID: "t1"},
					{ID: "math", LectureHours: 2, TeacherID: "t2"},
				},
				Teachers: []model.Teacher{{ID: "t1", Available: true}, {ID: "t2", Available: true}},
				Rooms:    []model.Room{{ID: "r1", Kind: model.RoomClassroom}, {ID: "lab", Kind: model.RoomLab}},
				Genetic:  smallGenetic(),
				Seed:     seed(11),
			})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if n := result.Assignments.CountBySubject()["chem"]; n != 5 {
				t.Errorf("chem 讲授3+实验2应有5个分配，got %d", n)
			}
			if result.Metrics.SchedulingRate != 100 {
				t.Errorf("SchedulingRate = %v", result.Metrics.SchedulingRate)
			}
		})
	}
}

func TestEngine_SeededReproducibility(t *testing.T) {
	req := func() *Request {
		return &Request{
			Algorithm: AlgorithmGenetic,
			Subjects: []model.Subject{
				{ID: "chem", LectureHours: 3, LabHours: 2, TeacherID: "t1"},
				{ID: "math", LectureHours: 4, TeacherID: "t2"},
				{ID: "bio", LabHours: 2, IsLab: true, TeacherID: "t1"},
			},
			Teachers: []model.Teacher{{ID: "t1", Available: true, MaxHours: 6}, {ID: "t2", Available: true}},
			Rooms:    []model.Room{{ID: "r1", Kind: model.RoomClassroom}, {ID: "lab", Kind: model.RoomLab}},
			Genetic:  smallGenetic(),
			Seed:     seed(2026),
		}
	}

	a, err := testEngine().Run(context.Background(), req())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	b, err := testEngine().Run(context.Background(), req())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("同一种子、同一输入的运行结果应完全一致")
	}
	if len(a.Metadata.Trace) == 0 {
		t.Error("遗传算法应记录每代轨迹")
	}
	for i := 1; i < len(a.Metadata.Trace); i++ {
		if a.Metadata.Trace[i].BestSoFar < a.Metadata.Trace[i-1].BestSoFar {
			t.Fatalf("第 %d 代最优值回退", i)
		}
	}
}

func TestEngine_GeneticZeroConfigUsesDefaults(t *testing.T) {
	var subjects []model.Subject
	var teachers []model.Teacher
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
		subjects = append(subjects, model.Subject{ID: id, LectureHours: 3, LabHours: 2, TeacherID: "t-" + id})
		teachers = append(teachers, model.Teacher{ID: "t-" + id, Available: true})
	}

	result, err := testEngine().Run(context.Background(), &Request{
		Algorithm: AlgorithmGenetic,
		Subjects:  subjects,
		Teachers:  teachers,
		Rooms:     []model.Room{{ID: "r1", Kind: model.RoomClassroom}, {ID: "lab", Kind: model.RoomLab}},
		Seed:      seed(5),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	trace := result.Metadata.Trace
	if len(trace) < 2 {
		t.Fatalf("Expected a multi-generation trace, got %d entries", len(trace))
	}
	if trace[len(trace)-1].BestSoFar <= trace[0].BestSoFar {
		t.Errorf("零值配置应使用默认交叉与变异率，最优值 %d -> %d 未改进",
			trace[0].BestSoFar, trace[len(trace)-1].BestSoFar)
	}
}

func TestEngine_ConstraintTimeBudgetFlagged(t *testing.T) {
	req := &Request{
		Algorithm: AlgorithmConstraint,
		Subjects:  []model.Subject{{ID: "math", LectureHours: 3, TeacherID: "t1"}},
		Teachers:  []model.Teacher{{ID: "t1", Available: true, MaxHours: 1}},
		Rooms:     []model.Room{{ID: "r1", Kind: model.RoomClassroom}},
		Seed:      seed(11),
	}
	ls := optimizer.DefaultOptConfig()
	ls.MaxTime = time.Nanosecond
	req.LocalSearch = ls

	result, err := testEngine().Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Metadata.TimeLimited {
		t.Error("超出时间预算的运行应标记 TimeLimited")
	}
	if result.Metadata.Cancelled {
		t.Error("时间预算耗尽不是取消")
	}

	req.LocalSearch = optimizer.DefaultOptConfig()
	req.LocalSearch.MaxTime = 0
	req.LocalSearch.MaxIterations = 50
	result, err = testEngine().Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Metadata.TimeLimited {
		t.Error("按迭代次数结束的运行不应标记 TimeLimited")
	}
}

func TestEngine_UnsupportedAlgorithm(t *testing.T) {
	_, err := ParseAlgorithm("simulated_annealing")
	if !IsUnsupportedAlgorithm(err) {
		t.Fatalf("Expected UnsupportedAlgorithmError, got %v", err)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		t.Error("不支持的算法错误应与输入错误区分")
	}

	_, err = testEngine().Run(context.Background(), &Request{Algorithm: Algorithm(42)})
	if !IsUnsupportedAlgorithm(err) {
		t.Errorf("Run() with unknown algorithm error = %v", err)
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in   string
		want Algorithm
	}{
		{"greedy", AlgorithmGreedy},
		{"Genetic", AlgorithmGenetic},
		{" constraint ", AlgorithmConstraint},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %v, %v", tt.in, got, err)
		}
	}
	if _, err := ParseAlgorithm(""); err == nil {
		t.Error("空算法名不应退回默认算法")
	}
}

func TestAlgorithm_JSON(t *testing.T) {
	var req struct {
		Algorithm Algorithm `json:"algorithm"`
	}
	if err := json.Unmarshal([]byte(`{"algorithm":"genetic"}`), &req); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if req.Algorithm != AlgorithmGenetic {
		t.Errorf("Algorithm = %v", req.Algorithm)
	}
	data, _ := json.Marshal(req)
	if string(data) != `{"algorithm":"genetic"}` {
		t.Errorf("Marshal = %s", data)
	}
	if err := json.Unmarshal([]byte(`{"algorithm":"tabu"}`), &req); !IsUnsupportedAlgorithm(err) {
		t.Errorf("Expected UnsupportedAlgorithmError, got %v", err)
	}
}

func TestEngine_InputErrors(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
		code apperrors.Code
	}{
		{
			"有课时但没有教室",
			&Request{Algorithm: AlgorithmGreedy, Subjects: []model.Subject{{ID: "a", LectureHours: 1}}},
			apperrors.CodeConfiguration,
		},
		{
			"课时为负数",
			&Request{Algorithm: AlgorithmGreedy, Subjects: []model.Subject{{ID: "a", LectureHours: -1}}, Rooms: []model.Room{{ID: "r1", Kind: model.RoomClassroom}}},
			apperrors.CodeValidationFail,
		},
		{
			"未知教室类型",
			&Request{Algorithm: AlgorithmGreedy, Rooms: []model.Room{{ID: "r1", Kind: "gym"}}},
			apperrors.CodeValidationFail,
		},
		{
			"时间模板无效",
			&Request{Algorithm: AlgorithmGreedy, Template: &grid.Template{Days: []string{"Monday"}, Blocks: []grid.Block{{Start: "10:00", End: "09:00"}}}},
			apperrors.CodeInvalidInput,
		},
		{
			"时段时间无效",
			&Request{Algorithm: AlgorithmGreedy, Slots: []model.TimeSlot{{Day: "Monday", Start: "nine", End: "10:00"}}},
			apperrors.CodeInvalidInput,
		},
		{
			"遗传参数无效",
			&Request{Algorithm: AlgorithmGenetic, Genetic: optimizer.GeneticConfig{MutationRate: 2}},
			apperrors.CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testEngine().Run(context.Background(), tt.req)
			if !apperrors.Is(err, tt.code) {
				t.Errorf("Run() error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestEngine_SuppliedSlotsOrderedByClock(t *testing.T) {
	result, err := testEngine().Run(context.Background(), &Request{
		Algorithm: AlgorithmGreedy,
		Subjects:  []model.Subject{{ID: "math", LectureHours: 1, TeacherID: "t1"}},
		Teachers:  []model.Teacher{{ID: "t1", Available: true, MaxHours: 10}},
		Rooms:     []model.Room{{ID: "r1", Kind: model.RoomClassroom}},
		Slots: []model.TimeSlot{
			{Day: "Monday", Start: "10:00", End: "11:00"},
			{Day: "Monday", Start: "9:00", End: "10:00"},
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Slots[0].Start != "9:00" || result.Slots[1].Start != "10:00" {
		t.Errorf("slots = %+v, want 9:00 before 10:00", result.Slots)
	}
	if len(result.Assignments) != 1 || result.Assignments[0].Slot.Start != "9:00" {
		t.Errorf("首个空闲时段应为 9:00, got %+v", result.Assignments)
	}
}

func TestEngine_EmptySubjects(t *testing.T) {
	result, err := testEngine().Run(context.Background(), &Request{Algorithm: AlgorithmGenetic, Genetic: smallGenetic(), Seed: seed(1)})
	if err != nil {
		t.Fatalf("没有课程不是错误: %v", err)
	}
	if len(result.Assignments) != 0 || result.Metrics.SchedulingRate != 100 {
		t.Errorf("result = %+v", result.Metrics)
	}
}

func TestEngine_CancelledReturnsBestSoFar(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := testEngine().Run(ctx, &Request{
		Algorithm: AlgorithmGenetic,
		Subjects:  []model.Subject{{ID: "a", LectureHours: 3}},
		Rooms:     []model.Room{{ID: "r1", Kind: model.RoomClassroom}},
		Genetic:   smallGenetic(),
		Seed:      seed(5),
	})
	if err != nil {
		t.Fatalf("取消不是错误: %v", err)
	}
	if !result.Metadata.Cancelled {
		t.Error("Expected cancelled flag in metadata")
	}
	if len(result.Assignments) != 3 {
		t.Errorf("取消时应返回当前最优课表，got %d assignments", len(result.Assignments))
	}
}

type recordingObserver struct {
	runs []*RunResult
}

func (o *recordingObserver) ObserveRun(r *RunResult) {
	o.runs = append(o.runs, r)
}

func TestEngine_Observer(t *testing.T) {
	obs := &recordingObserver{}
	_, err := testEngine(WithObserver(obs)).Run(context.Background(), &Request{
		Algorithm: AlgorithmGreedy,
		Subjects:  []model.Subject{{ID: "a", LectureHours: 1}},
		Rooms:     []model.Room{{ID: "r1", Kind: model.RoomClassroom}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(obs.runs) != 1 {
		t.Errorf("Expected observer to be called once, got %d", len(obs.runs))
	}
}

func TestEngine_Validate(t *testing.T) {
	slots := grid.Generate(grid.DefaultTemplate())
	schedule := model.Schedule{
		{SubjectID: "a", TeacherID: "t1", RoomID: "r1", Slot: slots[0]},
		{SubjectID: "b", TeacherID: "t2", RoomID: "r1", Slot: slots[0]},
		{SubjectID: "c", TeacherID: "t3", RoomID: "r2", Slot: slots[1]},
	}
	teachers := []model.Teacher{{ID: "t1", Available: true}, {ID: "t2", Available: true}}
	rooms := []model.Room{{ID: "r1", Kind: model.RoomClassroom}, {ID: "r2", Kind: model.RoomClassroom}}

	report := testEngine().Validate(schedule, teachers, rooms)
	if report.IsValid {
		t.Error("存在重复安排时应无效")
	}
	if report.ConflictCount != 1 || report.TotalSessions != 3 {
		t.Errorf("report = %+v", report)
	}
	if len(report.UnknownReferences) != 1 || report.UnknownReferences[0].ID != "t3" {
		t.Errorf("unknown references = %+v", report.UnknownReferences)
	}

	withSuggestions := testEngine().ValidateWith(&ValidateRequest{
		Schedule: schedule,
		Teachers: teachers,
		Rooms:    rooms,
		Slots:    slots,
		Suggest:  true,
	})
	if len(withSuggestions.Suggestions) != 1 || len(withSuggestions.Suggestions[0].Recommendations) == 0 {
		t.Errorf("suggestions = %+v", withSuggestions.Suggestions)
	}

	clean := testEngine().Validate(schedule[2:], nil, nil)
	if !clean.IsValid || clean.ConflictCount != 0 {
		t.Errorf("无冲突课表应有效, got %+v", clean)
	}
}
