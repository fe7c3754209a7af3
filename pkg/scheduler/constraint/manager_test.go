package constraint

import (
	"testing"

	"github.com/kebiao/kebiao/pkg/model"
)

func TestManager_Register(t *testing.T) {
	manager := NewManager()

	c := &MockConstraint{
		name:     "test",
		typ:      Type("test_type"),
		category: CategoryHard,
	}
	manager.Register(c)

	constraints := manager.GetAll()
	if len(constraints) != 1 {
		t.Errorf("Expected 1 constraint, got %d", len(constraints))
	}
}

func TestManager_Evaluate(t *testing.T) {
	manager := NewManager()

	// 注册一个通过的约束
	pass := &MockConstraint{
		name:     "pass",
		typ:      Type("pass_type"),
		category: CategoryHard,
		pass:     true,
	}
	manager.Register(pass)

	ctx := NewContext(nil, nil, nil, nil)

	result := manager.Evaluate(ctx, nil)

	if result.TotalPenalty != 0 {
		t.Errorf("Expected 0 penalty, got %d", result.TotalPenalty)
	}
	if result.Fitness != DefaultBaseline {
		t.Errorf("Expected fitness %d, got %d", DefaultBaseline, result.Fitness)
	}
	if result.Score != 100 {
		t.Errorf("Expected score 100, got %f", result.Score)
	}
}

func TestManager_FitnessWithPenaltyAndReward(t *testing.T) {
	manager := NewManager()
	manager.Register(&MockConstraint{name: "hard", typ: Type("hard"), category: CategoryHard, penalty: 120})
	manager.Register(&MockReward{MockConstraint: MockConstraint{name: "bonus", typ: Type("bonus"), category: CategorySoft, pass: true}, reward: 40, max: 60})

	ctx := NewContext(nil, nil, nil, nil)

	if got := manager.Fitness(ctx, nil); got != 920 {
		t.Errorf("Fitness() = %d, want 920", got)
	}
	if got := manager.MaxFitness(ctx); got != 1060 {
		t.Errorf("MaxFitness() = %d, want 1060", got)
	}

	result := manager.Evaluate(ctx, nil)
	if result.IsValid {
		t.Error("Expected invalid result with hard violation")
	}
	if result.Fitness != 920 || result.TotalReward != 40 || result.TotalPenalty != 120 {
		t.Errorf("unexpected result %+v", result)
	}
	if len(result.HardViolations) != 1 {
		t.Errorf("Expected 1 hard violation, got %d", len(result.HardViolations))
	}
}

func TestManager_FitnessClamp(t *testing.T) {
	manager := NewManager()
	manager.SetBaseline(100)
	manager.Register(&MockConstraint{name: "hard", typ: Type("hard"), category: CategoryHard, penalty: 500})

	if got := manager.Fitness(NewContext(nil, nil, nil, nil), nil); got != 0 {
		t.Errorf("Fitness() = %d, want 0", got)
	}
}

func TestManager_RegisterReplacesSameType(t *testing.T) {
	manager := NewManager()
	manager.Register(&MockConstraint{name: "v1", typ: Type("same"), category: CategorySoft})
	manager.Register(&MockConstraint{name: "v2", typ: Type("same"), category: CategorySoft})

	if len(manager.GetAll()) != 1 {
		t.Fatalf("Expected 1 constraint, got %d", len(manager.GetAll()))
	}
	if manager.GetConstraint(Type("same")).Name() != "v2" {
		t.Error("Expected later registration to replace earlier one")
	}
}

func TestContext_Indexes(t *testing.T) {
	ctx := NewContext(
		[]model.Subject{{ID: "s1", LectureHours: 2, LabHours: 1}},
		[]model.Teacher{{ID: "t1"}},
		[]model.Room{{ID: "r1", Kind: model.RoomClassroom}, {ID: "l1", Kind: model.RoomLab}},
		[]model.TimeSlot{{DayIndex: 0, Index: 0}, {DayIndex: 0, Index: 1}, {DayIndex: 1, Index: 2}},
	)

	if ctx.GetSubject("s1") == nil || ctx.GetTeacher("t1") == nil || ctx.GetRoom("l1") == nil {
		t.Error("Expected catalog lookups to succeed")
	}
	if ctx.GetRoom("missing") != nil {
		t.Error("Expected nil for unknown room")
	}
	if len(ctx.RoomsOfKind(model.RoomLab)) != 1 {
		t.Error("Expected 1 lab room")
	}
	if ctx.BlocksPerDay() != 2 {
		t.Errorf("BlocksPerDay() = %d, want 2", ctx.BlocksPerDay())
	}
	if ctx.RequiredHours() != 3 {
		t.Errorf("RequiredHours() = %d, want 3", ctx.RequiredHours())
	}
}

func TestManager_Summary(t *testing.T) {
	manager := NewManager()

	if s := manager.Summary(); s.Total != 0 || s.Baseline != DefaultBaseline {
		t.Errorf("Summary() = %+v, want empty with default baseline", s)
	}

	manager.Register(&MockConstraint{name: "c1", typ: Type("c1"), category: CategoryHard})
	manager.Register(&MockConstraint{name: "c2", typ: Type("c2"), category: CategorySoft})
	manager.Register(&MockConstraint{name: "c3", typ: Type("c3"), category: CategorySoft})
	manager.SetBaseline(800)

	want := Summary{Total: 3, Hard: 1, Soft: 2, Baseline: 800}
	if s := manager.Summary(); s != want {
		t.Errorf("Summary() = %+v, want %+v", s, want)
	}
}

// MockConstraint 用于测试的模拟约束
type MockConstraint struct {
	name     string
	typ      Type
	category Category
	weight   int
	pass     bool
	penalty  int
}

func (m *MockConstraint) Name() string       { return m.name }
func (m *MockConstraint) Type() Type         { return m.typ }
func (m *MockConstraint) Category() Category { return m.category }
func (m *MockConstraint) Weight() int {
	if m.weight == 0 {
		return 100
	}
	return m.weight
}

func (m *MockConstraint) Evaluate(ctx *Context, s model.Schedule) (bool, int, []ViolationDetail) {
	if m.pass {
		return true, 0, nil
	}
	return false, m.penalty, []ViolationDetail{
		{ConstraintName: m.name, Message: "违反约束", Penalty: m.penalty},
	}
}

func (m *MockConstraint) Penalty(ctx *Context, s model.Schedule) int {
	if m.pass {
		return 0
	}
	return m.penalty
}

// MockReward 用于测试的奖励型约束
type MockReward struct {
	MockConstraint
	reward int
	max    int
}

func (m *MockReward) Reward(ctx *Context, s model.Schedule) int { return m.reward }
func (m *MockReward) MaxReward(ctx *Context) int                { return m.max }
