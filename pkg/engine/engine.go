package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint/builtin"
	"github.com/kebiao/kebiao/pkg/scheduler/grid"
	"github.com/kebiao/kebiao/pkg/scheduler/optimizer"
	"github.com/kebiao/kebiao/pkg/scheduler/placement"
	"github.com/kebiao/kebiao/pkg/scheduler/solver"
	"github.com/kebiao/kebiao/pkg/stats"
	"github.com/kebiao/kebiao/pkg/validator"
)

// Request 排课请求
type Request struct {
	Algorithm Algorithm       `json:"algorithm"`
	Subjects  []model.Subject `json:"subjects"`
	Teachers  []model.Teacher `json:"teachers"`
	Rooms     []model.Room    `json:"rooms"`

	// 时段目录：Slots 非空时优先使用（会重新编号），否则按 Template 生成，都为空时用默认模板
	Template *grid.Template   `json:"template,omitempty"`
	Slots    []model.TimeSlot `json:"slots,omitempty"`

	Greedy      solver.GreedyMode             `json:"greedy_mode,omitempty"`
	Genetic     optimizer.GeneticConfig       `json:"genetic"` // 零值时使用 DefaultGeneticConfig
	LocalSearch *optimizer.OptimizationConfig `json:"local_search,omitempty"`
	Constraints map[string]interface{}        `json:"constraints,omitempty"`

	Seed    *int64        `json:"seed,omitempty"`    // 为空时使用时间种子
	Timeout time.Duration `json:"timeout,omitempty"` // 0 表示不限
}

// Metadata 运行元数据
type Metadata struct {
	RunID             uuid.UUID                    `json:"run_id"`
	Algorithm         string                       `json:"algorithm"`
	GeneratedAt       time.Time                    `json:"generated_at"`
	Duration          time.Duration                `json:"duration"`
	Seed              int64                        `json:"seed"`
	SlotCount         int                          `json:"slot_count"`
	Iterations        int                          `json:"iterations"`
	Trace             []optimizer.GenerationStat   `json:"trace,omitempty"`
	Cancelled         bool                         `json:"cancelled"`
	TimeLimited       bool                         `json:"time_limited"` // 局部搜索时间预算耗尽，同一种子重放可能不同
	UnknownReferences []validator.UnknownReference `json:"unknown_references,omitempty"`
}

// RunResult 排课结果
type RunResult struct {
	Assignments model.Schedule         `json:"assignments"`
	Conflicts   []validator.Conflict   `json:"conflicts"`
	Unplaced    []placement.Unplaced   `json:"unplaced"`
	Metrics     stats.Metrics          `json:"metrics"`
	Analysis    *stats.WorkloadMetrics `json:"analysis,omitempty"`
	Slots       []model.TimeSlot       `json:"slots"`
	Metadata    Metadata               `json:"metadata"`
}

// Observer 运行观察者，用于上报指标
type Observer interface {
	ObserveRun(result *RunResult)
}

// Engine 排课引擎，可被多个协程并发使用
type Engine struct {
	now      func() time.Time
	newID    func() uuid.UUID
	detector *validator.DetectorConfig
	observer Observer
	logger   *logger.SchedulerLogger
}

// Option 引擎选项
type Option func(*Engine)

// WithClock 注入时钟
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator 注入运行ID生成器
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithDetectorConfig 设置冲突检测配置
func WithDetectorConfig(cfg *validator.DetectorConfig) Option {
	return func(e *Engine) { e.detector = cfg }
}

// WithObserver 设置运行观察者
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New 创建排课引擎
func New(opts ...Option) *Engine {
	e := &Engine{
		now:      time.Now,
		newID:    uuid.New,
		detector: validator.DefaultDetectorConfig(),
		logger:   logger.NewSchedulerLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run 执行一次排课
// 无课程时返回空课表；取消或超时返回当前最优结果并标记 Cancelled，不作为错误
func (e *Engine) Run(ctx context.Context, req *Request) (*RunResult, error) {
	if req == nil {
		return nil, apperrors.ErrInvalidInput
	}
	if !req.Algorithm.Valid() {
		return nil, &UnsupportedAlgorithmError{Algorithm: req.Algorithm.String()}
	}

	slots, err := e.buildSlots(req)
	if err != nil {
		return nil, err
	}
	if err := checkInput(req); err != nil {
		return nil, err
	}

	start := e.now()
	runID := e.newID()
	seed := start.UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	schedCtx := constraint.NewContext(req.Subjects, req.Teachers, req.Rooms, slots)
	manager := builtin.NewDefaultManager(req.Constraints)
	log := e.logger.With(req.Algorithm.String())
	log.StartRun(runID.String(), len(req.Subjects), schedCtx.RequiredHours(), len(slots))

	s, err := e.newSolver(req, manager, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "算法参数无效")
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	solved, err := s.Solve(ctx, schedCtx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, fmt.Sprintf("%s 求解失败", s.Name()))
	}

	// 冲突检测和指标总是执行
	report := validator.NewConflictDetector(e.detector).DetectAll(solved.Schedule, &validator.Catalog{
		Subjects: req.Subjects,
		Teachers: req.Teachers,
		Rooms:    req.Rooms,
	})

	result := &RunResult{
		Assignments: solved.Schedule,
		Conflicts:   report.Conflicts,
		Unplaced:    solved.Unplaced,
		Metrics: stats.Calculate(stats.Input{
			RequiredHours:  schedCtx.RequiredHours(),
			PlacedHours:    solved.PlacedHours(),
			TotalSessions:  len(solved.Schedule),
			TotalConflicts: len(report.Conflicts),
			Fitness:        solved.Fitness,
			MaxFitness:     solved.MaxFitness,
		}),
		Analysis: stats.AnalyzeWorkload(solved.Schedule, req.Teachers, req.Rooms, slots),
		Slots:    slots,
		Metadata: Metadata{
			RunID:             runID,
			Algorithm:         req.Algorithm.String(),
			GeneratedAt:       start,
			Seed:              seed,
			SlotCount:         len(slots),
			Iterations:        solved.Iterations,
			Trace:             solved.Trace,
			Cancelled:         solved.Cancelled,
			TimeLimited:       solved.TimedOut,
			UnknownReferences: report.UnknownReferences,
		},
	}
	if result.Unplaced == nil {
		result.Unplaced = []placement.Unplaced{}
	}
	result.Metadata.Duration = e.now().Sub(start)

	if result.Metadata.Cancelled {
		log.RunCancelled(runID.String(), ctx.Err(), solved.Fitness)
	} else {
		log.RunComplete(runID.String(), result.Metadata.Duration, solved.Fitness, result.Metrics.QualityScore)
	}
	if e.observer != nil {
		e.observer.ObserveRun(result)
	}
	return result, nil
}

// newSolver 按算法创建求解器
func (e *Engine) newSolver(req *Request, manager *constraint.Manager, rng *rand.Rand) (solver.Solver, error) {
	switch req.Algorithm {
	case AlgorithmGreedy:
		return solver.NewGreedySolver(manager, req.Greedy, rng)
	case AlgorithmGenetic:
		cfg := req.Genetic
		if cfg == (optimizer.GeneticConfig{}) {
			cfg = optimizer.DefaultGeneticConfig()
		}
		return solver.NewGeneticSolver(manager, cfg, rng)
	case AlgorithmConstraint:
		return solver.NewConstraintSolver(manager, req.LocalSearch, rng)
	}
	return nil, &UnsupportedAlgorithmError{Algorithm: req.Algorithm.String()}
}

// buildSlots 生成本次运行的时段目录
func (e *Engine) buildSlots(req *Request) ([]model.TimeSlot, error) {
	if len(req.Slots) > 0 {
		if err := grid.ValidateSlots(req.Slots); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "时段目录无效")
		}
		return grid.Normalize(req.Slots), nil
	}
	tmpl := grid.DefaultTemplate()
	if req.Template != nil {
		tmpl = *req.Template
	}
	if err := tmpl.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "时间模板无效")
	}
	return grid.Generate(tmpl), nil
}

// checkInput 输入校验
// 有课时需求但没有教室属于配置错误，与产能不足区分
func checkInput(req *Request) error {
	ve := &apperrors.ValidationErrors{}
	for i := range req.Subjects {
		s := &req.Subjects[i]
		if s.ID == "" {
			ve.Add(fmt.Sprintf("subjects[%d].id", i), "不能为空")
		}
		if s.LectureHours < 0 || s.LabHours < 0 {
			ve.Add(fmt.Sprintf("subjects[%d]", i), "课时不能为负数")
		}
	}
	for i := range req.Teachers {
		if req.Teachers[i].ID == "" {
			ve.Add(fmt.Sprintf("teachers[%d].id", i), "不能为空")
		}
	}
	for i := range req.Rooms {
		r := &req.Rooms[i]
		if r.ID == "" {
			ve.Add(fmt.Sprintf("rooms[%d].id", i), "不能为空")
		}
		if !r.Kind.Valid() {
			ve.Add(fmt.Sprintf("rooms[%d].kind", i), fmt.Sprintf("未知的教室类型 %q", r.Kind))
		}
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}

	if model.TotalRequiredHours(req.Subjects) > 0 && len(req.Rooms) == 0 {
		return apperrors.Configuration("存在课时需求但教室目录为空")
	}
	return nil
}
