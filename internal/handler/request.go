package handler

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kebiao/kebiao/internal/config"
	"github.com/kebiao/kebiao/internal/constraints"
	"github.com/kebiao/kebiao/pkg/engine"
	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/grid"
	"github.com/kebiao/kebiao/pkg/scheduler/optimizer"
	"github.com/kebiao/kebiao/pkg/scheduler/solver"
)

// GenerateRequest 课表生成请求
type GenerateRequest struct {
	Algorithm   string                 `json:"algorithm,omitempty"`
	Subjects    []model.Subject        `json:"subjects" validate:"dive"`
	Teachers    []model.Teacher        `json:"teachers" validate:"dive"`
	Rooms       []model.Room           `json:"rooms" validate:"dive"`
	Days        []string               `json:"days,omitempty" validate:"omitempty,dive,required"`
	Blocks      []grid.Block           `json:"blocks,omitempty" validate:"omitempty,dive"`
	Slots       []model.TimeSlot       `json:"slots,omitempty"`
	Options     *GenerateOptions       `json:"options,omitempty"`
	Constraints map[string]interface{} `json:"constraints,omitempty"`
}

// GenerateOptions 算法参数，未设置的字段使用服务配置
type GenerateOptions struct {
	PopulationSize int      `json:"population_size,omitempty" validate:"gte=0,lte=1000"`
	Generations    int      `json:"generations,omitempty" validate:"gte=0,lte=10000"`
	MutationRate   *float64 `json:"mutation_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	CrossoverRate  *float64 `json:"crossover_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	ElitismRate    *float64 `json:"elitism_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	TournamentSize int      `json:"tournament_size,omitempty" validate:"gte=0"`
	Workers        int      `json:"workers,omitempty" validate:"gte=0,lte=64"`
	MaxIterations  int      `json:"max_iterations,omitempty" validate:"gte=0"`
	Seed           *int64   `json:"seed,omitempty"`
	GreedyMode     string   `json:"greedy_mode,omitempty" validate:"omitempty,oneof=first_fit random"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" validate:"gte=0"`
}

// ValidateRequest 课表校验请求
type ValidateRequest struct {
	Assignments []model.Assignment     `json:"assignments" validate:"dive"`
	Subjects    []model.Subject        `json:"subjects,omitempty" validate:"omitempty,dive"`
	Teachers    []model.Teacher        `json:"teachers,omitempty" validate:"omitempty,dive"`
	Rooms       []model.Room           `json:"rooms,omitempty" validate:"omitempty,dive"`
	Slots       []model.TimeSlot       `json:"slots,omitempty"`
	Suggest     bool                   `json:"suggest,omitempty"`
	Constraints map[string]interface{} `json:"constraints,omitempty"`
}

// WorkloadRequest 负荷分析请求
type WorkloadRequest struct {
	Assignments []model.Assignment `json:"assignments" validate:"dive"`
	Teachers    []model.Teacher    `json:"teachers,omitempty" validate:"omitempty,dive"`
	Rooms       []model.Room       `json:"rooms,omitempty" validate:"omitempty,dive"`
	Slots       []model.TimeSlot   `json:"slots,omitempty"`
}

// newValidator 创建结构体校验器，字段名取 json 标签
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct 校验请求结构，错误转换为 VALIDATION_FAILED
func checkStruct(v *validator.Validate, req interface{}, constraintConfig map[string]interface{}) error {
	ve := &errors.ValidationErrors{}

	if err := v.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !stderrors.As(err, &fieldErrs) {
			return errors.Wrap(err, errors.CodeInvalidInput, "请求校验失败")
		}
		for _, fe := range fieldErrs {
			ve.Add(fieldPath(fe.Namespace()), describe(fe))
		}
	}
	if errs := constraints.ValidateConfig(constraintConfig); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		ve.Add("constraints", strings.Join(msgs, "; "))
	}

	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// fieldPath 去掉命名空间中的结构体名
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "gte":
		return "不能小于 " + fe.Param()
	case "lte":
		return "不能大于 " + fe.Param()
	case "oneof":
		return "取值必须为 " + fe.Param() + " 之一"
	}
	return fmt.Sprintf("校验失败: %s", fe.Tag())
}

// toEngineRequest 合并服务默认配置，构造引擎请求
// 超时不超过 MaxTimeout
func toEngineRequest(req *GenerateRequest, cfg config.SchedulerConfig) (*engine.Request, error) {
	name := req.Algorithm
	if name == "" {
		name = cfg.DefaultAlgorithm
	}
	algorithm, err := engine.ParseAlgorithm(name)
	if err != nil {
		return nil, err
	}

	opts := req.Options
	if opts == nil {
		opts = &GenerateOptions{}
	}

	mode := opts.GreedyMode
	if mode == "" {
		mode = cfg.GreedyMode
	}
	greedy, err := solver.ParseGreedyMode(mode)
	if err != nil {
		return nil, errors.InvalidInput("options.greedy_mode", err.Error())
	}

	out := &engine.Request{
		Algorithm:   algorithm,
		Subjects:    req.Subjects,
		Teachers:    req.Teachers,
		Rooms:       req.Rooms,
		Slots:       req.Slots,
		Greedy:      greedy,
		Genetic:     geneticConfig(opts, cfg),
		Constraints: req.Constraints,
		Seed:        opts.Seed,
		Timeout:     timeout(opts.TimeoutSeconds, cfg),
	}
	if len(req.Days) > 0 || len(req.Blocks) > 0 {
		tmpl := grid.DefaultTemplate()
		if len(req.Days) > 0 {
			tmpl.Days = req.Days
		}
		if len(req.Blocks) > 0 {
			tmpl.Blocks = req.Blocks
		}
		out.Template = &tmpl
	}
	if opts.MaxIterations > 0 {
		ls := optimizer.DefaultOptConfig()
		ls.MaxIterations = opts.MaxIterations
		out.LocalSearch = ls
	}
	return out, nil
}

func geneticConfig(opts *GenerateOptions, cfg config.SchedulerConfig) optimizer.GeneticConfig {
	gc := optimizer.GeneticConfig{
		PopulationSize: cfg.PopulationSize,
		Generations:    cfg.Generations,
		MutationRate:   cfg.MutationRate,
		CrossoverRate:  cfg.CrossoverRate,
		ElitismRate:    cfg.ElitismRate,
		Workers:        cfg.Workers,
	}
	if opts.PopulationSize > 0 {
		gc.PopulationSize = opts.PopulationSize
	}
	if opts.Generations > 0 {
		gc.Generations = opts.Generations
	}
	if opts.MutationRate != nil {
		gc.MutationRate = *opts.MutationRate
	}
	if opts.CrossoverRate != nil {
		gc.CrossoverRate = *opts.CrossoverRate
	}
	if opts.ElitismRate != nil {
		gc.ElitismRate = *opts.ElitismRate
	}
	if opts.TournamentSize > 0 {
		gc.TournamentSize = opts.TournamentSize
	}
	if opts.Workers > 0 {
		gc.Workers = opts.Workers
	}
	return gc.WithDefaults()
}

func timeout(seconds int, cfg config.SchedulerConfig) time.Duration {
	d := cfg.DefaultTimeout
	if seconds > 0 {
		d = time.Duration(seconds) * time.Second
	}
	if cfg.MaxTimeout > 0 && (d <= 0 || d > cfg.MaxTimeout) {
		d = cfg.MaxTimeout
	}
	return d
}
