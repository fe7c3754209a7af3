package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kebiao/kebiao/internal/cache"
	"github.com/kebiao/kebiao/internal/config"
	"github.com/kebiao/kebiao/internal/constraints"
	"github.com/kebiao/kebiao/internal/csvio"
	"github.com/kebiao/kebiao/internal/metrics"
	"github.com/kebiao/kebiao/internal/repository"
	"github.com/kebiao/kebiao/pkg/engine"
	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/scheduler/grid"
	"github.com/kebiao/kebiao/pkg/stats"
)

// Runner 排课引擎接口
type Runner interface {
	Run(ctx context.Context, req *engine.Request) (*engine.RunResult, error)
	ValidateWith(req *engine.ValidateRequest) *engine.ValidationReport
}

// TimetableHandler 课表处理器
type TimetableHandler struct {
	engine   Runner
	runs     repository.RunRepositoryInterface // 未配置数据库时为 nil
	cache    *cache.RunCache
	metrics  *metrics.Metrics
	cfg      config.SchedulerConfig
	validate *validator.Validate
}

// NewTimetableHandler 创建课表处理器，runs、cache、m 均可为 nil
func NewTimetableHandler(e Runner, runs repository.RunRepositoryInterface, c *cache.RunCache, m *metrics.Metrics, cfg config.SchedulerConfig) *TimetableHandler {
	return &TimetableHandler{
		engine:   e,
		runs:     runs,
		cache:    c,
		metrics:  m,
		cfg:      cfg,
		validate: newValidator(),
	}
}

// Register 注册路由
func (h *TimetableHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/timetable/generate", h.Generate)
	mux.HandleFunc("POST /api/v1/timetable/validate", h.Validate)
	mux.HandleFunc("GET /api/v1/timetable/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/timetable/runs/{id}", h.GetRun)
	mux.HandleFunc("DELETE /api/v1/timetable/runs/{id}", h.DeleteRun)
	mux.HandleFunc("GET /api/v1/timetable/runs/{id}/export", h.ExportRun)
	mux.HandleFunc("POST /api/v1/stats/workload", h.Workload)
	mux.HandleFunc("GET /api/v1/constraints/library", h.ConstraintLibrary)
	mux.HandleFunc("GET /api/v1/algorithms", h.Algorithms)
}

// Generate 生成课表
func (h *TimetableHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := checkStruct(h.validate, &req, req.Constraints); err != nil {
		respondError(w, r, err)
		return
	}

	engReq, err := toEngineRequest(&req, h.cfg)
	if err != nil {
		respondError(w, r, toAppError(err))
		return
	}

	ctx := r.Context()
	log := logger.WithContext(ctx)

	if _, cacheable := cache.Key(engReq); cacheable && h.cache.Enabled() {
		cached, err := h.cache.Get(ctx, engReq)
		h.metrics.RecordCacheLookup(err == nil)
		if err == nil {
			w.Header().Set("X-Cache", "HIT")
			respondJSON(w, http.StatusOK, cached)
			return
		}
		if !errors.Is(err, errors.CodeCacheError) {
			log.Warn().Err(err).Msg("读取缓存失败")
		}
	}

	done := h.metrics.TrackRun()
	result, err := h.engine.Run(ctx, engReq)
	done()
	if err != nil {
		h.metrics.RecordRunFailure(engReq.Algorithm.String())
		respondError(w, r, toAppError(err))
		return
	}

	if err := h.cache.Put(ctx, engReq, result); err != nil {
		log.Warn().Err(err).Msg("写入缓存失败")
	}
	if h.runs != nil {
		if _, err := h.runs.Save(ctx, result); err != nil {
			log.Error().Err(err).Str("run_id", result.Metadata.RunID.String()).Msg("保存运行记录失败")
		}
	}

	w.Header().Set("X-Run-ID", result.Metadata.RunID.String())
	respondJSON(w, http.StatusOK, result)
}

// Validate 校验外部课表
func (h *TimetableHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := checkStruct(h.validate, &req, req.Constraints); err != nil {
		respondError(w, r, err)
		return
	}

	report := h.engine.ValidateWith(&engine.ValidateRequest{
		Schedule:    req.Assignments,
		Subjects:    req.Subjects,
		Teachers:    req.Teachers,
		Rooms:       req.Rooms,
		Slots:       req.Slots,
		Suggest:     req.Suggest,
		Constraints: req.Constraints,
	})
	h.metrics.RecordValidation(report.Conflicts)
	respondJSON(w, http.StatusOK, report)
}

// ListRuns 分页查询运行记录
func (h *TimetableHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, r, errors.ErrStoreUnavailable)
		return
	}

	q := r.URL.Query()
	filter := repository.DefaultListFilter().WithAlgorithm(q.Get("algorithm"))
	limit, err := queryInt(q.Get("limit"), filter.Limit, 1, 200)
	if err != nil {
		respondError(w, r, errors.InvalidInput("limit", err.Error()))
		return
	}
	offset, err := queryInt(q.Get("offset"), 0, 0, -1)
	if err != nil {
		respondError(w, r, errors.InvalidInput("offset", err.Error()))
		return
	}
	filter = filter.WithLimit(limit).WithOffset(offset)
	if by := q.Get("order_by"); by != "" {
		filter.OrderBy = by
	}
	if dir := q.Get("order_dir"); dir != "" {
		filter.OrderDir = dir
	}

	records, total, err := h.runs.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondList(w, records, total, limit, offset)
}

// GetRun 查询单次运行
func (h *TimetableHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// DeleteRun 删除运行记录
func (h *TimetableHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, r, errors.ErrStoreUnavailable)
		return
	}
	id, err := runID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.runs.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportRun 以 CSV 导出运行结果，kind 为 timetable、conflicts 或 unplaced
func (h *TimetableHandler) ExportRun(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	if rec.Result == nil {
		respondError(w, r, errors.NotFound("运行结果", rec.ID.String()))
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "timetable"
	}
	var write func(io.Writer) error
	switch kind {
	case "timetable":
		write = func(out io.Writer) error {
			return csvio.WriteTimetable(out, rec.Result.Assignments, csvio.DefaultDelimiter)
		}
	case "conflicts":
		write = func(out io.Writer) error {
			return csvio.WriteConflicts(out, rec.Result.Conflicts, csvio.DefaultDelimiter)
		}
	case "unplaced":
		write = func(out io.Writer) error {
			return csvio.WriteUnplaced(out, rec.Result.Unplaced, csvio.DefaultDelimiter)
		}
	default:
		respondError(w, r, errors.InvalidInput("kind", "取值必须为 timetable conflicts unplaced 之一"))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=run-%s-%s.csv", rec.ID, kind))
	if err := write(w); err != nil {
		logger.WithContext(r.Context()).Error().Err(err).Msg("导出 CSV 失败")
	}
}

// Workload 分析外部课表的教师负荷与教室利用率
func (h *TimetableHandler) Workload(w http.ResponseWriter, r *http.Request) {
	var req WorkloadRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := checkStruct(h.validate, &req, nil); err != nil {
		respondError(w, r, err)
		return
	}

	slots := req.Slots
	if len(slots) == 0 {
		slots = grid.Generate(grid.DefaultTemplate())
	}
	respondJSON(w, http.StatusOK, stats.AnalyzeWorkload(req.Assignments, req.Teachers, req.Rooms, slots))
}

// ConstraintLibrary 返回可配置的约束
func (h *TimetableHandler) ConstraintLibrary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, constraints.GetResponse())
}

// Algorithms 返回支持的算法
func (h *TimetableHandler) Algorithms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"algorithms": engine.Algorithms(),
		"default":    h.cfg.DefaultAlgorithm,
	})
}

func (h *TimetableHandler) loadRun(w http.ResponseWriter, r *http.Request) (*repository.RunRecord, bool) {
	if h.runs == nil {
		respondError(w, r, errors.ErrStoreUnavailable)
		return nil, false
	}
	id, err := runID(r)
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	rec, err := h.runs.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	return rec, true
}

func runID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, errors.InvalidInput("id", "无效的运行ID格式")
	}
	return id, nil
}

// queryInt 解析整数查询参数，hi < 0 表示无上限
func queryInt(raw string, def, lo, hi int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("必须为整数")
	}
	if v < lo || (hi >= 0 && v > hi) {
		return 0, fmt.Errorf("超出范围")
	}
	return v, nil
}

// toAppError 将引擎错误映射为 AppError
func toAppError(err error) error {
	if engine.IsUnsupportedAlgorithm(err) {
		return errors.New(errors.CodeUnsupportedAlgorithm, err.Error())
	}
	return err
}
