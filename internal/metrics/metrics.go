// Package metrics 提供 Prometheus 监控指标
package metrics

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kebiao/kebiao/pkg/engine"
	"github.com/kebiao/kebiao/pkg/validator"
)

const namespace = "kebiao"

// Metrics 指标集合，实现 engine.Observer
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	iterations      *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	unplacedHours   *prometheus.CounterVec
	qualityScore    *prometheus.GaugeVec
	schedulingRate  *prometheus.GaugeVec
	loadGini        *prometheus.GaugeVec
	cacheLookups    *prometheus.CounterVec
	activeRuns      prometheus.Gauge
}

// New 创建并注册全部指标
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP请求总数",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP请求延迟",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"method", "path"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "排课运行次数",
		}, []string{"algorithm", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "排课运行耗时",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		}, []string{"algorithm"}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizer_iterations_total",
			Help:      "优化器迭代次数",
		}, []string{"algorithm"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "排课结果中的冲突数",
		}, []string{"algorithm", "type"}),
		unplacedHours: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unplaced_hours_total",
			Help:      "未能安排的课时数",
		}, []string{"algorithm", "reason"}),
		qualityScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_score",
			Help:      "最近一次运行的质量分数",
		}, []string{"algorithm"}),
		schedulingRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduling_rate",
			Help:      "最近一次运行的课时安排率",
		}, []string{"algorithm"}),
		loadGini: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "teacher_load_gini",
			Help:      "最近一次运行的教师课时基尼系数",
		}, []string{"algorithm"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "结果缓存查询次数",
		}, []string{"result"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "当前进行中的排课运行数",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "goroutines",
		Help:      "当前协程数",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestsTotal, m.requestDuration, m.runsTotal, m.runDuration, m.iterations,
		m.conflicts, m.unplacedHours, m.qualityScore, m.schedulingRate, m.loadGini,
		m.cacheLookups, m.activeRuns, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest 记录请求指标
func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCacheLookup 记录缓存命中情况
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordRunFailure 记录失败的运行
func (m *Metrics) RecordRunFailure(algorithm string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(algorithm, "failure").Inc()
}

// TrackRun 标记一次运行开始，返回结束回调
func (m *Metrics) TrackRun() func() {
	if m == nil {
		return func() {}
	}
	m.activeRuns.Inc()
	return m.activeRuns.Dec
}

// ObserveRun 实现 engine.Observer
func (m *Metrics) ObserveRun(result *engine.RunResult) {
	if m == nil || result == nil {
		return
	}
	algo := result.Metadata.Algorithm

	status := "success"
	if result.Metadata.Cancelled {
		status = "cancelled"
	}
	m.runsTotal.WithLabelValues(algo, status).Inc()
	m.runDuration.WithLabelValues(algo).Observe(result.Metadata.Duration.Seconds())
	m.iterations.WithLabelValues(algo).Add(float64(result.Metadata.Iterations))

	for _, c := range result.Conflicts {
		m.conflicts.WithLabelValues(algo, string(c.Type)).Inc()
	}
	for _, u := range result.Unplaced {
		m.unplacedHours.WithLabelValues(algo, u.Reason).Inc()
	}

	m.qualityScore.WithLabelValues(algo).Set(result.Metrics.QualityScore)
	m.schedulingRate.WithLabelValues(algo).Set(result.Metrics.SchedulingRate)
	if result.Analysis != nil {
		m.loadGini.WithLabelValues(algo).Set(result.Analysis.LoadGini)
	}
}

// RecordValidation 记录外部课表校验发现的冲突
func (m *Metrics) RecordValidation(conflicts []validator.Conflict) {
	if m == nil {
		return
	}
	for _, c := range conflicts {
		m.conflicts.WithLabelValues("validate", string(c.Type)).Inc()
	}
}
